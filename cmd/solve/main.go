// Command solve is the ad hoc / benchmark driver's entry point.
package main

import "github.com/nindanaoto/superlu-dist/cmd"

func main() {
	cmd.Execute()
}
