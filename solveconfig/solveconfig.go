// Package solveconfig holds the solve's configuration surface (spec §6):
// whether to use the precomputed diagonal inverses, which transport to
// run over, the tree shape, and the worker-pool size. Parse/Print follow
// the same shape as gocfd's InputParameters2D: a YAML-tagged struct with
// a Parse([]byte) error method, using github.com/ghodss/yaml.
package solveconfig

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Config is the solve's configuration surface.
type Config struct {
	// UseInverseDiagonals selects the GEMM-against-cached-inverse path
	// over TRSM for diagonal block solves.
	UseInverseDiagonals bool `yaml:"UseInverseDiagonals"`

	// Transport names "two-sided" or "one-sided" delivery. Validate checks
	// the value, but Solve does not read it: the delivery is whatever
	// transport.Transport the caller puts on SolveInput.
	Transport string `yaml:"Transport"`

	// Workers sizes the shared task pool; 0 means runtime.NumCPU().
	Workers int `yaml:"Workers"`

	// TreeShape is "flat", "binary", or "kary:N".
	TreeShape string `yaml:"TreeShape"`
}

// Default returns the configuration the reference source effectively
// runs with: inverse diagonals on, two-sided transport, one worker per
// CPU, binary trees.
func Default() Config {
	return Config{
		UseInverseDiagonals: true,
		Transport:           "two-sided",
		Workers:             0,
		TreeShape:           "binary",
	}
}

// Parse unmarshals YAML-encoded configuration into c, leaving fields not
// present in data unchanged from c's current value.
func (c *Config) Parse(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Print writes a human-readable summary, mirroring InputParameters2D.Print
// in the corpus's own numerical solver.
func (c *Config) Print() {
	fmt.Printf("UseInverseDiagonals = %v\n", c.UseInverseDiagonals)
	fmt.Printf("Transport           = %s\n", c.Transport)
	fmt.Printf("Workers             = %d\n", c.Workers)
	fmt.Printf("TreeShape           = %s\n", c.TreeShape)
}

// Validate reports whether the configuration is well-formed.
func (c *Config) Validate() error {
	switch c.Transport {
	case "two-sided", "one-sided":
	default:
		return fmt.Errorf("solveconfig: unknown transport %q", c.Transport)
	}
	if c.Workers < 0 {
		return fmt.Errorf("solveconfig: workers must be >= 0, got %d", c.Workers)
	}
	return nil
}
