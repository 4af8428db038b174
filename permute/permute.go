// Package permute holds the row/column permutation vectors produced by a
// prior factorization's pivoting and ordering phases. Constructing these
// vectors is out of scope for this module (see spec §1); Bundle is the
// consumed shape.
package permute

// Bundle holds the global permutation vectors applied by the
// factorization: PermR maps an original row to its row in the factored,
// permuted matrix; PermC maps a column similarly. Both have length n.
type Bundle struct {
	PermR []int
	PermC []int
}

// Identity returns a Bundle whose permutations are the identity, useful
// for tests and for systems that were not permuted.
func Identity(n int) *Bundle {
	permR := make([]int, n)
	permC := make([]int, n)
	for i := range permR {
		permR[i] = i
		permC[i] = i
	}
	return &Bundle{PermR: permR, PermC: permC}
}
