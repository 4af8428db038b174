// Package blockops provides the dense block kernels the solve engines
// apply at each supernode: precomputing and caching the inverse of a
// diagonal block (so the innermost triangular solve becomes a GEMM), and
// dispatching each diagonal block-solve to either that GEMM or a plain
// TRSM depending on configuration. All kernels are row-major dense
// blocks (gonum's blas64 storage convention) backed by gonum's BLAS/LAPACK
// bindings, the same wiring the corpus's own numerical solver (gocfd)
// uses for its BLAS calls.
package blockops

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// InvertLowerUnit computes the inverse of the n-by-n unit lower-triangular
// block stored row-major in a (stride n), returning a fresh row-major
// n-by-n buffer. Used to build Linv for a diagonal supernode.
func InvertLowerUnit(a []float64, n int) ([]float64, error) {
	return invertTriangular(a, n, blas.Lower, blas.Unit)
}

// InvertUpper computes the inverse of the n-by-n upper-triangular block
// stored row-major in a (stride n). Used to build Uinv.
func InvertUpper(a []float64, n int) ([]float64, error) {
	return invertTriangular(a, n, blas.Upper, blas.NonUnit)
}

func invertTriangular(a []float64, n int, uplo blas.Uplo, diag blas.Diag) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	if len(a) != n*n {
		return nil, fmt.Errorf("blockops: triangular block size mismatch: got %d want %d", len(a), n*n)
	}
	buf := make([]float64, n*n)
	copy(buf, a)
	tri := blas64.Triangular{N: n, Stride: n, Data: buf, Uplo: uplo, Diag: diag}
	ok := lapack64.Trtri(tri)
	if !ok {
		return nil, fmt.Errorf("blockops: diagonal block is singular, cannot invert")
	}
	return buf, nil
}

// DiagSolve overwrites rhs (an n-by-nrhs, row-major, leading dimension
// ldrhs block) with inv·rhs or the triangular solve of orig·x = rhs,
// depending on useInverse. Both paths must agree to within O(n^2 * eps).
//
//   - useInverse: rhs <- inv * rhs via Dgemm (inv is n-by-n, row-major).
//   - !useInverse: rhs <- orig^-1 * rhs via Dtrsm (orig is n-by-n,
//     row-major, triangular per uplo/diag).
func DiagSolve(useInverse bool, inv, orig []float64, uplo blas.Uplo, diag blas.Diag, n, nrhs int, rhs []float64, ldrhs int) error {
	if n == 0 || nrhs == 0 {
		return nil
	}
	impl := blas64.Implementation()
	if useInverse {
		if len(inv) != n*n {
			return fmt.Errorf("blockops: inverse block size mismatch: got %d want %d", len(inv), n*n)
		}
		out := make([]float64, n*nrhs)
		impl.Dgemm(blas.NoTrans, blas.NoTrans, n, nrhs, n,
			1.0, inv, n, rhs, ldrhs, 0.0, out, nrhs)
		for i := 0; i < n; i++ {
			for j := 0; j < nrhs; j++ {
				rhs[i*ldrhs+j] = out[i*nrhs+j]
			}
		}
		return nil
	}
	if len(orig) != n*n {
		return fmt.Errorf("blockops: diagonal block size mismatch: got %d want %d", len(orig), n*n)
	}
	impl.Dtrsm(blas.Left, uplo, blas.NoTrans, diag, n, nrhs, 1.0, orig, n, rhs, ldrhs)
	return nil
}

// ApplyOffDiag performs lsum -= block * x, where block is an m-by-n
// row-major dense panel (m rows owned by the target supernode, n
// columns owned by the source supernode), x is n-by-nrhs row-major
// with leading dimension ldx, and lsum is m-by-nrhs row-major with
// leading dimension ldlsum. This is the GEMM applied for every
// off-diagonal (I,K) block once X[K] becomes available.
func ApplyOffDiag(block []float64, m, n int, x []float64, ldx int, lsum []float64, ldlsum, nrhs int) error {
	if m == 0 || n == 0 || nrhs == 0 {
		return nil
	}
	if len(block) != m*n {
		return fmt.Errorf("blockops: off-diagonal block size mismatch: got %d want %d", len(block), m*n)
	}
	impl := blas64.Implementation()
	prod := make([]float64, m*nrhs)
	impl.Dgemm(blas.NoTrans, blas.NoTrans, m, nrhs, n,
		1.0, block, n, x, ldx, 0.0, prod, nrhs)
	for i := 0; i < m; i++ {
		for j := 0; j < nrhs; j++ {
			lsum[i*ldlsum+j] -= prod[i*nrhs+j]
		}
	}
	return nil
}
