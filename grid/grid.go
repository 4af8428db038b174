// Package grid describes the 2D process mesh the solver runs on: Pr rows
// by Pc columns of processes, with block (I,J) of the distributed factors
// owned by the process at mesh coordinates (I mod Pr, J mod Pc).
package grid

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Grid is the read-only 2D process mesh. It is constructed once, outside
// the solve, and shared by every component that needs to know who owns
// what.
type Grid struct {
	Pr, Pc int
	Iam    int // linear rank of this process, 0 <= Iam < Pr*Pc

	logger *zap.Logger
}

// New builds a Grid for rank iam on a Pr x Pc mesh. Ranks are laid out
// row-major: iam = row*Pc + col.
func New(pr, pc, iam int) (*Grid, error) {
	if pr <= 0 || pc <= 0 {
		return nil, fmt.Errorf("grid: invalid mesh shape %dx%d", pr, pc)
	}
	if iam < 0 || iam >= pr*pc {
		return nil, fmt.Errorf("grid: rank %d out of range for %dx%d mesh", iam, pr, pc)
	}
	return &Grid{Pr: pr, Pc: pc, Iam: iam, logger: zap.NewNop()}, nil
}

// WithLogger attaches a structured logger used by Abort; returns g for chaining.
func (g *Grid) WithLogger(l *zap.Logger) *Grid {
	if l != nil {
		g.logger = l
	}
	return g
}

// Procs is the total process count Pr*Pc.
func (g *Grid) Procs() int { return g.Pr * g.Pc }

// MyRow is this process's row coordinate.
func (g *Grid) MyRow() int { return g.Iam / g.Pc }

// MyCol is this process's column coordinate.
func (g *Grid) MyCol() int { return g.Iam % g.Pc }

// RowOwner returns the mesh row owning supernode K.
func (g *Grid) RowOwner(k int) int { return k % g.Pr }

// ColOwner returns the mesh column owning supernode K.
func (g *Grid) ColOwner(k int) int { return k % g.Pc }

// IsDiagonal reports whether this process owns the diagonal block (K,K).
func (g *Grid) IsDiagonal(k int) bool {
	return g.RowOwner(k) == g.MyRow() && g.ColOwner(k) == g.MyCol()
}

// PNum returns the linear rank of the process at mesh coordinates (row,col).
func (g *Grid) PNum(row, col int) int { return row*g.Pc + col }

// Abort logs err as fatal and terminates the process. There is no recovery
// path for faults raised during a solve (spec: allocation failure and
// protocol violations are both fatal aborts).
func (g *Grid) Abort(err error) {
	g.logger.Error("solver: fatal abort", zap.Int("rank", g.Iam), zap.Error(err))
	os.Exit(1)
}
