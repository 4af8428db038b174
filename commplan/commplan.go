// Package commplan precomputes the all-to-all send/recv counts and
// displacements redist uses to scatter B onto diagonal processes and
// gather X back, grounded directly on pxgstrs_init/pdReDistribute_B_to_X
// in the reference SuperLU_DIST source. A Plan depends only on the (grid,
// supernode partition, permutation, m_loc, nrhs) tuple; Solve builds a
// fresh one on every call and uses it for both the B→X and X→B legs.
package commplan

import (
	"context"
	"fmt"

	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/permute"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/transport"
)

// Plan holds the B↔X all-to-all bookkeeping for one process.
type Plan struct {
	NRHS int

	// SendCnt[p]/RecvCnt[p] are index-stream word counts to/from rank p;
	// SDispls/RDispls are their prefix-sum offsets into the packed
	// send/recv buffers. The *NRHS variants scale by NRHS for the value
	// stream (spec: "one all-to-all for indices and one for values").
	SendCnt, RecvCnt, SDispls, RDispls                 []int
	SendCntNRHS, RecvCntNRHS, SDisplsNRHS, RDisplsNRHS []int

	// DestOf[i] is the destination rank (diagonal process of the owning
	// supernode) for local row i of B, precomputed so redist does not
	// recompute BlockNum/PNum on the hot path.
	DestOf []int

	// Irow[i] is the permuted global row number perm_c[perm_r[i+fstRow]]
	// for local row i of B, reused by both the B→X packing step and the
	// single-process shortcut.
	Irow []int
}

// Build computes a Plan for mLoc local rows of B starting at global row
// fstRow, for a system with nrhs right-hand sides.
func Build(ctx context.Context, t transport.Transport, g *grid.Grid, idx *super.Index, perm *permute.Bundle, mLoc, fstRow, nrhs int) (*Plan, error) {
	procs := g.Procs()
	p := &Plan{
		NRHS:        nrhs,
		SendCnt:     make([]int, procs),
		RecvCnt:     make([]int, procs),
		SDispls:     make([]int, procs),
		RDispls:     make([]int, procs),
		SendCntNRHS: make([]int, procs),
		RecvCntNRHS: make([]int, procs),
		SDisplsNRHS: make([]int, procs),
		RDisplsNRHS: make([]int, procs),
		DestOf:      make([]int, mLoc),
		Irow:        make([]int, mLoc),
	}

	for i := 0; i < mLoc; i++ {
		irow := perm.PermC[perm.PermR[i+fstRow]]
		p.Irow[i] = irow
		k := idx.BlockNum(irow)
		dest := g.PNum(g.RowOwner(k), g.ColOwner(k))
		p.DestOf[i] = dest
		p.SendCnt[dest]++
	}

	if procs == 1 {
		p.SendCntNRHS[0] = p.SendCnt[0] * nrhs
		p.RecvCnt[0] = p.SendCnt[0]
		p.RecvCntNRHS[0] = p.SendCntNRHS[0]
		return p, nil
	}

	sendF := make([]float64, procs)
	for i, c := range p.SendCnt {
		sendF[i] = float64(c)
	}
	recvF, err := exchangeCounts(ctx, t, sendF)
	if err != nil {
		return nil, fmt.Errorf("commplan: exchanging counts: %w", err)
	}
	for i, v := range recvF {
		p.RecvCnt[i] = int(v)
	}

	running, runningNRHS, runningR, runningRNRHS := 0, 0, 0, 0
	for i := 0; i < procs; i++ {
		p.SDispls[i] = running
		running += p.SendCnt[i]
		p.SendCntNRHS[i] = p.SendCnt[i] * nrhs
		p.SDisplsNRHS[i] = runningNRHS
		runningNRHS += p.SendCntNRHS[i]

		p.RDispls[i] = runningR
		runningR += p.RecvCnt[i]
		p.RecvCntNRHS[i] = p.RecvCnt[i] * nrhs
		p.RDisplsNRHS[i] = runningRNRHS
		runningRNRHS += p.RecvCntNRHS[i]
	}
	return p, nil
}

// exchangeCounts does a tiny all-to-all of one word per destination —
// each rank learns how many rows every other rank will send it — using
// the same Alltoallv primitive the bulk redistribution later uses, since
// no dedicated fixed-size Alltoall exists on transport.Transport.
func exchangeCounts(ctx context.Context, t transport.Transport, sendCnt []float64) ([]float64, error) {
	procs := t.Size()
	counts := make([]int, procs)
	displs := make([]int, procs)
	for i := range counts {
		counts[i] = 1
		displs[i] = i
	}
	return t.Alltoallv(ctx, sendCnt, counts, displs, counts, displs)
}
