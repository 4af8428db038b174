// Package redist implements the B↔X redistribution of spec §4.E,
// grounded directly on pdReDistribute_B_to_X/pdReDistribute_X_to_B in the
// reference SuperLU_DIST source: pack a per-destination bucket, exchange
// once for indices and once for values, unpack. The single-process case
// is a direct permuted copy with no communication.
//
// ToB mirrors ToX's exchange exactly rather than rediscovering which
// rank originally owned each row: ToX hands back the list of global row
// numbers it received, in receive order, and ToB resends values against
// that same list with the send/recv roles swapped. A commplan.Plan only
// records one rank's own local rows, so there is no way to reconstruct
// global ownership from it alone; reusing the original exchange order
// sidesteps that rather than faking a global row→rank map.
//
// B is stored row-major: row i, column j (the j-th right-hand side) is
// at B[i*ldb+j].
package redist

import (
	"context"
	"fmt"
	"time"

	"github.com/nindanaoto/superlu-dist/blocklayout"
	"github.com/nindanaoto/superlu-dist/commplan"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/solvestats"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/transport"
)

// RecvRows records, in receive order, which global row each entry of a
// ToX exchange corresponded to — the bookkeeping ToB needs to mirror the
// exchange in reverse without rediscovering ownership.
type RecvRows struct {
	rows  []int
	procs int
}

// ToX scatters local rows of B onto the diagonal processes that own
// their supernode, writing each row into x at its supernode-relative
// offset (spec §4.E Forward).
func ToX(ctx context.Context, t transport.Transport, g *grid.Grid, idx *super.Index,
	plan *commplan.Plan, xl *blocklayout.XLayout, b []float64, mLoc, ldb, nrhs int, stats *solvestats.Stats) ([]float64, *RecvRows, error) {
	x := xl.NewBuffer()
	procs := g.Procs()

	if procs == 1 {
		rows := make([]int, mLoc)
		for i := 0; i < mLoc; i++ {
			rows[i] = plan.Irow[i]
			writeRow(x, xl, idx, plan.Irow[i], b[i*ldb:i*ldb+nrhs])
		}
		return x, &RecvRows{rows: rows, procs: 1}, nil
	}

	sendIdx := make([]float64, plan.SDispls[procs-1]+plan.SendCnt[procs-1])
	sendVal := make([]float64, plan.SDisplsNRHS[procs-1]+plan.SendCntNRHS[procs-1])
	cursor := append([]int(nil), plan.SDispls...)
	cursorNRHS := append([]int(nil), plan.SDisplsNRHS...)

	for i := 0; i < mLoc; i++ {
		p := plan.DestOf[i]
		sendIdx[cursor[p]] = float64(plan.Irow[i])
		cursor[p]++
		copy(sendVal[cursorNRHS[p]:cursorNRHS[p]+nrhs], b[i*ldb:i*ldb+nrhs])
		cursorNRHS[p] += nrhs
	}

	start := time.Now()
	recvIdx, err := t.Alltoallv(ctx, sendIdx, plan.SendCnt, plan.SDispls, plan.RecvCnt, plan.RDispls)
	if err != nil {
		return nil, nil, fmt.Errorf("redist: index exchange: %w", err)
	}
	recvVal, err := t.Alltoallv(ctx, sendVal, plan.SendCntNRHS, plan.SDisplsNRHS, plan.RecvCntNRHS, plan.RDisplsNRHS)
	if stats != nil {
		stats.AddComm(time.Since(start))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("redist: value exchange: %w", err)
	}

	rows := make([]int, len(recvIdx))
	jj := 0
	for ii := range recvIdx {
		irow := int(recvIdx[ii])
		rows[ii] = irow
		writeRow(x, xl, idx, irow, recvVal[jj:jj+nrhs])
		jj += nrhs
	}
	return x, &RecvRows{rows: rows, procs: procs}, nil
}

func writeRow(x []float64, xl *blocklayout.XLayout, idx *super.Index, irow int, row []float64) {
	k := idx.BlockNum(irow)
	off, ok := xl.Offset(k)
	if !ok {
		// Only diagonal processes ever receive rows here; a non-owned
		// destination indicates a commplan/grid inconsistency.
		panic(fmt.Sprintf("redist: supernode %d not owned on this diagonal process", k))
	}
	rel := irow - idx.FirstRow(k)
	copy(x[off+rel*xl.NRHS:off+rel*xl.NRHS+xl.NRHS], row)
}

func readRow(x []float64, xl *blocklayout.XLayout, idx *super.Index, irow int, dst []float64) {
	k := idx.BlockNum(irow)
	off, ok := xl.Offset(k)
	if !ok {
		panic(fmt.Sprintf("redist: supernode %d not owned on this diagonal process", k))
	}
	rel := irow - idx.FirstRow(k)
	copy(dst, x[off+rel*xl.NRHS:off+rel*xl.NRHS+xl.NRHS])
}

// ToB gathers the solved X back into B's distribution (spec §4.E
// Backward), undoing exactly the exchange recv describes. X→B applies
// no additional column permutation beyond ii = irow: the reference
// source's commented-out inv_perm_c[irow] line is not part of the
// contract (spec §9) — recv.rows already carries the permuted row
// numbers ToX used, so that contract is automatically honored here.
func ToB(ctx context.Context, t transport.Transport, plan *commplan.Plan, idx *super.Index,
	xl *blocklayout.XLayout, x []float64, recv *RecvRows, mLoc, ldb, nrhs int, stats *solvestats.Stats) ([]float64, error) {
	b := make([]float64, mLoc*ldb)

	if recv.procs == 1 {
		for i, irow := range recv.rows {
			readRow(x, xl, idx, irow, b[i*ldb:i*ldb+nrhs])
		}
		return b, nil
	}

	sendVal := make([]float64, len(recv.rows)*nrhs)
	for ii, irow := range recv.rows {
		readRow(x, xl, idx, irow, sendVal[ii*nrhs:ii*nrhs+nrhs])
	}

	// Swap roles: what was received in ToX (grouped by RecvCnt/RDispls)
	// is now sent back; what was sent in ToX (grouped by SendCnt/SDispls)
	// is now received.
	start := time.Now()
	recvVal, err := t.Alltoallv(ctx, sendVal, plan.RecvCntNRHS, plan.RDisplsNRHS, plan.SendCntNRHS, plan.SDisplsNRHS)
	if stats != nil {
		stats.AddComm(time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("redist: value exchange: %w", err)
	}

	// recvVal is grouped by destination rank p in the same bucket order
	// ToX's packing loop used: local rows with DestOf[i]==p, in
	// increasing i order. Recompute that order here (cheap, and avoids
	// threading an extra index array through RecvRows) to place each
	// received value back at its local row i.
	procs := len(plan.SendCnt)
	cursor := append([]int(nil), plan.SDispls...)
	order := make([]int, plan.SDispls[procs-1]+plan.SendCnt[procs-1])
	for i := 0; i < mLoc; i++ {
		p := plan.DestOf[i]
		order[cursor[p]] = i
		cursor[p]++
	}

	jj := 0
	for _, i := range order {
		copy(b[i*ldb:i*ldb+nrhs], recvVal[jj:jj+nrhs])
		jj += nrhs
	}
	return b, nil
}
