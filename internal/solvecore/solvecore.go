// Package solvecore is the dependency-driven block-triangular solve loop
// shared by lsolve and usolve (spec §4.F, mirrored per §4.G): leaf/root
// frontier detection, self-scheduled receive loops terminated solely by
// message counts, broadcast-relay-before-apply, reduction-fold, and the
// atomic fmod/bmod readiness race. lsolve and usolve each configure a
// Kind naming which factor map, tags, and diagonal-inverse field apply;
// the loop logic itself does not know which triangular factor it is
// running against.
//
// Tree membership is computed without any setup-time communication: a
// conservative superset membership is used — every process sharing a
// supernode's owning mesh row participates in that row's reduction tree,
// and every process sharing its owning mesh column participates in that
// column's broadcast tree. This is always a safe superset of the true
// sparsity-driven membership (it may deliver a block update that turns
// out to be a no-op when this process holds no nonzero there), chosen
// because the true membership would require a structural all-gather of
// the factor's sparsity pattern across every process sharing a mesh row
// or column before the solve can even start — out of scope per spec §1,
// which treats symbolic factorization and its distributed bookkeeping as
// an external collaborator.
package solvecore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/blas"

	"github.com/nindanaoto/superlu-dist/blocklayout"
	"github.com/nindanaoto/superlu-dist/blockops"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/solveconfig"
	"github.com/nindanaoto/superlu-dist/solvestats"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/taskpool"
	"github.com/nindanaoto/superlu-dist/transport"
	"github.com/nindanaoto/superlu-dist/tree"
)

// Panel is the direction-agnostic view of one local factor block column
// (L) or block row (U): Owner is the global supernode id whose process
// computed/solved it, Members lists the other global supernode ids with
// a stored nonzero block against Owner, and Block(i) returns the dense
// row-major values for Members[i].
type Panel struct {
	Owner   int
	Members []int
	Block   func(i int) []float64
	Inv     []float64 // cached diagonal inverse, only meaningful when Members[0]==Owner
}

// Kind supplies the direction-specific pieces of the shared engine:
// which tag pair to communicate over, and how to read the factor.
type Kind struct {
	BcastTag, ReduceTag transport.Tag
	Uplo                blas.Uplo
	Diag                blas.Diag
	// Panels is keyed by the global supernode id K whose solved value
	// triggers updates to its Members (rows I>K for L, I<K for U); the
	// dependency direction is entirely determined by which members are
	// registered here, not by any explicit iteration order.
	Panels map[int]*Panel
}

// Deps is the per-process dependency state for one direction of solve,
// built once with zero communication (see package doc).
type Deps struct {
	g   *grid.Grid
	idx *super.Index
	k   Kind

	fmod        []atomic.Int64
	initial     []int64
	bcastTrees  map[int]*tree.BcastTree
	reduceTrees map[int]*tree.ReduceTree

	nfrecvx, nfrecvmod int
}

// Build computes fmod/frecv, the conservative bcast/reduce tree set, and
// the message-count termination targets for one process.
func Build(g *grid.Grid, idx *super.Index, k Kind, shape tree.Shape, kary, nrhs int) (*Deps, error) {
	nlb := idx.NLocalBlockRows(g)
	d := &Deps{
		g: g, idx: idx, k: k,
		fmod:        make([]atomic.Int64, nlb),
		initial:     make([]int64, nlb),
		bcastTrees:  make(map[int]*tree.BcastTree),
		reduceTrees: make(map[int]*tree.ReduceTree),
	}

	// Local-apply counts: for every panel this process owns, each
	// off-diagonal member contributes one decrement to its own row's
	// counter once that column/row's value becomes available.
	for owner, p := range k.Panels {
		for _, m := range p.Members {
			if m == owner {
				continue
			}
			lbi := idx.LBi(m, g)
			if lbi < nlb {
				d.initial[lbi]++
			}
		}
		_ = owner
	}

	for s := 0; s < idx.NSupers(); s++ {
		if g.ColOwner(s) != g.MyCol() && g.RowOwner(s) != g.MyRow() {
			continue
		}
		if g.ColOwner(s) == g.MyCol() {
			members := meshColumn(g, s)
			bt, err := tree.NewBcast(members, g.PNum(g.RowOwner(s), g.ColOwner(s)), g.Iam, nrhs, shape, kary)
			if err != nil {
				return nil, fmt.Errorf("solvecore: building broadcast tree for %d: %w", s, err)
			}
			d.bcastTrees[s] = bt
			if !bt.IsRoot() {
				d.nfrecvx++
			}
		}
		if g.RowOwner(s) == g.MyRow() {
			members := meshRow(g, s)
			rt, err := tree.NewReduce(members, g.PNum(g.RowOwner(s), g.ColOwner(s)), g.Iam, nrhs, shape, kary)
			if err != nil {
				return nil, fmt.Errorf("solvecore: building reduction tree for %d: %w", s, err)
			}
			d.reduceTrees[s] = rt
			lbi := idx.LBi(s, g)
			if lbi < nlb {
				d.initial[lbi] += int64(rt.ChildCount())
				d.nfrecvmod += rt.ChildCount()
			}
		}
	}
	for i := range d.fmod {
		d.fmod[i].Store(d.initial[i])
	}
	return d, nil
}

func meshColumn(g *grid.Grid, s int) []int {
	col := g.ColOwner(s)
	members := make([]int, 0, g.Pr)
	for r := 0; r < g.Pr; r++ {
		members = append(members, g.PNum(r, col))
	}
	return members
}

func meshRow(g *grid.Grid, s int) []int {
	row := g.RowOwner(s)
	members := make([]int, 0, g.Pc)
	for c := 0; c < g.Pc; c++ {
		members = append(members, g.PNum(row, c))
	}
	return members
}

// snapshot returns the current fmod values as a plain []int for
// super.Index.Leaves/Roots, which were designed to consume a precomputed
// counter slice.
func (d *Deps) snapshot() []int {
	out := make([]int, len(d.fmod))
	for i := range d.fmod {
		out[i] = int(d.fmod[i].Load())
	}
	return out
}

// Run drives the solve to completion: the initial frontier, the two
// master receive loops (one per message class, per spec §6's tag-based
// transport contract), and the worker pool that executes ready tasks.
func Run(ctx context.Context, t transport.Transport, g *grid.Grid, idx *super.Index, d *Deps,
	xl *blocklayout.XLayout, rl *blocklayout.RowLayout, x, lsumBuf []float64,
	cfg solveconfig.Config, stats *solvestats.Stats, pool *taskpool.Pool) error {

	e := &engine{
		ctx: ctx, t: t, g: g, idx: idx, d: d,
		xl: xl, rl: rl, x: x, lsum: lsumBuf,
		cfg: cfg, stats: stats, pool: pool,
	}

	// idx.Leaves includes every local row member whose fmod is already
	// zero, not only the diagonal owner — a non-diagonal reduce-tree
	// member can start with fmod==0 too and still has to fold its
	// (possibly trivial) contribution up the tree. ready() tells the two
	// cases apart internally via IsDiagonal.
	for _, k := range idx.Leaves(g, d.snapshot()) {
		pool.Submit(func() { e.ready(k) })
	}

	done := make(chan error, 2)
	go func() { done <- e.bcastLoop() }()
	go func() { done <- e.reduceLoop() }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	pool.Wait()
	return firstErr
}

type engine struct {
	ctx  context.Context
	t    transport.Transport
	g    *grid.Grid
	idx  *super.Index
	d    *Deps
	xl   *blocklayout.XLayout
	rl   *blocklayout.RowLayout
	x    []float64
	lsum []float64

	cfg   solveconfig.Config
	stats *solvestats.Stats
	pool  *taskpool.Pool
}

func (e *engine) bcastLoop() error {
	for c := 0; c < e.d.nfrecvx; c++ {
		start := time.Now()
		from, buf, err := e.t.Recv(e.ctx, transport.AnySource, e.d.k.BcastTag)
		if e.stats != nil {
			e.stats.AddComm(time.Since(start))
		}
		if err != nil {
			return fmt.Errorf("solvecore: broadcast receive: %w", err)
		}
		k := int(buf[0])
		if k < 0 || k >= e.idx.NSupers() {
			return fmt.Errorf("solvecore: protocol violation: broadcast header %d out of range", k)
		}
		payload := buf[1:]
		if e.stats != nil {
			e.stats.AddMessage(int(e.d.k.BcastTag), len(buf))
		}
		_ = from
		e.relayBcast(k, buf)
		e.pool.Submit(func() { e.applyColumn(k, payload) })
	}
	return nil
}

func (e *engine) relayBcast(k int, buf []float64) {
	bt, ok := e.d.bcastTrees[k]
	if !ok {
		return
	}
	for _, child := range bt.Destinations() {
		start := time.Now()
		_, err := e.t.Send(e.ctx, buf, child, e.d.k.BcastTag)
		if e.stats != nil {
			e.stats.AddComm(time.Since(start))
		}
		if err != nil {
			e.g.Abort(fmt.Errorf("solvecore: relaying broadcast for %d to %d: %w", k, child, err))
		}
	}
}

func (e *engine) reduceLoop() error {
	for c := 0; c < e.d.nfrecvmod; c++ {
		start := time.Now()
		from, buf, err := e.t.Recv(e.ctx, transport.AnySource, e.d.k.ReduceTag)
		if e.stats != nil {
			e.stats.AddComm(time.Since(start))
		}
		if err != nil {
			return fmt.Errorf("solvecore: reduce receive: %w", err)
		}
		i := int(buf[0])
		if i < 0 || i >= e.idx.NSupers() {
			return fmt.Errorf("solvecore: protocol violation: reduce header %d out of range", i)
		}
		if e.stats != nil {
			e.stats.AddMessage(int(e.d.k.ReduceTag), len(buf))
		}
		_ = from
		payload := buf[1:]
		e.foldLocal(i, payload)
	}
	return nil
}

// foldLocal adds an incoming reduce-tree contribution into this row's
// local lsum slab and retires one fmod unit.
func (e *engine) foldLocal(i int, partial []float64) {
	lbi := e.idx.LBi(i, e.g)
	blk := e.rl.Block(e.lsum, lbi)
	for j := range blk {
		blk[j] += partial[j]
	}
	if e.d.fmod[lbi].Add(-1) == 0 {
		e.pool.Submit(func() { e.ready(i) })
	}
}

// applyColumn applies every off-diagonal member of panel k (now that its
// value xK is known) to the owning rows' lsum slabs, retiring one fmod
// unit per member.
func (e *engine) applyColumn(k int, xK []float64) {
	p, ok := e.d.k.Panels[k]
	if !ok {
		return
	}
	for i, m := range p.Members {
		if m == k {
			continue
		}
		lbi := e.idx.LBi(m, e.g)
		blk := e.rl.Block(e.lsum, lbi)
		sK := len(xK) / e.xl.NRHS
		sM := len(blk) / e.xl.NRHS
		if err := blockops.ApplyOffDiag(p.Block(i), sM, sK, xK, e.xl.NRHS, blk, e.xl.NRHS, e.xl.NRHS); err != nil {
			e.g.Abort(fmt.Errorf("solvecore: applying block (%d,%d): %w", m, k, err))
		}
		if e.d.fmod[lbi].Add(-1) == 0 {
			e.pool.Submit(func() { e.ready(m) })
		}
	}
}

// ready runs once fmod[lbi(i)] reaches zero: the diagonal process solves
// and broadcasts; every other member folds its accumulated lsum up its
// reduction tree.
func (e *engine) ready(i int) {
	if e.g.IsDiagonal(i) {
		e.solveDiagonal(i)
		return
	}
	rt, ok := e.d.reduceTrees[i]
	if !ok {
		return
	}
	lbi := e.idx.LBi(i, e.g)
	blk := e.rl.Block(e.lsum, lbi)
	msg := make([]float64, 1+len(blk))
	msg[0] = float64(i)
	copy(msg[1:], blk)
	for _, parent := range rt.Destinations() {
		start := time.Now()
		_, err := e.t.Send(e.ctx, msg, parent, e.d.k.ReduceTag)
		if e.stats != nil {
			e.stats.AddComm(time.Since(start))
		}
		if err != nil {
			e.g.Abort(fmt.Errorf("solvecore: folding %d up to %d: %w", i, parent, err))
		}
	}
}

// solveDiagonal computes X[k] = inv(Lkk or Ukk) * (B[k]+lsum[k]), writes
// it into x, applies it to later columns, and broadcasts it down k's
// broadcast tree.
func (e *engine) solveDiagonal(k int) {
	p, ok := e.d.k.Panels[k]
	if !ok || len(p.Members) == 0 || p.Members[0] != k {
		e.g.Abort(fmt.Errorf("solvecore: no diagonal panel stored for supernode %d", k))
		return
	}
	off, ok := e.xl.Offset(k)
	if !ok {
		e.g.Abort(fmt.Errorf("solvecore: supernode %d not locally owned", k))
		return
	}
	sK := e.idx.SuperSize(k)
	xBlock := e.x[off : off+sK*e.xl.NRHS]

	lbi := e.idx.LBi(k, e.g)
	acc := e.rl.Block(e.lsum, lbi)
	for j := range xBlock {
		xBlock[j] += acc[j]
	}

	diagBlock := p.Block(0)
	start := time.Now()
	err := blockops.DiagSolve(e.cfg.UseInverseDiagonals, p.Inv, diagBlock, e.d.k.Uplo, e.d.k.Diag, sK, e.xl.NRHS, xBlock, e.xl.NRHS)
	if e.stats != nil {
		if e.cfg.UseInverseDiagonals {
			e.stats.AddGEMM(time.Since(start))
		} else {
			e.stats.AddTRSM(time.Since(start))
		}
	}
	if err != nil {
		e.g.Abort(fmt.Errorf("solvecore: diagonal solve for %d: %w", k, err))
		return
	}

	e.applyColumn(k, xBlock)

	bt, ok := e.d.bcastTrees[k]
	if !ok {
		return
	}
	msg := make([]float64, 1+len(xBlock))
	msg[0] = float64(k)
	copy(msg[1:], xBlock)
	for _, child := range bt.Destinations() {
		start := time.Now()
		_, err := e.t.Send(e.ctx, msg, child, e.d.k.BcastTag)
		if e.stats != nil {
			e.stats.AddComm(time.Since(start))
		}
		if err != nil {
			e.g.Abort(fmt.Errorf("solvecore: broadcasting %d to %d: %w", k, child, err))
		}
	}
}
