// Package onesided implements transport.Transport as a software-emulated
// RMA window, per the contract in spec §4.F/§6: each rank exposes one
// window holding a message counter and a ring of slots per (tag, source);
// senders Put a payload into the receiver's designated slot and atomically
// bump the matching counter word; receivers poll counters to discover new
// messages. No RMA-over-network library exists anywhere in the retrieved
// example corpus to adapt (gompi has no window type), so this is built
// directly on sync/atomic over a shared Fabric — the natural vehicle for
// a one-sided simulation running ranks as goroutines in one process. See
// DESIGN.md for that call.
package onesided

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nindanaoto/superlu-dist/transport"
)

// slotsPerSource bounds how many messages one (source, tag) edge may have
// in flight before the destination's single receive loop drains them.
// Send now refuses to overwrite an unread slot (returning an error)
// rather than silently clobbering it, but that refusal is itself fatal to
// the solve (Grid.Abort on any Send error) — callers must keep the
// in-flight backlog on any one tree edge under this bound. See
// DESIGN.md's "transport/onesided" entry for the fan-in/fan-out degree
// this is sized against.
const slotsPerSource = 64

type slot struct {
	mu      sync.Mutex
	payload []float64
	tag     transport.Tag
	from    int
}

// window is one rank's receive-side state: a counter per (source, tag
// band) and a ring of slots per source to hold payloads awaiting pickup.
type window struct {
	counters [6][]atomic.Uint64 // indexed by Tag, then by source rank; total messages written
	slots    [6][][slotsPerSource]slot
	head     [6][]atomic.Uint64 // next slot sequence number to write, per (tag, source)
	consumed [6][]atomic.Uint64 // next slot sequence number to read, per (tag, source)
}

func newWindow(procs int) *window {
	w := &window{}
	for tg := 0; tg < 6; tg++ {
		w.counters[tg] = make([]atomic.Uint64, procs)
		w.head[tg] = make([]atomic.Uint64, procs)
		w.consumed[tg] = make([]atomic.Uint64, procs)
		w.slots[tg] = make([][slotsPerSource]slot, procs)
	}
	return w
}

// Fabric is the shared set of per-rank windows. All simulated ranks in
// one process share one Fabric; each Transport is one rank's view onto it.
type Fabric struct {
	procs   int
	windows []*window
	bcastMu sync.Mutex
	bcast   map[int][]float64 // root -> latest broadcast payload, for the simple Bcast helper
}

// NewFabric builds the shared window set for a `procs`-rank run.
func NewFabric(procs int) *Fabric {
	f := &Fabric{procs: procs, windows: make([]*window, procs), bcast: make(map[int][]float64)}
	for i := range f.windows {
		f.windows[i] = newWindow(procs)
	}
	return f
}

// Transport is one rank's handle onto a shared Fabric.
type Transport struct {
	fabric *Fabric
	rank   int
}

// New returns a Transport for `rank` on the given fabric.
func New(fabric *Fabric, rank int) *Transport {
	return &Transport{fabric: fabric, rank: rank}
}

func (t *Transport) Rank() int { return t.rank }
func (t *Transport) Size() int { return t.fabric.procs }

// Send puts buf into dest's window slot for (t.rank, tag) and bumps the
// counter only after the payload is visible, preserving the "payload
// before counter" ordering contract. It refuses to write a slot the
// receiver has not yet read — see slotsPerSource's doc comment.
func (t *Transport) Send(ctx context.Context, buf []float64, dest int, tag transport.Tag) (transport.Handle, error) {
	w := t.fabric.windows[dest]
	idx := tag
	seq := w.head[idx][t.rank].Add(1) - 1
	if backlog := seq - w.consumed[idx][t.rank].Load(); backlog >= slotsPerSource {
		return nil, fmt.Errorf("onesided: rank %d -> %d tag %d: %d unread messages already backlogged, ring has %d slots",
			t.rank, dest, tag, backlog, slotsPerSource)
	}
	s := &w.slots[idx][t.rank][seq%slotsPerSource]
	s.mu.Lock()
	s.payload = append(s.payload[:0], buf...)
	s.from = t.rank
	s.tag = tag
	s.mu.Unlock()
	w.counters[idx][t.rank].Add(1)
	return transport.NoopHandle(nil), nil
}

// Recv busy-polls this rank's window for a new message from `source`
// (or any source) tagged `tag`. The per-source read cursor lives on the
// window itself (w.consumed), not in a call-local variable: a process
// typically calls Recv many times over the life of a solve for the same
// (tag, source) pair (e.g. relaying a column broadcast once per
// supernode), so the cursor must survive across calls or every call
// would re-poll from the oldest still-counted message instead of
// advancing past what was already delivered.
func (t *Transport) Recv(ctx context.Context, source int, tag transport.Tag) (int, []float64, error) {
	w := t.fabric.windows[t.rank]
	idx := tag
	sources := []int{source}
	if source == transport.AnySource {
		sources = make([]int, t.fabric.procs)
		for i := range sources {
			sources[i] = i
		}
	}
	for {
		for _, src := range sources {
			cnt := w.counters[idx][src].Load()
			seq := w.consumed[idx][src].Load()
			if cnt > seq {
				s := &w.slots[idx][src][seq%slotsPerSource]
				s.mu.Lock()
				buf := append([]float64(nil), s.payload...)
				s.mu.Unlock()
				w.consumed[idx][src].Store(seq + 1)
				return src, buf, nil
			}
		}
		select {
		case <-ctx.Done():
			return -1, nil, ctx.Err()
		default:
		}
	}
}

// Bcast implements a root-to-all broadcast over the fabric using a
// simple publish-and-wait rendezvous (distinct from the counter-region
// point-to-point Put path, since a broadcast has no single destination
// window slot to target).
func (t *Transport) Bcast(ctx context.Context, buf []float64, root int) error {
	t.fabric.bcastMu.Lock()
	if t.rank == root {
		t.fabric.bcast[root] = append([]float64(nil), buf...)
	}
	payload, ok := t.fabric.bcast[root]
	t.fabric.bcastMu.Unlock()
	if t.rank == root {
		return nil
	}
	for !ok {
		t.fabric.bcastMu.Lock()
		payload, ok = t.fabric.bcast[root]
		t.fabric.bcastMu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	copy(buf, payload)
	return nil
}

func (t *Transport) Alltoallv(ctx context.Context, sendBuf []float64, sendCounts, sendDispls []int,
	recvCounts, recvDispls []int) ([]float64, error) {
	procs := t.Size()
	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recvBuf := make([]float64, total)
	for p := 0; p < procs; p++ {
		if p == t.rank || sendCounts[p] == 0 {
			continue
		}
		chunk := sendBuf[sendDispls[p] : sendDispls[p]+sendCounts[p]]
		if _, err := t.Send(ctx, chunk, p, transport.TagRedistValue); err != nil {
			return nil, err
		}
	}
	if sendCounts[t.rank] > 0 {
		copy(recvBuf[recvDispls[t.rank]:recvDispls[t.rank]+recvCounts[t.rank]],
			sendBuf[sendDispls[t.rank]:sendDispls[t.rank]+sendCounts[t.rank]])
	}
	for p := 0; p < procs; p++ {
		if p == t.rank || recvCounts[p] == 0 {
			continue
		}
		_, buf, err := t.Recv(ctx, p, transport.TagRedistValue)
		if err != nil {
			return nil, err
		}
		if len(buf) != recvCounts[p] {
			return nil, fmt.Errorf("onesided: alltoallv got %d words from %d, want %d", len(buf), p, recvCounts[p])
		}
		copy(recvBuf[recvDispls[p]:recvDispls[p]+recvCounts[p]], buf)
	}
	return recvBuf, nil
}

func (t *Transport) Barrier(ctx context.Context) error {
	// Software barriers are out of scope for the windowed contract (the
	// solve loop never barriers — termination is message-count driven);
	// this is a no-op provided only so Transport satisfies the interface.
	return nil
}
