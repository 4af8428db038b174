// Package transport abstracts the two delivery mechanisms the solve
// engines can run over: two-sided tagged message passing, or one-sided
// put-and-poll delivery into a shared window. Both satisfy the same
// Transport interface so lsolve/usolve/redist are written once against
// it (see spec §6 Transport-layer contract).
package transport

import "context"

// Tag distinguishes message classes so receivers can demultiplex without
// relying on payload inspection alone.
type Tag int

const (
	TagLBcast Tag = iota
	TagLReduce
	TagUBcast
	TagUReduce
	TagRedistIndex
	TagRedistValue
)

// AnySource requests a receive from any peer, mirroring MPI's
// MPI_ANY_SOURCE.
const AnySource = -1

// Transport is the delivery abstraction both solve engines and the B↔X
// redistributor are written against.
type Transport interface {
	Rank() int
	Size() int

	// Send delivers buf to dest tagged tag. Two-sided implementations
	// may run this asynchronously; callers that need completion call
	// Wait on the returned handle.
	Send(ctx context.Context, buf []float64, dest int, tag Tag) (Handle, error)

	// Recv blocks for one message matching (source, tag); source may be
	// AnySource. Returns the sender's rank alongside the payload.
	Recv(ctx context.Context, source int, tag Tag) (from int, buf []float64, err error)

	// Bcast broadcasts buf (valid on root, filled in on every other
	// rank) to every rank in the transport's communicator.
	Bcast(ctx context.Context, buf []float64, root int) error

	// Alltoallv exchanges variable-sized buffers: sendBuf is the
	// concatenation of per-destination chunks sized by sendCounts (with
	// sendDispls giving each chunk's start); the result is unpacked the
	// same way per recvCounts/recvDispls.
	Alltoallv(ctx context.Context, sendBuf []float64, sendCounts, sendDispls []int,
		recvCounts, recvDispls []int) ([]float64, error)

	Barrier(ctx context.Context) error
}

// Handle lets a caller wait for an asynchronous Send to complete.
type Handle interface {
	Wait() error
}

// noopHandle is returned by transports whose Send is already complete
// when it returns (e.g. synchronous two-sided sends, or one-sided puts).
type noopHandle struct{ err error }

func (h noopHandle) Wait() error { return h.err }

// NoopHandle wraps err as an already-complete Handle.
func NoopHandle(err error) Handle { return noopHandle{err: err} }
