//go:build mpi

// This file only builds with -tags mpi, against a real MPI runtime
// launched by mpirun/mpiexec — mirroring the teacher's own mpi.Start(true)
// / defer mpi.Stop() bracketing in main.go. It is excluded from the
// default `go test ./...` run because it cannot execute without an
// actual MPI environment.
package twosided

import (
	"context"
	"testing"

	mpi "github.com/sbromberger/gompi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nindanaoto/superlu-dist/transport"
)

// TestMPIBcastAndSendRecvRoundTrip runs under at least two real MPI ranks
// (mpirun -n 2 go test -tags mpi ./transport/twosided/...) and checks that
// Transport's Bcast and Send/Recv agree with gompi's own semantics.
func TestMPIBcastAndSendRecvRoundTrip(t *testing.T) {
	mpi.Start(true)
	defer mpi.Stop()

	comm := mpi.NewCommunicator(nil)
	require.GreaterOrEqual(t, comm.Size(), 2, "run with mpirun -n 2 (or more)")

	tr := New(comm)
	ctx := context.Background()

	buf := make([]float64, 4)
	if tr.Rank() == 0 {
		for i := range buf {
			buf[i] = float64(i + 1)
		}
	}
	require.NoError(t, tr.Bcast(ctx, buf, 0))
	assert.Equal(t, []float64{1, 2, 3, 4}, buf)

	if tr.Rank() == 0 {
		h, err := tr.Send(ctx, []float64{9, 8, 7}, 1, transport.TagLBcast)
		require.NoError(t, err)
		require.NoError(t, h.Wait())
	} else if tr.Rank() == 1 {
		from, payload, err := tr.Recv(ctx, 0, transport.TagLBcast)
		require.NoError(t, err)
		assert.Equal(t, 0, from)
		assert.Equal(t, []float64{9, 8, 7}, payload)
	}

	require.NoError(t, tr.Barrier(ctx))
}
