package taskpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInlinePoolRunsSynchronously(t *testing.T) {
	p := New(1)
	var ran bool
	p.Submit(func() { ran = true })
	assert.True(t, ran)
	p.Wait()
}

func TestConcurrentPoolRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit(func() { count.Add(1) })
	}
	p.Wait()
	assert.Equal(t, int64(100), count.Load())
}

// TestNestedSubmitFanOutLargerThanWorkerCountDoesNotDeadlock guards
// against the pool wedging when every worker is, at the same instant,
// blocked inside a nested Submit call fanning out more follow-on work
// than the pool can hold in a fixed-capacity queue — the shape a
// supernode with many ready dependents produces.
func TestNestedSubmitFanOutLargerThanWorkerCountDoesNotDeadlock(t *testing.T) {
	const workers = 4
	const fanOut = 1000

	p := New(workers)
	defer p.Close()

	var count atomic.Int64
	for i := 0; i < workers; i++ {
		p.Submit(func() {
			for j := 0; j < fanOut; j++ {
				p.Submit(func() { count.Add(1) })
			}
		})
	}
	p.Wait()
	assert.Equal(t, int64(workers*fanOut), count.Load())
}
