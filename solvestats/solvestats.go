// Package solvestats accumulates the timing and message-volume counters
// the reference source keeps in SuperLUStat_t (stat->utime[SOL_*] and
// msgcnt[4]), renamed to Go idiom, and logs them through zap.
package solvestats

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats accumulates per-solve timing and message-volume counters. All
// fields are safe to update concurrently from worker-pool goroutines.
type Stats struct {
	mu sync.Mutex

	SolComm time.Duration
	SolGEMM time.Duration
	SolTRSM time.Duration
	SolTot  time.Duration

	// MsgVol/MsgCnt are indexed by transport.Tag-sized message class:
	// 0=L broadcast, 1=L reduce, 2=U broadcast, 3=U reduce.
	MsgVol [4]int64
	MsgCnt [4]int64
}

// New returns a zeroed Stats.
func New() *Stats { return &Stats{} }

// AddComm records time spent inside transport calls.
func (s *Stats) AddComm(d time.Duration) {
	s.mu.Lock()
	s.SolComm += d
	s.mu.Unlock()
}

// AddGEMM records time spent in the inverse-diagonal GEMM path.
func (s *Stats) AddGEMM(d time.Duration) {
	s.mu.Lock()
	s.SolGEMM += d
	s.mu.Unlock()
}

// AddTRSM records time spent in the TRSM fallback path.
func (s *Stats) AddTRSM(d time.Duration) {
	s.mu.Lock()
	s.SolTRSM += d
	s.mu.Unlock()
}

// AddTotal records the wall time of one complete solve phase (mirroring
// the reference source's stat->utime[SOL_TOTAL]).
func (s *Stats) AddTotal(d time.Duration) {
	s.mu.Lock()
	s.SolTot += d
	s.mu.Unlock()
}

// AddMessage records one message of the given class and its word count;
// the solve engines call it for every broadcast or reduce message they
// receive.
func (s *Stats) AddMessage(class int, words int) {
	s.mu.Lock()
	s.MsgCnt[class]++
	s.MsgVol[class] += int64(words)
	s.mu.Unlock()
}

// Log emits a structured summary line.
func (s *Stats) Log(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l.Info("solve statistics",
		zap.Duration("sol_comm", s.SolComm),
		zap.Duration("sol_gemm", s.SolGEMM),
		zap.Duration("sol_trsm", s.SolTRSM),
		zap.Duration("sol_tot", s.SolTot),
		zap.Int64s("msg_cnt", s.MsgCnt[:]),
		zap.Int64s("msg_vol", s.MsgVol[:]),
	)
}
