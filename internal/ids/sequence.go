// Package ids issues time derived identifiers that stay unique when called
// faster than the clock ticks.
package ids

import (
	"sync"
	"time"
)

// Sequence yields strictly increasing unix-millisecond values.
type Sequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewSequence() *Sequence { return &Sequence{now: time.Now} }

// NewSequenceAt uses clock instead of time.Now. Handy in tests.
func NewSequenceAt(clock func() time.Time) *Sequence { return &Sequence{now: clock} }

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return ms
}
