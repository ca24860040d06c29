package results

import (
	"sync/atomic"
)

// SequenceManager provides thread-safe, monotonically increasing sequence IDs.
// Every stage request is tagged with one so responses can be ordered by issue
// time rather than arrival time.
type SequenceManager struct {
	currentSID int64
}

// NewSequenceManager creates a new sequence manager starting from 1
func NewSequenceManager() *SequenceManager {
	return &SequenceManager{currentSID: 0}
}

// Next returns a new, unique Sequence ID atomically.
func (s *SequenceManager) Next() int64 {
	return atomic.AddInt64(&s.currentSID, 1)
}

// GetCurrent returns the last issued SID without incrementing.
func (s *SequenceManager) GetCurrent() int64 {
	return atomic.LoadInt64(&s.currentSID)
}
