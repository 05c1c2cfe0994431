package protocol

import (
	"context"
	"sync"
	"sync/atomic"
)

// stubRecorder captures saved records and can be told to fail.
type stubRecorder struct {
	mu    sync.Mutex
	calls atomic.Int32
	err   error
	last  *ExecutionRecord
}

func (s *stubRecorder) SaveRecord(ctx context.Context, rec *ExecutionRecord) error {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()
	return s.err
}
