package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/logging"
)

// MemoryStore is a process-local Store. A background goroutine removes
// expired entries every sweep interval until Close.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	entries map[string]Request[T]
	closed  bool

	now    func() time.Time
	logger logging.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore starts a MemoryStore. sweepInterval <= 0 means
// DefaultSweepInterval.
func NewMemoryStore[T any](sweepInterval time.Duration, logger logging.Logger) *MemoryStore[T] {
	return newMemoryStore[T](sweepInterval, logger, time.Now)
}

func newMemoryStore[T any](sweepInterval time.Duration, logger logging.Logger, now func() time.Time) *MemoryStore[T] {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore[T]{
		entries: make(map[string]Request[T]),
		now:     now,
		logger:  logger.With("module", "ephemeral", "backend", "memory"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(sweepInterval)
	return s
}

func (s *MemoryStore[T]) Store(_ context.Context, requestID string, payload T, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if ttl <= 0 {
		delete(s.entries, requestID)
		return nil
	}

	s.entries[requestID] = Request[T]{
		RequestID: requestID,
		Payload:   payload,
		ExpiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore[T]) RetrieveAndRemove(_ context.Context, requestID string) (T, bool, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return zero, false, ErrClosed
	}

	r, ok := s.entries[requestID]
	if !ok {
		return zero, false, nil
	}
	delete(s.entries, requestID)

	if r.Expired(s.now()) {
		return zero, false, nil
	}
	return r.Payload, true, nil
}

// Len returns the number of entries held, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper and drops all entries.
func (s *MemoryStore[T]) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		s.mu.Lock()
		s.closed = true
		s.entries = nil
		s.mu.Unlock()
	})
	return nil
}

func (s *MemoryStore[T]) run(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.logger.Debug(context.Background(), "expired requests swept", "count", n)
			}
		}
	}
}

func (s *MemoryStore[T]) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, r := range s.entries {
		if r.Expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
