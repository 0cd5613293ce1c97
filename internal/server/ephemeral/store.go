// Package ephemeral holds short-lived ceremony requests between the start and
// finish of a WebAuthn ceremony. Entries expire on their own and can be
// consumed exactly once.
package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long a ceremony request stays retrievable.
	DefaultTTL = 300 * time.Second
	// DefaultSweepInterval is how often MemoryStore drops expired entries.
	DefaultSweepInterval = time.Minute
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = fmt.Errorf("%w: request store closed", common.ErrStorageUnavailable)

// Store keeps payloads of type T under request ids.
type Store[T any] interface {
	// Store saves payload under requestID until now+ttl, replacing any
	// previous entry. A ttl <= 0 stores nothing and drops the previous entry.
	Store(ctx context.Context, requestID string, payload T, ttl time.Duration) error
	// RetrieveAndRemove atomically takes the entry out of the store. Expired
	// and unknown ids both report false.
	RetrieveAndRemove(ctx context.Context, requestID string) (T, bool, error)
	Close() error
}

// Request is a stored entry.
type Request[T any] struct {
	RequestID string    `json:"request_id"`
	Payload   T         `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether r is no longer retrievable at now.
func (r Request[T]) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// NewRequestID returns a random UUIDv4 string.
func NewRequestID() string {
	return uuid.NewString()
}
