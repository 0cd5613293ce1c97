package ephemeral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

// consumeLua takes a key out of Redis in one step.
// KEYS[1] = request key
var consumeLua = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  redis.call('DEL', KEYS[1])
end
return v
`)

// RedisStore shares requests between server instances through Redis. Keys
// are "<prefix>:<kind>:<request id>" and carry a native TTL; the stored
// record repeats the expiry so a late read never returns a stale entry.
//
// The client is owned by the caller; Close does not close it.
type RedisStore[T any] struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
	closed atomic.Bool
}

func NewRedisStore[T any](redisClient redis.UniversalClient, prefix, kind string) *RedisStore[T] {
	if prefix == "" {
		prefix = "passkeeper"
	}
	return &RedisStore[T]{
		redis:  redisClient,
		prefix: prefix + ":" + kind,
		now:    time.Now,
	}
}

func (s *RedisStore[T]) key(requestID string) string {
	return s.prefix + ":" + requestID
}

func (s *RedisStore[T]) Store(ctx context.Context, requestID string, payload T, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if ttl <= 0 {
		if err := s.redis.Del(ctx, s.key(requestID)).Err(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		return nil
	}

	data, err := json.Marshal(Request[T]{
		RequestID: requestID,
		Payload:   payload,
		ExpiresAt: s.now().Add(ttl).UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(requestID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStore[T]) RetrieveAndRemove(ctx context.Context, requestID string) (T, bool, error) {
	var zero T

	if s.closed.Load() {
		return zero, false, ErrClosed
	}

	data, err := consumeLua.Run(ctx, s.redis, []string{s.key(requestID)}).Text()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	var r Request[T]
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return zero, false, fmt.Errorf("%w: undecodable request record", common.ErrStorageUnavailable)
	}
	if r.Expired(s.now()) {
		return zero, false, nil
	}
	return r.Payload, true, nil
}

// Close marks the store unusable. It is idempotent.
func (s *RedisStore[T]) Close() error {
	s.closed.Store(true)
	return nil
}
