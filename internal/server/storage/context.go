// Package storage picks the configured backends once at startup and bundles
// the resulting stores in a Context that is passed to everything that needs
// them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/cryptox"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
	"github.com/dmitrijs2005/passkeeper/internal/logging"
	"github.com/dmitrijs2005/passkeeper/internal/server/config"
	"github.com/dmitrijs2005/passkeeper/internal/server/ephemeral"
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
	"github.com/dmitrijs2005/passkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

// Context owns every store of a running server.
type Context struct {
	Credentials   *services.CredentialStore
	Registrations ephemeral.Store[models.RegistrationRequest]
	Assertions    ephemeral.Store[models.AssertionRequest]

	// RequestTTL is the configured lifetime of ceremony requests.
	RequestTTL time.Duration

	redis     redis.UniversalClient
	closeOnce sync.Once
	closeErr  error
}

// newRedisClient is a seam for tests.
var newRedisClient = func(opts *redis.UniversalOptions) redis.UniversalClient {
	return redis.NewUniversalClient(opts)
}

// Open builds a Context from cfg. Backend names and key material are checked
// before any connection is made; a failure part way through closes whatever
// was already opened.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Context, error) {
	credentialBackend, err := ParseCredentialBackend(cfg.CredentialBackend)
	if err != nil {
		return nil, err
	}
	requestBackend, err := ParseRequestBackend(cfg.RequestBackend)
	if err != nil {
		return nil, err
	}
	cipher, err := cryptox.NewCipherFromString(cfg.EnvelopeKeySeed)
	if err != nil {
		return nil, err
	}

	ttl := cfg.RequestTTL
	if ttl <= 0 {
		ttl = ephemeral.DefaultTTL
	}
	sc := &Context{RequestTTL: ttl}

	dialect := credentialBackend.Dialect()
	db, err := dbx.Open(dialect, cfg.DatabaseDSN, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrations: %v", common.ErrStorageUnavailable, err)
	}
	sc.Credentials = services.NewCredentialStore(db, rm, cipher, cfg.MaxCredentialsPerUser, logger)

	switch requestBackend {
	case RequestMemory:
		sc.Registrations = ephemeral.NewMemoryStore[models.RegistrationRequest](cfg.SweepInterval, logger)
		sc.Assertions = ephemeral.NewMemoryStore[models.AssertionRequest](cfg.SweepInterval, logger)

	case RequestRedis:
		client := newRedisClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = sc.Close()
			return nil, fmt.Errorf("%w: redis: %v", common.ErrStorageUnavailable, err)
		}
		sc.redis = client
		sc.Registrations = ephemeral.NewRedisStore[models.RegistrationRequest](client, cfg.RedisKeyPrefix, "registration")
		sc.Assertions = ephemeral.NewRedisStore[models.AssertionRequest](client, cfg.RedisKeyPrefix, "assertion")
	}

	logger.Info(ctx, "storage opened",
		"module", "storage",
		"credentials", string(credentialBackend),
		"requests", string(requestBackend),
	)
	return sc, nil
}

// Close releases every store and the Redis client. Only the first call does
// any work.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.Registrations != nil {
			errs = append(errs, c.Registrations.Close())
		}
		if c.Assertions != nil {
			errs = append(errs, c.Assertions.Close())
		}
		if c.Credentials != nil {
			errs = append(errs, c.Credentials.Close())
		}
		if c.redis != nil {
			errs = append(errs, c.redis.Close())
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
