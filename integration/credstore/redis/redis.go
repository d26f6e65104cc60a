// Package redis provides a Redis-backed credential store with connection
// validation and retry logic, for deployments where the session must survive
// the client process (kiosk restarts, thin terminals sharing a profile).
//
// Stored keys expire in Redis together with the token, so stale credentials
// age out even if the client never gets a chance to clear them.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicore/authkit/core/session"
)

// Config holds Redis connection configuration.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	// KeyPrefix namespaces the credential keys, e.g. per terminal.
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:""`
}

// Connect creates a Redis client, verifying connectivity with a ping before
// returning. Transient failures are retried with the configured interval.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}

	client := redis.NewClient(opts)

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	deadline := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var pingErr error
	for i := 0; i < attempts; i++ {
		if pingErr = client.Ping(deadline).Err(); pingErr == nil {
			return client, nil
		}
		select {
		case <-deadline.Done():
			client.Close()
			return nil, errors.Join(ErrRedisNotReady, pingErr, deadline.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	client.Close()
	return nil, errors.Join(ErrRedisNotReady, pingErr)
}

// Store persists the credential keys in Redis. Each key carries a TTL
// matching the record expiry.
type Store struct {
	client redis.Cmdable
	prefix string
}

// NewStore returns a Redis-backed credential store using the given client.
func NewStore(client redis.Cmdable, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Load returns the stored record, or session.ErrNotFound when any of the
// credential keys is missing (absent or partial state).
func (s *Store) Load(ctx context.Context) (session.Record, error) {
	keys := []string{s.key(session.KeyToken), s.key(session.KeyUser), s.key(session.KeyExpiry)}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return session.Record{}, errors.Join(session.ErrLoadCredentials, err)
	}

	values := make(map[string]string, 3)
	names := []string{session.KeyToken, session.KeyUser, session.KeyExpiry}
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			return session.Record{}, session.ErrNotFound
		}
		values[names[i]] = str
	}
	return session.RecordFromValues(values)
}

// Save stores the record with a TTL matching its expiry, so Redis drops the
// credentials on its own once the token is dead.
func (s *Store) Save(ctx context.Context, record session.Record) error {
	values, err := record.Values()
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	pipe := s.client.TxPipeline()
	for name, value := range values {
		pipe.Set(ctx, s.key(name), value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(session.ErrSaveCredentials, err)
	}
	return nil
}

// Clear removes the credential keys.
func (s *Store) Clear(ctx context.Context) error {
	keys := []string{s.key(session.KeyToken), s.key(session.KeyUser), s.key(session.KeyExpiry)}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Join(session.ErrSaveCredentials, err)
	}
	return nil
}

var _ session.Store = (*Store)(nil)
