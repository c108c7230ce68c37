package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const nonceLockRetry = 50 * time.Millisecond

// releaseNonceLock deletes the lock only if it still carries the caller's token, so an
// expired holder cannot free a lock someone else has since taken.
var releaseNonceLock = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NonceStore implements ports.SignerLock using Redis SET NX. Every replica
// signing with the same custody key takes the lock before reading the pending
// nonce and holds it until the transaction is broadcast.
type NonceStore struct {
	client *goredis.Client
	prefix string
}

// NewNonceStore creates a new Redis-backed signer lock.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
	}
}

// TryLock makes a single attempt. Returns the token and true if the lock was
// free.
func (s *NonceStore) TryLock(ctx context.Context, signer string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := s.client.SetArgs(ctx, s.prefix+signer, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// held by another replica
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis nonce lock: %w", err)
	}
	return token, result == "OK", nil
}

// Lock waits for the signer lock until ctx is done.
func (s *NonceStore) Lock(ctx context.Context, signer string, ttl time.Duration) (string, error) {
	for {
		token, ok, err := s.TryLock(ctx, signer, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		t := time.NewTimer(nonceLockRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", fmt.Errorf("wait for nonce lock on %s: %w", signer, ctx.Err())
		case <-t.C:
		}
	}
}

// Unlock releases the lock if token still owns it. A lock that already lapsed
// is not an error.
func (s *NonceStore) Unlock(ctx context.Context, signer, token string) error {
	if err := releaseNonceLock.Run(ctx, s.client, []string{s.prefix + signer}, token).Err(); err != nil {
		return fmt.Errorf("redis nonce unlock: %w", err)
	}
	return nil
}
