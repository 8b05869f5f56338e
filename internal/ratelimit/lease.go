package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out single-holder redis leases so that only one process runs
// a periodic sweep at a time.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// Lease is a held lock. Release is a no-op once the ttl expired and another
// holder took over.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
	}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// Acquire returns nil without error when another holder owns key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if !l.Enabled() {
		return nil, errors.New("locker not configured")
	}
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	return le.locker.release.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}
