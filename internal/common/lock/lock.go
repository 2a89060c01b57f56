// internal/common/lock/lock.go
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "recurring:claim:"

// Locker hands out short-lived per-series leases so that overlapping
// scheduler runs never generate the same deal twice.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// Lease is a held claim on one series. Release is safe to call more
// than once.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

func New(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Acquire attempts to claim the series. Returns (nil, false, nil) when
// another run already holds the claim.
func (l *Locker) Acquire(ctx context.Context, seriesID string) (*Lease, bool, error) {
	key := keyPrefix + seriesID
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire claim for %s: %w", seriesID, err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Lease{client: l.client, key: key, token: token}, true, nil
}

// Lua compare-and-delete so a lease that expired and was re-acquired by
// another run is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release gives up the claim if this lease still holds it.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	return releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err()
}
