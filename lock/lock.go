// Package lock implements a distributed exclusive lease: one consolidator
// at a time per (resource, id, field), addressed by
// "<resource>:<id>:<field>", backed by Redis SETNX+TTL.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another owner currently holds the
// lock. Callers should skip the work and retry on the next scheduling
// tick.
var ErrHeld = errors.New("lock: held by another owner")

// ErrStale is returned by Release when the caller's lease no longer
// matches what is stored — it was stolen after TTL expiry. A stale holder
// must not commit work done under the assumption it still held the lock.
var ErrStale = errors.New("lock: lease stale, stolen by another owner")

// Lease is a held lock, returned by Acquire and required to Release it.
type Lease struct {
	Key        string
	Owner      string
	AcquiredAt time.Time
	Fence      int64
}

// Manager is the exclusive lock manager, the sole writer of the locks
// keyspace.
type Manager struct {
	client *redis.Client
	prefix string
}

// New connects to Redis (or a Redis-compatible store) at url and returns
// a Manager. Ping fails fast on a bad connection string.
func New(ctx context.Context, url string) (*Manager, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("lock: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("lock: connect to redis: %w", err)
	}

	return &Manager{client: client, prefix: "lock:"}, nil
}

// NewWithClient wraps an already-constructed *redis.Client (used by tests
// against miniredis, and by callers that already own a shared client).
func NewWithClient(client *redis.Client) *Manager {
	return &Manager{client: client, prefix: "lock:"}
}

func (m *Manager) key(name string) string {
	return m.prefix + name
}

// Acquire attempts to take the named lock with the given owner and TTL. It
// returns ErrHeld if another owner currently holds it. The fencing token
// monotonically increases across acquisitions of the same key, via Redis
// INCR on a companion counter key.
func (m *Manager) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (*Lease, error) {
	fence, err := m.client.Incr(ctx, m.key(name)+":fence").Result()
	if err != nil {
		return nil, fmt.Errorf("lock: fence counter: %w", err)
	}

	lease := &Lease{
		Key:        name,
		Owner:      owner,
		AcquiredAt: time.Now().UTC(),
		Fence:      fence,
	}

	ok, err := m.client.SetNX(ctx, m.key(name), strconv.FormatInt(fence, 10), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: setnx: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return lease, nil
}

// releaseScript deletes the lock key only if its stored fence still matches
// the caller's — a Lua script so the compare-and-delete is atomic even
// against a concurrent steal between Get and Del.
var releaseScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// Release releases lease, verifying the stored fence still matches (i.e.
// nobody stole the lock after TTL expiry and re-acquired it). Returns
// ErrStale if the fence no longer matches; the caller must not have
// committed any writes made under the assumption it still held the lock.
func (m *Manager) Release(ctx context.Context, lease *Lease) error {
	res, err := releaseScript.Run(ctx, m.client, []string{m.key(lease.Key)}, lease.Fence).Int()
	if err != nil {
		return fmt.Errorf("lock: release: %w", err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrStale
	default:
		return nil // already gone: TTL expired and nobody re-acquired; idempotent.
	}
}

// IsLocked reports whether name currently has a live lease, without taking
// ownership.
func (m *Manager) IsLocked(ctx context.Context, name string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
