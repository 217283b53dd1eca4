// Package lock provides short-lived Redis mutexes keyed by resource.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another owner holds the lock.
var ErrNotAcquired = errors.New("lock held by another owner")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of go-redis the locker needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Locker hands out owner-tokened locks with a TTL.
type Locker struct {
	client Client
	prefix string
}

func New(client Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	key    string
	token  string
	locker *Locker
}

func (l *Locker) key(name string) string {
	return fmt.Sprintf("%s:%s", l.prefix, name)
}

// Acquire takes the named lock or returns ErrNotAcquired.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := l.key(name)
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !acquired {
		return nil, ErrNotAcquired
	}
	return &Lease{key: key, token: token, locker: l}, nil
}

// AcquireWait polls Acquire until the lock is taken or ctx ends.
func (l *Locker) AcquireWait(ctx context.Context, name string, ttl, poll time.Duration) (*Lease, error) {
	for {
		lease, err := l.Acquire(ctx, name, ttl)
		if !errors.Is(err, ErrNotAcquired) {
			return lease, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Release deletes the key only if this lease still owns it.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, le.locker.client, []string{le.key}, le.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", le.key, err)
	}
	return nil
}

func (le *Lease) Key() string {
	return le.key
}
