package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockPrefix = "lock:"

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// compare-and-delete so an expired lock re-taken by another holder is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is one held key. The token is unique per acquisition.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Locker takes fail-fast locks under a key prefix
type Locker struct {
	client *Client
	prefix string
}

func NewLocker(client *Client, prefix string) *Locker {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// Acquire makes a single SET NX attempt and never waits
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: l.client, key: l.prefix + key, token: uuid.NewString()}

	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lock.key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).WithFields(map[string]any{"key": lock.key, "ttl": ttl.String()}).Debug("Lock acquired")
	return lock, nil
}

// AcquireAll locks the distinct keys in sorted order so concurrent callers cannot deadlock.
// When any key is taken the locks already held are released and ErrLockNotAcquired is
// returned. The returned func releases everything.
func (l *Locker) AcquireAll(ctx context.Context, keys []string, ttl time.Duration) (func(context.Context) error, error) {
	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*Lock, 0, len(ordered))
	release := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			errs = append(errs, held[i].Release(ctx))
		}
		return errors.Join(errs...)
	}

	for _, key := range ordered {
		lock, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			if relErr := release(ctx); relErr != nil {
				l.client.logger.WithContext(ctx).WithError(relErr).Warn("Could not release partially acquired locks")
			}
			return nil, err
		}
		held = append(held, lock)
	}
	return release, nil
}

// Release deletes the key if this lock still owns it; otherwise ErrLockNotHeld
func (lock *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", lock.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	lock.client.logger.WithContext(ctx).WithField("key", lock.key).Debug("Lock released")
	return nil
}
