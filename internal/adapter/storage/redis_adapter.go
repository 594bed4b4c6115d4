package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/port"
)

const (
	orderLockKeyPrefix   = "lock:order:"
	idempotencyKeyPrefix = "idempotency:order:"
	pendingMarker        = "pending"
	lockRetryInterval    = 10 * time.Millisecond
)

var ErrLockLost = errors.New("order lock expired before release")

// releaseLockScript deletes the lock only while it still carries our token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is an order lock shared by every server instance.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func (r *RedisLocker) Lock(ctx context.Context, orderID int64) (port.ReleaseFunc, error) {
	key := fmt.Sprintf("%s%d", orderLockKeyPrefix, orderID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, key, token, r.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, r.waitError(ctx)
			}
			return nil, errors.Wrap(err, "acquire order lock")
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			return nil, r.waitError(ctx)
		case <-ticker.C:
		}
	}
}

// waitError tells a caller that went away apart from a lock that stayed held.
func (r *RedisLocker) waitError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return domain.ErrOrderLocked
}

func (r *RedisLocker) releaser(key, token string) port.ReleaseFunc {
	return func(ctx context.Context) error {
		released, err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return errors.Wrap(err, "release order lock")
		}
		if released == 0 {
			return ErrLockLost
		}
		return nil
	}
}

// RedisIdempotencyStore keeps one key per create request. A reserved key
// holds a pending marker until the created order id is bound to it.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (r *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, r.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "reserve key")
	}
	return ok, nil
}

func (r *RedisIdempotencyStore) Bind(ctx context.Context, key string, orderID int64) error {
	if err := r.client.Set(ctx, idempotencyKeyPrefix+key, orderID, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "bind key")
	}
	return nil
}

func (r *RedisIdempotencyStore) Resolve(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) || value == pendingMarker {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "resolve key")
	}

	orderID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse order id %q", value)
	}
	return orderID, nil
}

func (r *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release key")
	}
	return nil
}
