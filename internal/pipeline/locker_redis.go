package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "pipehub:scrape_lock:"

// releaseScript deletes the lock only when it still holds our token. After
// the TTL expires another process may own the key, and a plain DEL would
// drop its lock.
var releaseScript = redis.NewScript(
	`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`)

// RedisLocker coordinates scrape dispatches across processes with SET NX and
// a TTL. The TTL bounds how long a crashed holder can block a source.
type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	pollEvery time.Duration
}

var _ SourceLocker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, pollEvery: 100 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, sourceID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", lockKeyPrefix, sourceID)
	token := newLockToken()
	ticker := time.NewTicker(l.pollEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock for source %d: %w", sourceID, err)
		}
		if ok {
			release := func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				releaseScript.Run(ctx, l.client, []string{key}, token)
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newLockToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
