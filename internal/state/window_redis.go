package state

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix = "window/"

// prune, append and read back in one round-trip. Scores are unix millis;
// the member carries the exact nanosecond timestamp and tag.
var appendScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return redis.call('ZRANGE', KEYS[1], 0, -1)
`)

// RedisWindowStore keeps windows in sorted sets so they survive restarts.
// Evaluation is serialised by Tracker, which only covers one process, so
// replicas sharing a server can each see a window just below threshold.
type RedisWindowStore struct {
	Client *redis.Client
}

func NewRedisWindowStore(redisURL string) (*RedisWindowStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisWindowStore{Client: rdb}, nil
}

func (s *RedisWindowStore) Append(ctx context.Context, key string, e Entry, span time.Duration) ([]Entry, error) {
	cutoff := e.At.Add(-span)
	member := fmt.Sprintf("%d:%d:%s", e.At.UnixNano(), e.Tag, uuid.NewString())
	// keep the key around a little longer than the span so a slow writer
	// never races the expiry
	ttl := span + time.Second

	res, err := appendScript.Run(ctx, s.Client,
		[]string{redisWindowPrefix + key},
		e.At.UnixMilli(), cutoff.UnixMilli(), member, ttl.Milliseconds(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("appending to window %s: %w", key, err)
	}

	entries := make([]Entry, 0, len(res))
	for _, m := range res {
		entry, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	// millisecond scores are coarser than the window; finish pruning here
	return prune(entries, e.At, span), nil
}

func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	return s.Client.Del(ctx, redisWindowPrefix+key).Err()
}

// Sweep is a no-op: redis expires idle windows on its own.
func (s *RedisWindowStore) Sweep(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	return 0, nil
}

func (s *RedisWindowStore) Close() error {
	return s.Client.Close()
}

func parseMember(m string) (Entry, error) {
	parts := strings.SplitN(m, ":", 3)
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("malformed window member %q", m)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed window member %q: %w", m, err)
	}
	tag, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed window member %q: %w", m, err)
	}
	return Entry{At: time.Unix(0, nanos), Tag: tag}, nil
}
