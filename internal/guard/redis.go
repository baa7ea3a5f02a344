package guard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"careerforge/internal/logger"
	"careerforge/pkg/interfaces"
)

// PrefixLock namespaces marker keys in Redis
const PrefixLock = "lock:"

// releaseScript deletes the marker only when it still holds the caller's marker id
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard stores markers as Redis keys so several instances share one register
// ARCHITECTURAL DISCOVERY: SET NX PX is the atomic acquire and Redis' own key expiry is
// the TTL; no sweeper is needed for this backend
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewRedisGuard creates a Redis-backed guard; ttl <= 0 selects DefaultTTL
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisGuard{
		client: client,
		ttl:    ttl,
		prefix: PrefixLock,
		log:    log.With("component", "guard", "backend", "redis"),
	}
}

func (g *RedisGuard) redisKey(key Key) string {
	return g.prefix + key.String()
}

// marker values are "<markerID>|<startedAt unix nanos>"
func encodeMarker(id string, startedAt time.Time) string {
	return id + "|" + strconv.FormatInt(startedAt.UnixNano(), 10)
}

func decodeMarker(value string) (marker, error) {
	id, nanos, ok := strings.Cut(value, "|")
	if !ok {
		return marker{}, fmt.Errorf("malformed marker %q", value)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return marker{}, fmt.Errorf("malformed marker %q: %w", value, err)
	}
	return marker{id: id, startedAt: time.Unix(0, n)}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, key Key) (Token, error) {
	if err := key.validate(); err != nil {
		return Token{}, err
	}

	now := time.Now()
	id := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.redisKey(key), encodeMarker(id, now), g.ttl).Result()
	if err != nil {
		return Token{}, fmt.Errorf("%w: acquire %s: %w", interfaces.ErrPersistence, key, err)
	}
	if !ok {
		return Token{}, inProgress(key)
	}
	return Token{Key: key, MarkerID: id, StartedAt: now}, nil
}

func (g *RedisGuard) Release(ctx context.Context, token Token) error {
	value := encodeMarker(token.MarkerID, token.StartedAt)
	deleted, err := releaseScript.Run(ctx, g.client, []string{g.redisKey(token.Key)}, value).Int()
	if err != nil {
		return fmt.Errorf("%w: release %s: %w", interfaces.ErrPersistence, token.Key, err)
	}
	if deleted == 0 {
		// Redis expired the marker natively; this is where the forced expiry becomes visible
		g.log.Warn("marker expired before release",
			"key", token.Key.String(),
			"age", time.Since(token.StartedAt).String(),
			"ttl", g.ttl.String(),
		)
	}
	return nil
}

func (g *RedisGuard) ListActive(ctx context.Context) ([]ActiveOperation, error) {
	var active []ActiveOperation
	now := time.Now()

	iter := g.client.Scan(ctx, 0, g.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		value, err := g.client.Get(ctx, redisKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list markers: %w", interfaces.ErrPersistence, err)
		}

		m, err := decodeMarker(value)
		if err != nil {
			g.log.Warn("skipping marker", "redis_key", redisKey, "error", err)
			continue
		}

		name := strings.TrimPrefix(redisKey, g.prefix)
		op, resource, _ := strings.Cut(name, ":")
		active = append(active, ActiveOperation{
			Key:       Key{Operation: op, ResourceID: resource},
			Name:      name,
			StartedAt: m.startedAt,
			Elapsed:   now.Sub(m.startedAt),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: list markers: %w", interfaces.ErrPersistence, err)
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active, nil
}

var _ Guard = (*RedisGuard)(nil)
