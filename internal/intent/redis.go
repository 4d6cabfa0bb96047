package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	intentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/intent"
)

const keyNamespace = "dr"

type cmdable interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZRevRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
}

type RedisConfig struct {
	URL      string
	DB       int
	PoolSize int
}

// DialRedis opens a go-redis client from a redis:// URL and pings it.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps each intent under its own expiring key and indexes the
// session ids in a sorted set scored by creation time for the fallback lookup.
type RedisStore struct {
	store  cmdable
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewRedisStore(client cmdable, ttl time.Duration, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		store:  client,
		ttl:    ttl,
		now:    o.now,
		logger: o.logger,
	}
}

func (s *RedisStore) IntentKey(sessionID string) string {
	return buildKey("intent", sessionID)
}

func (s *RedisStore) IndexKey() string {
	return buildKey("intent", "index")
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*intentmodel.PaymentIntent, error) {
	raw, err := s.store.Get(ctx, s.IntentKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", sessionID, err)
	}

	var p intentmodel.PaymentIntent
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", sessionID, err)
	}
	return &p, nil
}

func (s *RedisStore) Put(ctx context.Context, p *intentmodel.PaymentIntent) error {
	if p == nil || p.SessionID == "" {
		return ErrMissingSessionID
	}
	entry := *p
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	if err := s.store.Set(ctx, s.IntentKey(entry.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store intent %s: %w", entry.SessionID, err)
	}
	member := redis.Z{Score: float64(entry.CreatedAt.UnixMilli()), Member: entry.SessionID}
	if err := s.store.ZAdd(ctx, s.IndexKey(), member).Err(); err != nil {
		return fmt.Errorf("index intent %s: %w", entry.SessionID, err)
	}
	return nil
}

// Delete removes the intent and its index entry. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.Del(ctx, s.IntentKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete intent %s: %w", sessionID, err)
	}
	if err := s.store.ZRem(ctx, s.IndexKey(), sessionID).Err(); err != nil {
		return fmt.Errorf("unindex intent %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) FindMostRecentUnexpired(ctx context.Context, maxAge time.Duration) (*intentmodel.PaymentIntent, error) {
	now := s.now()
	cutoff := now.Add(-maxAge).UnixMilli()

	ids, err := s.store.ZRevRangeByScore(ctx, s.IndexKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan intent index: %w", err)
	}

	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			// key expired before its index entry was pruned
			_ = s.store.ZRem(ctx, s.IndexKey(), id).Err()
			continue
		}
		if p.Age(now) < maxAge {
			return p, nil
		}
	}
	return nil, nil
}

// Sweep prunes index members whose intents are past the ttl.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl).UnixMilli()
	n, err := s.store.ZRemRangeByScore(ctx, s.IndexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep intent index: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
