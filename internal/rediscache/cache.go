package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/logging"
)

// Options configures the Redis connection and key layout.
type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Store is a read-through domain.CacheStore: reads are served from Redis
// when possible and fall back to the backing store, writes go to the
// backing store first and then refresh Redis.
type Store struct {
	client  *redis.Client
	backing domain.CacheStore
	prefix  string
	ttl     time.Duration
}

// New connects to Redis and wraps backing.
func New(opts Options, backing domain.CacheStore) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, opts.Prefix, opts.TTL, backing), nil
}

// NewWithClient wraps backing using an existing Redis client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration, backing domain.CacheStore) *Store {
	if prefix == "" {
		prefix = "enrich"
	}
	return &Store{
		client:  client,
		backing: backing,
		prefix:  prefix,
		ttl:     ttl,
	}
}

// BuildKey returns the Redis key for a lead's cache on a network.
func (s *Store) BuildKey(leadID, network string) string {
	return fmt.Sprintf("%s:social:%s:%s", s.prefix, network, leadID)
}

func (s *Store) GetSocialCache(ctx context.Context, leadID, network string) (*domain.SocialCache, error) {
	key := s.BuildKey(leadID, network)
	l := logging.Ctx(ctx)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cache domain.SocialCache
		if err := json.Unmarshal(data, &cache); err == nil {
			return &cache, nil
		}
		l.Warn().Str("key", key).Msg("discarding undecodable cached social data")
	case !errors.Is(err, redis.Nil):
		l.Warn().Err(err).Str("key", key).Msg("redis get failed, using backing store")
	}

	cache, err := s.backing.GetSocialCache(ctx, leadID, network)
	if err != nil {
		return nil, err
	}

	if err := s.set(ctx, key, cache); err != nil {
		l.Warn().Err(err).Str("key", key).Msg("failed to populate redis")
	}
	return cache, nil
}

func (s *Store) SaveSocialCache(ctx context.Context, leadID, network string, cache *domain.SocialCache) error {
	if err := s.backing.SaveSocialCache(ctx, leadID, network, cache); err != nil {
		return err
	}

	key := s.BuildKey(leadID, network)
	if err := s.set(ctx, key, cache); err != nil {
		// The backing store is authoritative; drop the stale copy instead.
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("failed to refresh redis")
		s.client.Del(ctx, key)
	}
	return nil
}

func (s *Store) DeleteSocialCache(ctx context.Context, leadID, network string) error {
	if err := s.client.Del(ctx, s.BuildKey(leadID, network)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return s.backing.DeleteSocialCache(ctx, leadID, network)
}

// DeleteStaleCaches prunes the backing store. When any rows were removed
// every cached social entry under the prefix is evicted, since Redis does
// not know which leads were pruned.
func (s *Store) DeleteStaleCaches(ctx context.Context, maxAge time.Duration) (int64, error) {
	pruner, ok := s.backing.(domain.CachePruner)
	if !ok {
		return 0, fmt.Errorf("backing store does not support pruning")
	}

	deleted, err := pruner.DeleteStaleCaches(ctx, maxAge)
	if err != nil || deleted == 0 {
		return deleted, err
	}

	if err := s.evictAll(ctx); err != nil {
		return deleted, fmt.Errorf("failed to evict redis entries: %w", err)
	}
	return deleted, nil
}

// Close closes the Redis client. The backing store is not closed.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) set(ctx context.Context, key string, cache *domain.SocialCache) error {
	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (s *Store) evictAll(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":social:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
