package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as JSON strings in Redis. Keys also carry a server
// side expiry so abandoned entries disappear without a purge.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client. ttl <= 0 disables server-side expiry.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, fmt.Errorf("corrupted cache entry %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, e.Key, data, s.ttl).Err(); err != nil {
		return mapOOM(err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var entries []Entry
	for iter.Next(ctx) {
		e, ok, err := s.Get(ctx, iter.Val())
		if err != nil || !ok {
			continue
		}
		entries = append(entries, e)
	}
	if err := iter.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// mapOOM recognizes Redis' maxmemory rejection.
func mapOOM(err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
