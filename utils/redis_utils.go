package utils

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/Luismorlan/picfeed/utils/flag"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	redistrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/go-redis/redis.v8"
)

const cacheKeyDelimiter = ":"

// RedisKeyValueStore is the shared cache used by every api server replica. It only speaks
// plain string get/set/del, entries never expire on their own and are subject to the
// server's eviction policy only.
type RedisKeyValueStore struct {
	inner redis.UniversalClient

	// set when the store owns an embedded server, see GetEmbeddedKeyValueStore
	embedded *miniredis.Miniredis
}

func NewRedisKeyValueStore(client redis.UniversalClient) *RedisKeyValueStore {
	return &RedisKeyValueStore{inner: client}
}

// GetRedisKeyValueStore connects to the Redis server specified by env. Every command is
// traced as a child span of the request context.
func GetRedisKeyValueStore(ctx context.Context) (*RedisKeyValueStore, error) {
	redisClient := redistrace.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	}, redistrace.WithServiceName(flag.ServiceName+"-redis"))
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return NewRedisKeyValueStore(redisClient), nil
}

// GetEmbeddedKeyValueStore starts an in-process Redis server, used in development when no
// REDIS_HOST is configured. Close stops the server as well.
func GetEmbeddedKeyValueStore() (*RedisKeyValueStore, error) {
	server, err := miniredis.Run()
	if err != nil {
		return nil, err
	}
	s := NewRedisKeyValueStore(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	s.embedded = server
	return s, nil
}

// CreateTempRedis starts an embedded Redis for a single test, it is shut down when the
// test finishes. The server is returned so tests can inspect keys and TTLs directly.
func CreateTempRedis(t *testing.T) (*RedisKeyValueStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	s := NewRedisKeyValueStore(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	t.Cleanup(func() {
		s.inner.Close()
	})
	return s, server
}

// Get returns found=false on a missing key, redis.Nil never leaks to callers.
func (r *RedisKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.inner.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKeyValueStore) Set(ctx context.Context, key string, value string) error {
	// 0 expiration means no TTL
	return r.inner.Set(ctx, key, value, 0).Err()
}

func (r *RedisKeyValueStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.inner.Del(ctx, keys...).Err()
}

func (r *RedisKeyValueStore) Close() error {
	err := r.inner.Close()
	if r.embedded != nil {
		r.embedded.Close()
	}
	return err
}

// EncodeCacheKey builds keys in the form "<kind>:<id>", e.g. "user:42".
func EncodeCacheKey(kind string, id uint64) string {
	return kind + cacheKeyDelimiter + strconv.FormatUint(id, 10)
}
