package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

const (
	defaultRedisHost         = "localhost"
	defaultRedisPort         = 6379
	defaultRedisPoolSize     = 10
	defaultRedisDialTimeout  = 5 * time.Second
	defaultRedisReadTimeout  = 3 * time.Second
	defaultRedisWriteTimeout = 3 * time.Second
	deletePatternBatchSize   = 128
)

type RedisConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

func (c *RedisConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = defaultRedisHost
	}
	if c.Port == 0 {
		c.Port = defaultRedisPort
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaultRedisPoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultRedisDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultRedisReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultRedisWriteTimeout
	}
}

// RedisStore is the primary tier backed by a Redis server. It reports
// misses and transport failures as distinct errors so the engine can
// fall through to the in-process tier only when Redis itself failed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(config *types.PrimaryStoreConfig) (*RedisStore, error) {
	redisConfig := &RedisConfig{}
	if config != nil && config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to parse redis configuration")
		}
	}
	redisConfig.applyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         utils.JoinHostPort(redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, types.WrapError(err, "redis get failed")
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return types.WrapError(err, "redis set failed")
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return types.WrapError(err, "redis delete failed")
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN MATCH and deletes matches in
// batches. Redis glob '*' semantics line up with MatchPattern, which keeps
// the two tiers consistent under a single pattern language.
func (r *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, types.ErrPatternEmpty
	}

	deleted := 0
	batch := make([]string, 0, deletePatternBatchSize)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deletePatternBatchSize {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, types.WrapError(err, "redis batch delete failed")
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, types.WrapError(err, "redis scan failed")
	}

	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return deleted, types.WrapError(err, "redis batch delete failed")
		}
		deleted += len(batch)
	}

	return deleted, nil
}

func (r *RedisStore) Flush(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return types.WrapError(err, "redis flush failed")
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return types.WrapError(err, "redis ping failed")
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ types.CacheStore = (*RedisStore)(nil)
