package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores keys in Redis. Batches run inside MULTI/EXEC.
type RedisKV struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisKV connects to Redis and checks the connection
func NewRedisKV(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (r *RedisKV) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return r.client.SetNX(ctx, key, value, 0).Result()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisKV) Apply(ctx context.Context, b *Batch) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range b.Sets {
			pipe.Set(ctx, k, v, 0)
		}
		for k, scores := range b.Scores {
			members := make([]redis.Z, 0, len(scores))
			for _, s := range scores {
				members = append(members, redis.Z{Score: s.Value, Member: s.Member})
			}
			pipe.ZAdd(ctx, k, members...)
		}
		return nil
	})
	return err
}

func (r *RedisKV) TopScores(ctx context.Context, key string, n int) ([]Score, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Score, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, Score{Member: member, Value: z.Score})
	}
	return out, nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
