package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores the mapping in a single Redis hash keyed by post number
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister connects to Redis and verifies the connection
func NewRedisPersister(ctx context.Context, address, password string, db int, key string) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if key == "" {
		key = "postlink:links"
	}

	return &RedisPersister{
		client: client,
		key:    key,
	}, nil
}

// Name implements Persister
func (r *RedisPersister) Name() string { return "redis" }

// Load reads every field of the hash. Fields that are not post numbers are skipped.
func (r *RedisPersister) Load(ctx context.Context) (map[int]string, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read hash %s: %w", r.key, err)
	}

	links := make(map[int]string, len(fields))
	for field, url := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		links[n] = url
	}
	return links, nil
}

// Save replaces the hash in a single MULTI/EXEC transaction
func (r *RedisPersister) Save(ctx context.Context, links map[int]string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(links) > 0 {
		args := make([]any, 0, 2*len(links))
		for _, n := range sortedKeys(links) {
			args = append(args, strconv.Itoa(n), links[n])
		}
		pipe.HSet(ctx, r.key, args...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write hash %s: %w", r.key, err)
	}
	return nil
}

// Ping implements Pinger
func (r *RedisPersister) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisPersister) Close() error {
	return r.client.Close()
}
