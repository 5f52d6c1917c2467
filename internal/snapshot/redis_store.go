// Package snapshot mirrors item snapshots into Redis for read-only consumers
// such as a stage display board.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"techrider/internal/domain"
)

var ErrNotFound = errors.New("snapshot not found")

const (
	defaultPrefix = "brief:"
	indexKey      = "items"
)

// RedisStore keeps one JSON document per item and a set of known item ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultPrefix}
}

func (s *RedisStore) itemKey(id string) string {
	return s.prefix + "item:" + id
}

// Save writes the item snapshot and indexes its id.
func (s *RedisStore) Save(ctx context.Context, item domain.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item snapshot: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.itemKey(item.ID), data, 0)
	pipe.SAdd(ctx, s.prefix+indexKey, item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save item snapshot %s: %w", item.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (domain.Item, error) {
	data, err := s.client.Get(ctx, s.itemKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Item{}, ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("load item snapshot %s: %w", id, err)
	}
	var item domain.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return domain.Item{}, fmt.Errorf("unmarshal item snapshot %s: %w", id, err)
	}
	return item, nil
}

// List returns every mirrored item sorted by id. Ids whose document has
// disappeared are skipped.
func (s *RedisStore) List(ctx context.Context) ([]domain.Item, error) {
	ids, err := s.client.SMembers(ctx, s.prefix+indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list item snapshots: %w", err)
	}
	sort.Strings(ids)
	items := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
