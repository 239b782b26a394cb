package store

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/vk/beacongrid/internal/beacon"
)

const (
	redisDevicesKey = "beacongrid:devices"
	redisHistoryKey = "beacongrid:history:"
)

// Redis keeps each device's history in a redis list, for deployments where
// the JSON snapshot file is not durable enough.
type Redis struct {
	client *redis.Client
}

// NewRedis verifies connectivity and returns the backend.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Append implements Store.
func (r *Redis) Append(ctx context.Context, id string, rec beacon.Record) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, redisDevicesKey, id)
	pipe.RPush(ctx, redisHistoryKey+id, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append record for %s: %w", id, err)
	}
	return nil
}

// History implements Store.
func (r *Redis) History(ctx context.Context, id string) ([]beacon.Record, error) {
	raw, err := r.client.LRange(ctx, redisHistoryKey+id, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, ErrUnknownDevice
	}

	records := make([]beacon.Record, 0, len(raw))
	for _, item := range raw {
		var rec beacon.Record
		if err := sonic.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record for %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Latest implements Store.
func (r *Redis) Latest(ctx context.Context) ([]Entry, error) {
	ids, err := r.client.SMembers(ctx, redisDevicesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		item, err := r.client.LIndex(ctx, redisHistoryKey+id, -1).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read latest record for %s: %w", id, err)
		}
		var rec beacon.Record
		if err := sonic.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record for %s: %w", id, err)
		}
		entries = append(entries, Entry{IDNumber: id, Record: rec})
	}
	sortEntries(entries)
	return entries, nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
