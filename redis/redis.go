package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/redis/go-redis/v9"
)

// Redis provides caching in Redis.
type Redis struct {
	cli    *redis.Client
	prefix string
}

var _ chat.ProfileCache = (*Redis)(nil)

// Connect connects to the Redis server and pings the server to ensure the
// connection is working. Keys are namespaced under prefix.
func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(cli, prefix), nil
}

// New wraps an existing client.
func New(cli *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{
		cli:    cli,
		prefix: prefix,
	}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const defaultPrefix = "teamchat"

func (r *Redis) profileKey(id string) string {
	return fmt.Sprintf("%s:profiles:%s", r.prefix, id)
}

// GetProfile returns the cached profile for id, or chat.ErrNotFound on a
// miss.
func (r *Redis) GetProfile(ctx context.Context, id string) (chat.UserProfile, error) {
	cmd := r.cli.HGetAll(ctx, r.profileKey(id))
	if err := cmd.Err(); err != nil {
		return chat.UserProfile{}, fmt.Errorf("hgetall: %w", err)
	}
	if len(cmd.Val()) == 0 {
		return chat.UserProfile{}, chat.ErrNotFound
	}

	var p profile
	if err := cmd.Scan(&p); err != nil {
		return chat.UserProfile{}, fmt.Errorf("scan: %w", err)
	}
	return p.ChatProfile(), nil
}

// SetProfile caches p for ttl. The hash write and its expiry are applied
// atomically.
func (r *Redis) SetProfile(ctx context.Context, p chat.UserProfile, ttl time.Duration) error {
	key := r.profileKey(p.ID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, newProfile(p))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}
	return nil
}

// DeleteProfile evicts the cached profile for id.
func (r *Redis) DeleteProfile(ctx context.Context, id string) error {
	if err := r.cli.Del(ctx, r.profileKey(id)).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}
