package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xcyber/portal/internal/models"
)

// RedisStore keeps sessions as JSON values under "xcyber_user:<sid>" with a TTL.
type RedisStore struct {
	client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Save(ctx context.Context, sid string, u *models.User, ttl time.Duration) error {
	if u == nil {
		return errors.New("session: nil user")
	}
	b, err := json.Marshal(u.Public())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key(sid), b, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sid string) (*models.User, error) {
	b, err := s.client.Get(ctx, key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &u, nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, key(sid)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
