package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const (
	StoreType = "redis"

	DefaultPrefix = "dpay:"
)

type store struct {
	rdb    *redis.Client
	prefix string
}

// NewSessionStore connects to the redis server at url, for example
// redis://localhost:6379/0. Keys are namespaced with prefix.
func NewSessionStore(url, prefix string) (domain.SessionRepository, error) {
	if len(url) <= 0 {
		return nil, fmt.Errorf("missing redis url")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %s", err)
	}
	return NewSessionStoreFromClient(redis.NewClient(opts), prefix), nil
}

func NewSessionStoreFromClient(rdb *redis.Client, prefix string) domain.SessionRepository {
	if len(prefix) <= 0 {
		prefix = DefaultPrefix
	}
	return &store{rdb, prefix}
}

func (s *store) GetType() string {
	return StoreType
}

func (s *store) key() string {
	return s.prefix + domain.WalletAddressKey
}

func (s *store) GetAddress(ctx context.Context) (string, error) {
	address, err := s.rdb.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return address, nil
}

func (s *store) SetAddress(ctx context.Context, address string) error {
	return s.rdb.Set(ctx, s.key(), address, 0).Err()
}

func (s *store) DeleteAddress(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key()).Err()
}

func (s *store) Close() {
	//nolint:all
	s.rdb.Close()
}
