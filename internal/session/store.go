package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"marketplace-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// CartStore keeps one cart per session.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (*entity.Cart, error)
	Save(ctx context.Context, sessionID string, cart *entity.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// CheckoutGuard makes a cart token usable for exactly one checkout.
type CheckoutGuard interface {
	Acquire(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCartStore(rdb *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{rdb: rdb, ttl: ttl}
}

// Load returns an empty cart when nothing is stored or the stored blob cannot
// be read.
func (s *RedisCartStore) Load(ctx context.Context, sessionID string) (*entity.Cart, error) {
	data, err := s.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.NewCart(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	cart, err := decodeCart(data)
	if err != nil {
		logger.Warn().Err(err).Str("session", sessionID).Msg("Discarding unreadable cart")
		return entity.NewCart(), nil
	}
	return cart, nil
}

func (s *RedisCartStore) Save(ctx context.Context, sessionID string, cart *entity.Cart) error {
	data, err := encodeCart(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.rdb.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisCartStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type RedisCheckoutGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCheckoutGuard(rdb *redis.Client, ttl time.Duration) *RedisCheckoutGuard {
	return &RedisCheckoutGuard{rdb: rdb, ttl: ttl}
}

// Acquire reports false when the token was already used.
func (g *RedisCheckoutGuard) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, checkoutKey(token), "exists", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release frees a token after a checkout that did not commit.
func (g *RedisCheckoutGuard) Release(ctx context.Context, token string) error {
	if err := g.rdb.Del(ctx, checkoutKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:cart", sessionID)
}

func checkoutKey(token string) string {
	return fmt.Sprintf("checkout-token:%s", token)
}
