package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yashrajoria/storefront-service/models"
)

// SessionStore holds the guest cart for a browser session.
type SessionStore interface {
	// GetCart returns nil, nil when the session has no cart.
	GetCart(ctx context.Context, sessionID string) (*models.Order, error)
	SetCart(ctx context.Context, sessionID string, cart *models.Order) error
	RemoveCart(ctx context.Context, sessionID string) error
	// AcquireCheckout takes the session's checkout guard for ttl. It reports
	// false when another checkout of the same session holds it.
	AcquireCheckout(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	ReleaseCheckout(ctx context.Context, sessionID string) error
}

// RedisSessionStore keeps each guest cart as a JSON blob with a sliding TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
	}
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:cart", sessionID)
}

func checkoutKey(sessionID string) string {
	return fmt.Sprintf("session:%s:checkout", sessionID)
}

func (s *RedisSessionStore) GetCart(ctx context.Context, sessionID string) (*models.Order, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cart: %w", err)
	}

	var cart models.Order
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode session cart: %w", err)
	}
	return &cart, nil
}

func (s *RedisSessionStore) SetCart(ctx context.Context, sessionID string, cart *models.Order) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode session cart: %w", err)
	}
	return s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err()
}

func (s *RedisSessionStore) RemoveCart(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, cartKey(sessionID)).Err()
}

func (s *RedisSessionStore) AcquireCheckout(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, checkoutKey(sessionID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire checkout guard: %w", err)
	}
	return ok, nil
}

func (s *RedisSessionStore) ReleaseCheckout(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, checkoutKey(sessionID)).Err()
}
