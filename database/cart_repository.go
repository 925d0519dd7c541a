package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// CartRepository is the checkout subsystem's view of the shared cart store:
// it takes snapshots and clears a cart after order success. Cart mutation
// belongs to the cart service.
type CartRepository struct {
	client *redis.Client
}

func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

func (r *CartRepository) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// Snapshot reads the live cart and freezes it for the duration of a session.
func (r *CartRepository) Snapshot(ctx context.Context, userID string) (*models.CartSnapshot, error) {
	data, err := r.client.Get(ctx, r.getKey(userID)).Result()
	if err == redis.Nil {
		return &models.CartSnapshot{UserID: userID, TakenAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, err
	}

	return &models.CartSnapshot{
		UserID:  userID,
		Items:   cart.Items,
		TakenAt: time.Now(),
	}, nil
}

// Clear removes the live cart. Called exactly once, strictly after the order
// store acknowledged success.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.getKey(userID)).Err()
}
