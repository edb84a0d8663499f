package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCartPrefix      = "cart:"
	redisLastOrderPrefix = "cart:lastorder:"
)

// RedisRepository is the default durable cart store: one key per shopper
// holding the JSON cart array, one key per shopper holding the last
// completed order id.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository connects to Redis and verifies the connection.
func NewRedisRepository(redisURL string) (*RedisRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRepository{client: client}, nil
}

// NewRedisRepositoryWithClient wraps an existing client. Useful for tests
// or when sharing a client across components.
func NewRedisRepositoryWithClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Load(ctx context.Context, shopperID string) ([]LineItem, error) {
	data, err := r.client.Get(ctx, redisCartPrefix+shopperID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return DecodeItems(data), nil
}

func (r *RedisRepository) Save(ctx context.Context, shopperID string, items []LineItem) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisCartPrefix+shopperID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *RedisRepository) SaveLastOrder(ctx context.Context, shopperID, orderID string) error {
	if err := r.client.Set(ctx, redisLastOrderPrefix+shopperID, orderID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save last order: %w", err)
	}
	return nil
}

func (r *RedisRepository) LastOrder(ctx context.Context, shopperID string) (string, error) {
	orderID, err := r.client.Get(ctx, redisLastOrderPrefix+shopperID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load last order: %w", err)
	}
	return orderID, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
