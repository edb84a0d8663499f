package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository stores each shopper's cart as one JSONB document in a
// single table, alongside the last completed order id.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the cart table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS storefront_carts (
			shopper_id    TEXT PRIMARY KEY,
			items         JSONB NOT NULL DEFAULT '[]'::jsonb,
			last_order_id TEXT NOT NULL DEFAULT '',
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create cart table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, shopperID string) ([]LineItem, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT items FROM storefront_carts WHERE shopper_id = $1",
		shopperID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return DecodeItems(data), nil
}

func (r *PostgresRepository) Save(ctx context.Context, shopperID string, items []LineItem) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO storefront_carts (shopper_id, items, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (shopper_id)
		 DO UPDATE SET items = EXCLUDED.items, updated_at = now()`,
		shopperID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveLastOrder(ctx context.Context, shopperID, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO storefront_carts (shopper_id, last_order_id, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (shopper_id)
		 DO UPDATE SET last_order_id = EXCLUDED.last_order_id, updated_at = now()`,
		shopperID, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to save last order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LastOrder(ctx context.Context, shopperID string) (string, error) {
	var orderID string
	err := r.db.QueryRowContext(ctx,
		"SELECT last_order_id FROM storefront_carts WHERE shopper_id = $1",
		shopperID,
	).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load last order: %w", err)
	}
	return orderID, nil
}
