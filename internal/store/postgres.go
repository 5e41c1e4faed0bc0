package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cartsync/cart-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of record.
// Monetary aggregates are stored as NUMERIC for exact decimal precision;
// line items travel as JSONB so a cart record is written and read as a
// single row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Cart, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_key, items, total::TEXT, item_kind_count, total_quantity, updated_at
		 FROM carts WHERE id = $1`, id)
	c, err := scanCart(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get cart %d", id), err)
	}
	return c, nil
}

func (s *PostgresStore) GetByOwner(ctx context.Context, ownerKey int64) (*model.Cart, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_key, items, total::TEXT, item_kind_count, total_quantity, updated_at
		 FROM carts WHERE owner_key = $1 ORDER BY id DESC LIMIT 1`, ownerKey)
	c, err := scanCart(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get cart for owner %d", ownerKey), err)
	}
	return c, nil
}

func (s *PostgresStore) Put(ctx context.Context, cart *model.Cart) error {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("marshal items for cart %d: %w", cart.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO carts (id, owner_key, items, total, item_kind_count, total_quantity, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		     owner_key = EXCLUDED.owner_key,
		     items = EXCLUDED.items,
		     total = EXCLUDED.total,
		     item_kind_count = EXCLUDED.item_kind_count,
		     total_quantity = EXCLUDED.total_quantity,
		     updated_at = EXCLUDED.updated_at`,
		cart.ID, cart.OwnerKey, items,
		cart.Total.String(), cart.ItemKindCount, cart.TotalQuantity,
		cart.UpdatedAt,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("put cart %d", cart.ID), err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return wrapErr(fmt.Sprintf("delete cart %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]model.Cart, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_key, items, total::TEXT, item_kind_count, total_quantity, updated_at
		 FROM carts ORDER BY id DESC`)
	if err != nil {
		return nil, wrapErr("list carts", err)
	}
	defer rows.Close()

	var carts []model.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, wrapErr("list carts", err)
		}
		carts = append(carts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list carts", err)
	}
	return carts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*model.Cart, error) {
	var c model.Cart
	var items []byte
	var total string

	if err := row.Scan(&c.ID, &c.OwnerKey, &items, &total,
		&c.ItemKindCount, &c.TotalQuantity, &c.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, err
	}
	c.Total, _ = decimal.NewFromString(total)
	return &c, nil
}

// wrapErr maps pgx absence to ErrNotFound and everything else to
// ErrUnavailable so the engine can tell outage from no-record.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
