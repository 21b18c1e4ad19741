package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	createProductTableSQL = `CREATE TABLE IF NOT EXISTS product (
        id           BIGSERIAL PRIMARY KEY,
        product_url  VARCHAR(500) NOT NULL,
        target_price NUMERIC NOT NULL CHECK (target_price > 0),
        user_email   VARCHAR(120) NOT NULL
    );`

	listProductsSQL = `SELECT
        id,
        product_url,
        target_price::text,
        user_email
    FROM product
    ORDER BY id;`

	insertProductSQL = `INSERT INTO product (
        product_url,
        target_price,
        user_email
    ) VALUES (
        $1,$2::numeric,$3
    )
    RETURNING id;`

	deleteProductSQL = `DELETE FROM product WHERE id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store is the PostgreSQL-backed tracked item repository.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return connErr("ping", pool.Ping(ctx))
}

// EnsureSchema creates the product table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createProductTableSQL); execErr != nil {
		return connErr("ensure schema", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, connErr("acquire connection", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, connErr("try advisory lock", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ListAll returns every tracked item ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]TrackedItem, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listProductsSQL)
	if queryErr != nil {
		return nil, connErr("list products", queryErr)
	}
	defer rows.Close()

	items := make([]TrackedItem, 0)
	for rows.Next() {
		item, scanErr := scanTrackedItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, connErr("list products", rows.Err())
	}
	return items, nil
}

// Insert stores a new item and returns it with its assigned id.
func (s *Store) Insert(ctx context.Context, item NewTrackedItem) (TrackedItem, error) {
	pool, err := s.getPool()
	if err != nil {
		return TrackedItem{}, err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertProductSQL,
		item.SourceURL,
		item.TargetPrice.String(),
		item.Recipient,
	).Scan(&id); scanErr != nil {
		return TrackedItem{}, connErr("insert product", scanErr)
	}

	return TrackedItem{
		ID:          id,
		SourceURL:   item.SourceURL,
		TargetPrice: item.TargetPrice,
		Recipient:   item.Recipient,
	}, nil
}

// DeleteByID removes one item. Deleting a missing id yields ErrItemNotFound.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteProductSQL, id)
	if execErr != nil {
		return connErr("delete product", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func scanTrackedItem(rows pgx.Rows) (TrackedItem, error) {
	var (
		item      TrackedItem
		targetStr string
	)
	if err := rows.Scan(&item.ID, &item.SourceURL, &targetStr, &item.Recipient); err != nil {
		return TrackedItem{}, connErr("scan product", err)
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return TrackedItem{}, fmt.Errorf("parse target price of item %d: %w", item.ID, err)
	}
	item.TargetPrice = target
	return item, nil
}

var (
	_ Handle         = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
