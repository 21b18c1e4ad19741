package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"pricewatch/internal/config"
)

// Column layout matches the products.db files written by the original
// submission form, so existing databases can be pointed at directly.
const (
	sqliteCreateProductSQL = `CREATE TABLE IF NOT EXISTS product (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        product_url VARCHAR(500) NOT NULL,
        target_price FLOAT NOT NULL,
        user_email VARCHAR(120) NOT NULL
    );`

	sqliteListProductsSQL  = `SELECT id, product_url, CAST(target_price AS TEXT), user_email FROM product ORDER BY id;`
	sqliteInsertProductSQL = `INSERT INTO product (product_url, target_price, user_email) VALUES (?, ?, ?);`
	sqliteDeleteProductSQL = `DELETE FROM product WHERE id = ?;`
)

// SQLiteStore keeps tracked items in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file named by cfg.DSN.
func OpenSQLite(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, connErr("open sqlite", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY between
	// the checker and the submission API.
	db.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// Ping verifies the database file can be opened.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return connErr("ping", db.PingContext(ctx))
}

// EnsureSchema creates the product table when missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, execErr := db.ExecContext(ctx, sqliteCreateProductSQL); execErr != nil {
		return connErr("ensure schema", execErr)
	}
	return nil
}

// ListAll returns every tracked item ordered by id.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]TrackedItem, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, sqliteListProductsSQL)
	if queryErr != nil {
		return nil, connErr("list products", queryErr)
	}
	defer rows.Close()

	items := make([]TrackedItem, 0)
	for rows.Next() {
		var (
			item      TrackedItem
			targetStr string
		)
		if scanErr := rows.Scan(&item.ID, &item.SourceURL, &targetStr, &item.Recipient); scanErr != nil {
			return nil, connErr("scan product", scanErr)
		}
		target, convErr := decimal.NewFromString(targetStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse target price of item %d: %w", item.ID, convErr)
		}
		item.TargetPrice = target
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, connErr("list products", rows.Err())
	}
	return items, nil
}

// Insert stores a new item and returns it with its assigned id.
func (s *SQLiteStore) Insert(ctx context.Context, item NewTrackedItem) (TrackedItem, error) {
	db, err := s.getDB()
	if err != nil {
		return TrackedItem{}, err
	}

	target, _ := item.TargetPrice.Float64()
	res, execErr := db.ExecContext(ctx, sqliteInsertProductSQL, item.SourceURL, target, item.Recipient)
	if execErr != nil {
		return TrackedItem{}, connErr("insert product", execErr)
	}
	id, idErr := res.LastInsertId()
	if idErr != nil {
		return TrackedItem{}, connErr("insert product", idErr)
	}

	return TrackedItem{
		ID:          id,
		SourceURL:   item.SourceURL,
		TargetPrice: item.TargetPrice,
		Recipient:   item.Recipient,
	}, nil
}

// DeleteByID removes one item. Deleting a missing id yields ErrItemNotFound.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id int64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	res, execErr := db.ExecContext(ctx, sqliteDeleteProductSQL, id)
	if execErr != nil {
		return connErr("delete product", execErr)
	}
	affected, affErr := res.RowsAffected()
	if affErr != nil && !errors.Is(affErr, sql.ErrNoRows) {
		return connErr("delete product", affErr)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

var _ Handle = (*SQLiteStore)(nil)
