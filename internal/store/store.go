// Package store is the row-store contract shared by the logbook and chat repos.
// Queries use "?" placeholders; the backend decides how generated ids come back.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("store: not found")

type Result struct {
	LastInsertID int64
	RowsAffected int64
}

type Store interface {
	// Get scans the first row into dest (pointer to struct or scalar).
	// It returns ErrNotFound when the query yields no rows.
	Get(ctx context.Context, dest any, query string, args ...any) error
	// Select scans every row into dest (pointer to slice).
	Select(ctx context.Context, dest any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	// Tx runs fn inside one transaction; a returned error rolls it back.
	Tx(ctx context.Context, fn func(tx Store) error) error
}

// New picks the adapter for the backend gdb was opened with.
func New(driver string, gdb *gorm.DB) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "mysql":
		return &lastInsertStore{db: gdb}, nil
	case "postgres":
		return &returningStore{db: gdb}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

func get(ctx context.Context, db *gorm.DB, dest any, query string, args ...any) error {
	res := db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func sel(ctx context.Context, db *gorm.DB, dest any, query string, args ...any) error {
	return db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}
