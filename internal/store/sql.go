package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// lastInsertStore serves sqlite and mysql, whose drivers report LastInsertId.
type lastInsertStore struct {
	db *gorm.DB
}

func (s *lastInsertStore) Get(ctx context.Context, dest any, query string, args ...any) error {
	return get(ctx, s.db, dest, query, args...)
}

func (s *lastInsertStore) Select(ctx context.Context, dest any, query string, args ...any) error {
	return sel(ctx, s.db, dest, query, args...)
}

func (s *lastInsertStore) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	pool := s.db.Statement.ConnPool
	if pool == nil {
		return Result{}, errors.New("store: no connection pool")
	}
	res, err := pool.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	var out Result
	out.RowsAffected, _ = res.RowsAffected()
	if isInsert(query) {
		out.LastInsertID, _ = res.LastInsertId()
	}
	return out, nil
}

func (s *lastInsertStore) Tx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&lastInsertStore{db: tx})
	})
}

// returningStore serves postgres: there is no LastInsertId, so INSERTs get
// "RETURNING id" and the id is scanned back.
type returningStore struct {
	db *gorm.DB
}

func (s *returningStore) Get(ctx context.Context, dest any, query string, args ...any) error {
	return get(ctx, s.db, dest, query, args...)
}

func (s *returningStore) Select(ctx context.Context, dest any, query string, args ...any) error {
	return sel(ctx, s.db, dest, query, args...)
}

func (s *returningStore) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	if isInsert(query) && !strings.Contains(strings.ToUpper(query), "RETURNING") {
		var rows []map[string]any
		res := s.db.WithContext(ctx).Raw(strings.TrimRight(strings.TrimSpace(query), ";")+" RETURNING id", args...).Scan(&rows)
		if res.Error != nil {
			return Result{}, res.Error
		}
		out := Result{RowsAffected: int64(len(rows))}
		if len(rows) > 0 {
			// text keys (ULIDs) leave LastInsertID at 0
			out.LastInsertID = asInt64(rows[0]["id"])
		}
		return out, nil
	}
	res := s.db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return Result{}, res.Error
	}
	return Result{RowsAffected: res.RowsAffected}, nil
}

func (s *returningStore) Tx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&returningStore{db: tx})
	})
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= 6 && strings.EqualFold(q[:6], "INSERT")
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}
