// Package sqlite provides a SQLite-backed ledger store for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// Store persists ledger records in SQLite, one row per contributor.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required: %w", repository.ErrInvalidArgument)
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetBySlug implements repository.Store.
func (s *Store) GetBySlug(ctx context.Context, slug string) (model.Record, error) {
	if strings.TrimSpace(slug) == "" {
		return model.Record{}, fmt.Errorf("slug is required: %w", repository.ErrInvalidArgument)
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, slug, title, content FROM posts WHERE slug = ?`, slug)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("slug %q: %w", slug, repository.ErrNotFound)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("get record %q: %w", slug, wrapErr(err))
	}
	return rec, nil
}

// Create implements repository.Store.
func (s *Store) Create(ctx context.Context, title, slug, content string) (model.Record, error) {
	if strings.TrimSpace(slug) == "" {
		return model.Record{}, fmt.Errorf("slug is required: %w", repository.ErrInvalidArgument)
	}
	now := toMillis(time.Now())
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO posts (slug, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		slug, title, content, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Record{}, fmt.Errorf("slug %q: %w", slug, repository.ErrConflict)
		}
		return model.Record{}, fmt.Errorf("create record %q: %w", slug, wrapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Record{}, fmt.Errorf("create record %q: %w", slug, wrapErr(err))
	}
	return model.Record{ID: strconv.FormatInt(id, 10), Slug: slug, Title: title, Content: content}, nil
}

// Update implements repository.Store.
func (s *Store) Update(ctx context.Context, id, content string) (model.Record, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return model.Record{}, fmt.Errorf("record id %q: %w", id, repository.ErrInvalidArgument)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE posts SET content = ?, updated_at = ? WHERE id = ?`,
		content, toMillis(time.Now()), rowID)
	if err != nil {
		return model.Record{}, fmt.Errorf("update record %s: %w", id, wrapErr(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Record{}, fmt.Errorf("record %s: %w", id, repository.ErrNotFound)
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, slug, title, content FROM posts WHERE id = ?`, rowID)
	rec, err := scanRecord(row)
	if err != nil {
		return model.Record{}, fmt.Errorf("reload record %s: %w", id, wrapErr(err))
	}
	return rec, nil
}

// List implements repository.Store. Records come back in insertion order.
func (s *Store) List(ctx context.Context, pageSize, page int) (model.Page, error) {
	if pageSize < 1 || page < 1 {
		return model.Page{}, fmt.Errorf("page %d size %d: %w", page, pageSize, repository.ErrInvalidArgument)
	}
	var found int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&found); err != nil {
		return model.Page{}, fmt.Errorf("count posts: %w", wrapErr(err))
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, slug, title, content FROM posts ORDER BY id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return model.Page{}, fmt.Errorf("list posts: %w", wrapErr(err))
	}
	defer func() { _ = rows.Close() }()

	out := model.Page{Records: make([]model.Record, 0, pageSize), Found: found}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return model.Page{}, fmt.Errorf("scan record: %w", wrapErr(err))
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.Page{}, fmt.Errorf("list posts: %w", wrapErr(err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.Record, error) {
	var (
		id  int64
		rec model.Record
	)
	if err := row.Scan(&id, &rec.Slug, &rec.Title, &rec.Content); err != nil {
		return model.Record{}, err
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

// wrapErr keeps context errors as they are and classifies the rest as an
// unavailable backend.
func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%v: %w", err, repository.ErrUnavailable)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
