package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/services"
)

// SQLiteStore persists app state in the app_state table.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ services.KVStore = (*SQLiteStore)(nil)

// Open opens (creating if needed) the SQLite file at path and applies
// migrations. The returned close func closes the database.
func Open(path, migrationsDir string, log *zap.Logger) (*SQLiteStore, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(path))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps read-after-write ordering trivial
	sqlDB.SetMaxOpenConns(1)
	if err := RunMigrations(sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := NewSQLiteStore(sqlDB, log)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return store, sqlDB.Close, nil
}

func NewSQLiteStore(db *sql.DB, log *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if log == nil {
		log = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, log: log.Named("sqlite")}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		s.logErr("get", key, err)
		return "", false, services.NewStorageError("get", key, err)
	}
	return value, true, nil
}

// Set upserts key. Writing the value already stored leaves the row untouched.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return services.NewStorageError("set", key, errors.New("empty key"))
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		 WHERE app_state.value <> excluded.value`,
		key, value, now,
	)
	if err != nil {
		s.logErr("set", key, err)
		return services.NewStorageError("set", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, key); err != nil {
		s.logErr("remove", key, err)
		return services.NewStorageError("remove", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM app_state WHERE key LIKE ? ESCAPE '\' ORDER BY key`, escapeLike(prefix)+"%")
	if err != nil {
		s.logErr("keys", prefix, err)
		return nil, services.NewStorageError("keys", prefix, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("keys: rows.Close", prefix, cerr)
		}
	}()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, services.NewStorageError("keys", prefix, err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, services.NewStorageError("keys", prefix, err)
	}
	return out, nil
}

// UpdatedAt returns the last write time of key, mainly for diagnostics.
func (s *SQLiteStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM app_state WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, services.NewStorageError("get", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, services.NewStorageError("get", key, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) logErr(op, key string, err error) {
	if err != nil {
		s.log.Warn("sqlite store", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
