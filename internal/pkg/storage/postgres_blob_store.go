package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	_ "github.com/lib/pq"
)

// Ensure PostgresBlobStore implements BlobStore
var _ BlobStore = (*PostgresBlobStore)(nil)

// PostgresBlobStore keeps blobs in a single key/value table.
type PostgresBlobStore struct {
	db *sql.DB
}

// NewPostgresBlobStore opens the connection and creates the table if needed.
func NewPostgresBlobStore(cfg *config.PostgresConfig) (*PostgresBlobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresBlobStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL blob store initialized successfully")
	return s, nil
}

func (s *PostgresBlobStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return data, nil
}

// Put uses UPSERT: one row per key, overwritten on each call.
func (s *PostgresBlobStore) Put(ctx context.Context, key string, data []byte) error {
	query := `
	INSERT INTO blobs (key, data, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET
		data = EXCLUDED.data,
		updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM blobs WHERE key LIKE $1 ESCAPE '\' ORDER BY key COLLATE "C"`
	rows, err := s.db.QueryContext(ctx, query, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		if strings.Contains(key, ".tmp-") {
			continue
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Rename replaces `to` with `from` in one transaction.
func (s *PostgresBlobStore) Rename(ctx context.Context, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rename: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE key = $1`, to); err != nil {
		return fmt.Errorf("failed to clear %s: %w", to, err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE blobs SET key = $2, updated_at = NOW() WHERE key = $1`, from, to)
	if err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", from, to, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", from, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rename: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresBlobStore) Close() error {
	return s.db.Close()
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
