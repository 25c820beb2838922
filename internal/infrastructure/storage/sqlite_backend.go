package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"

	_ "modernc.org/sqlite"
)

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend stores history in a SQLite database at dsn.
func NewSQLiteBackend(dsn string) (repository.HistoryBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	backend := &sqliteBackend{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := backend.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

func (b *sqliteBackend) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS feed_history (
			feed_id TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			published_sec INTEGER NOT NULL,
			published_nsec INTEGER NOT NULL,
			PRIMARY KEY (feed_id, entry_id)
		)`,
	}

	for _, query := range queries {
		if _, err := b.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

func (b *sqliteBackend) Load(ctx context.Context) (entity.History, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT feed_id, entry_id, published_sec, published_nsec FROM feed_history")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %w", repository.ErrStorageIO, err)
	}
	defer rows.Close()

	history := entity.NewHistory()
	for rows.Next() {
		var (
			feedID, entryID string
			sec, nsec       int64
		)
		if err := rows.Scan(&feedID, &entryID, &sec, &nsec); err != nil {
			return nil, fmt.Errorf("%w: failed to scan history row: %v", repository.ErrStorageCorrupt, err)
		}
		history.Add(feedID, entryID, time.Unix(sec, nsec).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStorageIO, err)
	}

	if len(history) == 0 {
		return nil, repository.ErrStorageNotFound
	}
	return history, nil
}

// Store replaces the table contents inside one transaction.
func (b *sqliteBackend) Store(ctx context.Context, history entity.History) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM feed_history"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO feed_history (feed_id, entry_id, published_sec, published_nsec) VALUES (?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for feedID, feed := range history {
		for entryID, published := range feed {
			if _, err := stmt.ExecContext(ctx, feedID, entryID, published.Unix(), published.Nanosecond()); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to insert history record: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
