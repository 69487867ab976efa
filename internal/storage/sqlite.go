package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS links (
	post INTEGER PRIMARY KEY,
	url  TEXT NOT NULL
)`

// SQLitePersister stores the mapping in a SQLite table
type SQLitePersister struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and ensures the links table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLitePersister, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers at the driver level as well.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create links table: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

// Name implements Persister
func (s *SQLitePersister) Name() string { return "sqlite" }

// Load reads all rows of the links table
func (s *SQLitePersister) Load(ctx context.Context) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT post, url FROM links ORDER BY post`)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make(map[int]string)
	for rows.Next() {
		var (
			n   int
			url string
		)
		if err := rows.Scan(&n, &url); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[n] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// Save replaces every row in one transaction
func (s *SQLitePersister) Save(ctx context.Context, links map[int]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO links (post, url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range sortedKeys(links) {
		if _, err := stmt.ExecContext(ctx, n, links[n]); err != nil {
			return fmt.Errorf("insert link %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping implements Pinger
func (s *SQLitePersister) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *SQLitePersister) Close() error {
	return s.db.Close()
}
