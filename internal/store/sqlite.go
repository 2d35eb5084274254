// Package store persists the shared document: a local SQLite copy, a remote
// JSON-bin document, a Redis document and a failover wrapper over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

const documentID = "main"

// SQLiteStore keeps the document as a versioned JSON row.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

// DB exposes the connection for health checks and backups.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the stored document.
func (s *SQLiteStore) Load(ctx context.Context) (*models.Document, error) {
	var (
		body    string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT body, version FROM documents WHERE id = ?", documentID,
	).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Version = version
	return &doc, nil
}

// Save writes doc. A non-zero doc.Version must match the stored version.
func (s *SQLiteStore) Save(ctx context.Context, doc *models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM documents WHERE id = ?", documentID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read version: %w", err)
	}
	if doc.Version != 0 && doc.Version != current {
		return domain.ErrVersionConflict
	}

	next := current + 1
	stored := *doc
	stored.Version = next
	body, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, version, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, body = excluded.body, updated_at = excluded.updated_at`,
		documentID, next, string(body), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	doc.Version = next
	return nil
}
