package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run statuses stored in the 'runs' table.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Run corresponds to one row of the 'runs' table: a single extract,
// metadata, summarize or analyze operation against one PDF.
type Run struct {
	ID         string         `json:"id"`
	PDFPath    string         `json:"pdf_path"`
	Operation  string         `json:"operation"` // 'extract', 'metadata', 'summarize', 'analyze'
	Transport  string         `json:"transport"` // 'http', 'stdio'
	SizeBytes  int64          `json:"size_bytes"`
	TextLength int            `json:"text_length"`
	WordCount  int            `json:"word_count"`
	Status     string         `json:"status"`
	Error      sql.NullString `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Config holds database configuration.
type Config struct {
	Path    string
	Timeout time.Duration
}

// Database wraps the sql.DB connection.
type Database struct {
	*sql.DB
}

// NewDatabase opens (creating if needed) the history database and ensures
// the schema is initialized.
func NewDatabase(cfg Config) (*Database, error) {
	dbDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", cfg.Path, cfg.Timeout.Milliseconds())
	log.Printf("Connecting to history database: %s", cfg.Path) // Don't log DSN options

	dbConn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	dbConn.SetMaxOpenConns(4)
	dbConn.SetMaxIdleConns(2)
	dbConn.SetConnMaxLifetime(5 * time.Minute)

	db := &Database{DB: dbConn}

	if err := db.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Println("History database connection established and schema initialized.")
	return db, nil
}

func (db *Database) initializeSchema() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			log.Printf("Rolling back schema transaction due to error: %v", txErr)
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Printf("Error during transaction rollback: %v", rollbackErr)
			}
		}
	}()

	_, txErr = tx.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pdf_path TEXT NOT NULL,
		operation TEXT NOT NULL,
		transport TEXT NOT NULL DEFAULT 'http',
		size_bytes INTEGER DEFAULT 0,
		text_length INTEGER DEFAULT 0,
		word_count INTEGER DEFAULT 0,
		status TEXT CHECK(status IN ('ok', 'error')) NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP NOT NULL
	);
	`)
	if txErr != nil {
		txErr = fmt.Errorf("failed to create runs table: %w", txErr)
		return txErr
	}

	indexQueries := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_runs_pdf_path ON runs(pdf_path);",
	}
	for _, query := range indexQueries {
		if _, txErr = tx.Exec(query); txErr != nil {
			log.Printf("Warning: Failed to create index (%s): %v", query, txErr)
			txErr = nil
		}
	}

	txErr = tx.Commit()
	if txErr != nil {
		txErr = fmt.Errorf("failed to commit schema initialization transaction: %w", txErr)
		return txErr
	}
	return nil
}

// SaveRun inserts a run. A missing ID is filled with a new UUID and a zero
// CreatedAt with the current time; the stored ID is returned.
func (db *Database) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Transport == "" {
		run.Transport = "http"
	}

	query := `INSERT INTO runs
			 (id, pdf_path, operation, transport, size_bytes, text_length, word_count, status, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		run.ID,
		run.PDFPath,
		run.Operation,
		run.Transport,
		run.SizeBytes,
		run.TextLength,
		run.WordCount,
		run.Status,
		run.Error,
		run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

const runColumns = `id, pdf_path, operation, transport, size_bytes, text_length, word_count, status, error, created_at`

func scanRun(scanner interface{ Scan(...any) error }) (Run, error) {
	var run Run
	err := scanner.Scan(
		&run.ID,
		&run.PDFPath,
		&run.Operation,
		&run.Transport,
		&run.SizeBytes,
		&run.TextLength,
		&run.WordCount,
		&run.Status,
		&run.Error,
		&run.CreatedAt,
	)
	return run, err
}

// GetRun retrieves a run by ID. A missing run is reported as (nil, nil).
func (db *Database) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found is not an error in this context
		}
		return nil, fmt.Errorf("failed to scan run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (db *Database) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during run iteration: %w", err)
	}
	return runs, nil
}
