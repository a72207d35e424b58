// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"obsmask/internal/summary"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.
	// "file:obsmask.db?cache=shared" or "obsmask.db".
	DSN string
	// Table receives run rows; element rows go to <Table>_elements.
	Table string
}

// Repository is a SQLite-backed run report store.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens the database and returns a Repository plus a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return &Repository{db: db, cfg: cfg}, func() { db.Close() }, nil
}

func (r *Repository) elementsTable() string { return r.cfg.Table + "_elements" }

// EnsureSchema creates the run and element tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	started TEXT NOT NULL,
	finished TEXT NOT NULL
)`, quoteIdent(r.cfg.Table)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL REFERENCES %s(id),
	element TEXT NOT NULL,
	valid INTEGER NOT NULL,
	invalid INTEGER NOT NULL,
	unset_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, element)
)`, quoteIdent(r.elementsTable()), quoteIdent(r.cfg.Table)),
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveRun inserts the run and its element rows in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run summary.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, model, row_count, chunk_count, started, finished) VALUES (?, ?, ?, ?, ?, ?)", quoteIdent(r.cfg.Table)),
		run.ID.String(), run.Model, run.Rows, run.Chunks,
		run.Started.UTC().Format(time.RFC3339Nano), run.Finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (run_id, element, valid, invalid, unset_count) VALUES (?, ?, ?, ?, ?)", quoteIdent(r.elementsTable())))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range run.Elements {
		if _, err := stmt.ExecContext(ctx, run.ID.String(), e.ID, e.Valid, e.Invalid, e.Unset); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert element %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// quoteIdent quotes an identifier; a "schema.table" name is quoted per part.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
