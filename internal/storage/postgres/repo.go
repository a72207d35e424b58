// Package postgres implements a Postgres run report store using pgx v5.
// Run rows are inserted directly; element rows are written with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"obsmask/internal/summary"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // run table, optionally schema-qualified, e.g. "qc.obsmask_runs"
}

// Repository is a Postgres-backed run report store.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, func() { pool.Close() }, nil
}

func (r *Repository) elementsTable() string { return r.cfg.Table + "_elements" }

// EnsureSchema creates the run and element tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range createStatements(r.cfg.Table) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func createStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	model text NOT NULL,
	row_count bigint NOT NULL,
	chunk_count bigint NOT NULL,
	started timestamptz NOT NULL,
	finished timestamptz NOT NULL
)`, pgFQN(table)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id uuid NOT NULL REFERENCES %s(id),
	element text NOT NULL,
	valid bigint NOT NULL,
	invalid bigint NOT NULL,
	unset_count bigint NOT NULL,
	PRIMARY KEY (run_id, element)
)`, pgFQN(table+"_elements"), pgFQN(table)),
	}
}

// SaveRun inserts the run row and copies its element rows in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run summary.Run) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (id, model, row_count, chunk_count, started, finished) VALUES ($1, $2, $3, $4, $5, $6)", pgFQN(r.cfg.Table)),
		run.ID, run.Model, run.Rows, run.Chunks, run.Started, run.Finished,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(run.Elements) > 0 {
		_, err = tx.CopyFrom(ctx, pgIdentifier(r.elementsTable()), elementColumns, pgx.CopyFromRows(elementRows(run)))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return fmt.Errorf("copy elements: %s (%s)", pgErr.Detail, pgErr.SQLState())
			}
			return fmt.Errorf("copy elements: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var elementColumns = []string{"run_id", "element", "valid", "invalid", "unset_count"}

func elementRows(run summary.Run) [][]any {
	rows := make([][]any, 0, len(run.Elements))
	for _, e := range run.Elements {
		rows = append(rows, []any{run.ID, e.ID, e.Valid, e.Invalid, e.Unset})
	}
	return rows
}

// pgIdent quotes one identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// pgFQN quotes a possibly schema-qualified name part by part.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// pgIdentifier splits a possibly schema-qualified name for COPY.
func pgIdentifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}
