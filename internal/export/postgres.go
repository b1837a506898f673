package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
)

// Schema creates the tables PostgresExporter writes to.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS index_runs (
	    run_id      UUID PRIMARY KEY,
	    locations   INTEGER NOT NULL,
	    queries     INTEGER NOT NULL,
	    exported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS location_counts (
	    run_id   UUID NOT NULL REFERENCES index_runs (run_id),
	    location TEXT NOT NULL,
	    words    INTEGER NOT NULL,
	    PRIMARY KEY (run_id, location)
	)`,
	`CREATE TABLE IF NOT EXISTS query_results (
	    run_id   UUID NOT NULL REFERENCES index_runs (run_id),
	    query    TEXT NOT NULL,
	    rank     INTEGER NOT NULL,
	    location TEXT NOT NULL,
	    matches  INTEGER NOT NULL,
	    score    DOUBLE PRECISION NOT NULL,
	    PRIMARY KEY (run_id, query, rank)
	)`,
}

// TxRunner runs a function inside a transaction. *postgres.Client
// satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// PostgresExporter persists one run's counts and query results.
type PostgresExporter struct {
	db     TxRunner
	logger *slog.Logger
}

func NewPostgresExporter(db TxRunner) *PostgresExporter {
	return &PostgresExporter{db: db, logger: logger.WithComponent("postgres-export")}
}

type countRow struct {
	location string
	words    int
}

type resultRow struct {
	query string
	rank  int
	index.SearchResult
}

func countRows(counts map[string]int) []countRow {
	rows := make([]countRow, 0, len(counts))
	for loc, n := range counts {
		rows = append(rows, countRow{location: loc, words: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].location < rows[j].location })
	return rows
}

// resultRows flattens results into rows ranked from 1 within each query.
func resultRows(results map[string][]index.SearchResult) []resultRow {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows []resultRow
	for _, k := range keys {
		for i, r := range results[k] {
			rows = append(rows, resultRow{query: k, rank: i + 1, SearchResult: r})
		}
	}
	return rows
}

// Export writes the run row and bulk-copies its counts and results in one
// transaction.
func (e *PostgresExporter) Export(ctx context.Context, runID string, counts map[string]int, results map[string][]index.SearchResult) error {
	start := time.Now()
	crows := countRows(counts)
	rrows := resultRows(results)

	err := e.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_runs (run_id, locations, queries) VALUES ($1, $2, $3)`,
			runID, len(counts), len(results),
		); err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		if err := copyRows(ctx, tx, pq.CopyIn("location_counts", "run_id", "location", "words"), len(crows), func(i int) []any {
			return []any{runID, crows[i].location, crows[i].words}
		}); err != nil {
			return fmt.Errorf("copying counts: %w", err)
		}

		if err := copyRows(ctx, tx, pq.CopyIn("query_results", "run_id", "query", "rank", "location", "matches", "score"), len(rrows), func(i int) []any {
			r := rrows[i]
			return []any{runID, r.query, r.rank, r.Location, r.Count, r.Score}
		}); err != nil {
			return fmt.Errorf("copying results: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("exporting run %s: %w", runID, err)
	}

	e.logger.Info("run exported",
		"run_id", runID,
		"locations", len(crows),
		"results", len(rrows),
		"duration", time.Since(start),
	)
	return nil
}

func copyRows(ctx context.Context, tx *sql.Tx, copyStmt string, n int, row func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, copyStmt)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}
