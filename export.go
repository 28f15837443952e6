package allknn

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/allknn/matrix"
)

// SaveCSV writes the two result grids to separate files. The extension
// picks the encoding per matrix.Save: plain CSV, or gzip-compressed for
// ".gz" paths.
func (r *Result) SaveCSV(distancesPath, neighborsPath string) error {
	if err := matrix.Save(distancesPath, r.Distances); err != nil {
		return fmt.Errorf("allknn: save distances: %w", err)
	}
	if err := matrix.SaveInts(neighborsPath, r.Neighbors); err != nil {
		return fmt.Errorf("allknn: save neighbors: %w", err)
	}
	return nil
}

// SaveSQLite writes both grids into one SQLite database at path, table
// neighbors(query, rank, neighbor, distance) keyed on (query, rank). The
// whole write is one transaction; an existing table is replaced row by
// row.
func (r *Result) SaveSQLite(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("allknn: open sqlite %s: %w", path, err)
	}
	defer db.Close()

	const schema = `CREATE TABLE IF NOT EXISTS neighbors (
		query    INTEGER NOT NULL,
		rank     INTEGER NOT NULL,
		neighbor INTEGER NOT NULL,
		distance REAL    NOT NULL,
		PRIMARY KEY (query, rank)
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("allknn: create sqlite schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("allknn: begin sqlite tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO neighbors (query, rank, neighbor, distance) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("allknn: prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	for q := 0; q < r.NumQueries; q++ {
		for rank := 0; rank < r.K; rank++ {
			idx, dist := r.Neighbor(rank, q)
			if _, err := stmt.ExecContext(ctx, q, rank, idx, dist); err != nil {
				return fmt.Errorf("allknn: insert query %d rank %d: %w", q, rank, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("allknn: commit sqlite tx: %w", err)
	}
	return nil
}
