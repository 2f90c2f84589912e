package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/nboxsim/internal/metrics"
	"github.com/san-kum/nboxsim/internal/run"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    number INTEGER NOT NULL UNIQUE,
    started_at TEXT NOT NULL,
    seed INTEGER NOT NULL,
    events INTEGER NOT NULL,
    workers INTEGER NOT NULL,
    format TEXT NOT NULL,
    source TEXT NOT NULL,
    events_with_hits INTEGER NOT NULL,
    hit_rows INTEGER NOT NULL,
    flux_rows INTEGER NOT NULL,
    missing INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_detectors (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    detector_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    hits INTEGER NOT NULL,
    mean_edep_kev REAL NOT NULL,
    PRIMARY KEY (run_id, detector_id)
);
`

// Catalog indexes saved runs in a SQLite database so they can be listed and
// numbered without scanning every run directory.
type Catalog struct {
	db *sql.DB
}

func OpenCatalog(ctx context.Context, path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// NextNumber is one past the highest recorded run number.
func (c *Catalog) NextNumber(ctx context.Context) (int, error) {
	var n sql.NullInt64
	if err := c.db.QueryRowContext(ctx, `SELECT MAX(number) FROM runs`).Scan(&n); err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64) + 1, nil
}

// Record stores meta and the per-detector results in one transaction.
func (c *Catalog) Record(ctx context.Context, meta *RunMetadata, detectors []DetectorRow) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, number, started_at, seed, events, workers, format, source,
			events_with_hits, hit_rows, flux_rows, missing, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Number, meta.Timestamp.UTC().Format(time.RFC3339Nano), meta.Seed, meta.Events,
		meta.Workers, meta.Format, meta.Source, meta.Counters.EventsWithHits, meta.Counters.HitRows,
		meta.Counters.FluxRows, meta.Counters.Missing, meta.ElapsedMS)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", meta.ID, err)
	}

	for _, d := range detectors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_detectors (run_id, detector_id, name, hits, mean_edep_kev)
			VALUES (?, ?, ?, ?, ?)`, meta.ID, d.ID, d.Name, d.Hits, d.MeanEdepKeV)
		if err != nil {
			return fmt.Errorf("failed to record detector %s: %w", d.Name, err)
		}
	}
	return tx.Commit()
}

// DetectorRow is one detector's line in the catalog.
type DetectorRow struct {
	ID          int
	Name        string
	Hits        int64
	MeanEdepKeV float64
}

func DetectorRows(ds []metrics.DetectorSummary) []DetectorRow {
	out := make([]DetectorRow, len(ds))
	for i, d := range ds {
		out[i] = DetectorRow{ID: d.ID, Name: d.Name, Hits: d.Hits, MeanEdepKeV: d.MeanEdepKeV}
	}
	return out
}

// CatalogEntry is a run as listed by the catalog.
type CatalogEntry struct {
	ID        string
	Number    int
	StartedAt time.Time
	Seed      int64
	Workers   int
	Format    string
	Source    string
	Counters  run.Counters
	ElapsedMS int64
}

const entryColumns = `id, number, started_at, seed, events, workers, format, source,
		events_with_hits, hit_rows, flux_rows, missing, elapsed_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (CatalogEntry, error) {
	var e CatalogEntry
	var started string
	err := sc.Scan(&e.ID, &e.Number, &started, &e.Seed, &e.Counters.Events, &e.Workers, &e.Format, &e.Source,
		&e.Counters.EventsWithHits, &e.Counters.HitRows, &e.Counters.FluxRows, &e.Counters.Missing, &e.ElapsedMS)
	if err != nil {
		return e, err
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	return e, nil
}

func (c *Catalog) Runs(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM runs ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Run returns one recorded run; an unknown id wraps ErrRunNotFound.
func (c *Catalog) Run(ctx context.Context, id string) (*CatalogEntry, error) {
	e, err := scanEntry(c.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Catalog) Detectors(ctx context.Context, runID string) ([]DetectorRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT detector_id, name, hits, mean_edep_kev
		FROM run_detectors WHERE run_id = ? ORDER BY detector_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DetectorRow
	for rows.Next() {
		var d DetectorRow
		if err := rows.Scan(&d.ID, &d.Name, &d.Hits, &d.MeanEdepKeV); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
