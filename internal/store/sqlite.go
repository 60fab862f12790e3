package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/order-agent/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	meta       TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id      TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL REFERENCES runs(id),
	kind    TEXT NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_dead_letters_run_id ON dead_letters(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, query string, result *model.AgentResult) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metaJSON, err := json.Marshal(result.Meta)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal meta")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, meta, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, query, string(metaJSON), string(resultJSON), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}

	for _, batch := range result.DLQ.FailedBatches {
		payload, err := json.Marshal(batch)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal failed batch")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dead_letters (id, run_id, kind, payload) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), id, "batch", string(payload),
		); err != nil {
			return "", eris.Wrap(err, "sqlite: insert failed batch")
		}
	}
	for _, rec := range result.DLQ.FailedRecords {
		payload, err := json.Marshal(rec)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal failed record")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dead_letters (id, run_id, kind, payload) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), id, "record", string(payload),
		); err != nil {
			return "", eris.Wrap(err, "sqlite: insert failed record")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit")
	}
	return id, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, *model.AgentResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, meta, result, created_at FROM runs WHERE id = ?`,
		runID,
	)

	var run Run
	var metaJSON, resultJSON string
	if err := row.Scan(&run.ID, &run.Query, &metaJSON, &resultJSON, &run.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, eris.New("sqlite: run not found: " + runID)
		}
		return nil, nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	if err := json.Unmarshal([]byte(metaJSON), &run.Meta); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: unmarshal meta")
	}
	var result model.AgentResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: unmarshal result")
	}

	return &run, &result, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, meta, created_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var metaJSON string
		if err := rows.Scan(&run.ID, &run.Query, &metaJSON, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(metaJSON), &run.Meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal meta")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
