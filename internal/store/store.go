// Package store persists probe runs, search progress and decisions in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS probe_runs (
	run_id          TEXT PRIMARY KEY,
	reference       TEXT NOT NULL,
	seed_sentence   TEXT,
	final_sentence  TEXT,
	labels_json     TEXT NOT NULL,
	scores_json     TEXT,
	target_json     TEXT NOT NULL,
	target_precision INTEGER NOT NULL,
	status          TEXT NOT NULL,
	iterations      INTEGER NOT NULL DEFAULT 0,
	evaluations     INTEGER NOT NULL DEFAULT 0,
	elapsed_seconds REAL NOT NULL DEFAULT 0,
	rng_seed        INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_iterations (
	run_id                  TEXT NOT NULL,
	iteration               INTEGER NOT NULL,
	best_fitness            REAL NOT NULL,
	best_text               TEXT NOT NULL,
	evaluations             INTEGER NOT NULL,
	lower_precision_matches INTEGER NOT NULL,
	turn_rejects            INTEGER NOT NULL,
	PRIMARY KEY (run_id, iteration),
	FOREIGN KEY (run_id) REFERENCES probe_runs(run_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	decision    TEXT NOT NULL,
	reason      TEXT,
	detail_json TEXT,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages probe runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region new-run-id
// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// #endregion new-run-id

// #region save-run
// SaveRun inserts rec, or overwrites the stored row with the same RunID.
// A run is saved once as "running" before the search so that iteration rows
// can reference it, then again with its outcome.
func (s *Store) SaveRun(rec RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	labelsJSON, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	targetJSON, err := json.Marshal(rec.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	var scores any
	if rec.Scores != nil {
		b, err := json.Marshal(rec.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		scores = string(b)
	}

	_, err = s.db.Exec(
		`INSERT INTO probe_runs (run_id, reference, seed_sentence, final_sentence, labels_json, scores_json,
			target_json, target_precision, status, iterations, evaluations, elapsed_seconds, rng_seed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			seed_sentence = excluded.seed_sentence,
			final_sentence = excluded.final_sentence,
			scores_json = excluded.scores_json,
			status = excluded.status,
			iterations = excluded.iterations,
			evaluations = excluded.evaluations,
			elapsed_seconds = excluded.elapsed_seconds,
			rng_seed = excluded.rng_seed`,
		rec.RunID, rec.Reference, nullIfEmpty(rec.SeedSentence), nullIfEmpty(rec.FinalSentence),
		string(labelsJSON), scores, string(targetJSON), rec.Precision, rec.Status,
		rec.Iterations, rec.Evaluations, rec.ElapsedSeconds, rec.RNGSeed,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	log.Printf("[STORE] run %s saved (%s)", rec.RunID, rec.Status)
	return nil
}

// #endregion save-run

// #region record-iteration
// RecordIteration stores one iteration summary of a saved run.
func (s *Store) RecordIteration(it IterationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO search_iterations (run_id, iteration, best_fitness, best_text, evaluations, lower_precision_matches, turn_rejects)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.RunID, it.Iteration, it.BestFitness, it.BestText, it.Evaluations, it.LowerPrecisionMatches, it.TurnRejects,
	)
	if err != nil {
		return fmt.Errorf("record iteration %d of %s: %w", it.Iteration, it.RunID, err)
	}
	return nil
}

// Iterations returns the iteration summaries of a run in order.
func (s *Store) Iterations(runID string) ([]IterationRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, best_fitness, best_text, evaluations, lower_precision_matches, turn_rejects
		 FROM search_iterations WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var out []IterationRecord
	for rows.Next() {
		var it IterationRecord
		if err := rows.Scan(&it.RunID, &it.Iteration, &it.BestFitness, &it.BestText,
			&it.Evaluations, &it.LowerPrecisionMatches, &it.TurnRejects); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// #endregion record-iteration

// #region get-run
const runColumns = `run_id, reference, seed_sentence, final_sentence, labels_json, scores_json,
	target_json, target_precision, status, iterations, evaluations, elapsed_seconds, rng_seed, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM probe_runs WHERE run_id = ?`, id))
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM probe_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var seed, final, scoresJSON sql.NullString
	var labelsJSON, targetJSON, createdStr string

	err := row.Scan(&rec.RunID, &rec.Reference, &seed, &final, &labelsJSON, &scoresJSON,
		&targetJSON, &rec.Precision, &rec.Status, &rec.Iterations, &rec.Evaluations,
		&rec.ElapsedSeconds, &rec.RNGSeed, &createdStr)
	if err != nil {
		return RunRecord{}, err
	}
	rec.SeedSentence = seed.String
	rec.FinalSentence = final.String
	if err := json.Unmarshal([]byte(labelsJSON), &rec.Labels); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal labels: %w", err)
	}
	if err := json.Unmarshal([]byte(targetJSON), &rec.Target); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal target: %w", err)
	}
	if scoresJSON.Valid {
		if err := json.Unmarshal([]byte(scoresJSON.String), &rec.Scores); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal scores: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-run
