package store

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table. Entries
// may refer to runs that never reached probe_runs, such as a rejected target.
func (s *Store) LogDecision(entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO provenance_log (run_id, decision, reason, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// Decisions returns the provenance entries of a run, oldest first.
func (s *Store) Decisions(runID string) ([]ProvenanceEntry, error) {
	rows, err := s.db.Query(
		`SELECT run_id, decision, reason, detail_json, created_at
		 FROM provenance_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var reason, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Decision, &reason, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Reason = reason.String
		e.DetailJSON = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-decision

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
