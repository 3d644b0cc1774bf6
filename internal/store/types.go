package store

import "time"

// #region run-record
// RunRecord is one probe run as persisted in probe_runs.
type RunRecord struct {
	RunID          string
	Reference      string
	SeedSentence   string
	FinalSentence  string
	Labels         []string
	Scores         []float64
	Target         []float64
	Precision      int
	Status         string // "running" | "succeeded" | "exhausted" | "failed"
	Iterations     int
	Evaluations    int
	ElapsedSeconds float64
	RNGSeed        int64
	CreatedAt      time.Time
}

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusExhausted = "exhausted"
	StatusFailed    = "failed"
)

// #endregion run-record

// #region iteration-record
// IterationRecord is the per-iteration search summary kept in search_iterations.
type IterationRecord struct {
	RunID                 string
	Iteration             int
	BestFitness           float64
	BestText              string
	Evaluations           int
	LowerPrecisionMatches int
	TurnRejects           int
}

// #endregion iteration-record

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	RunID      string
	Decision   string
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

const (
	DecisionSucceeded          = "succeeded"
	DecisionExhausted          = "exhausted"
	DecisionBootstrapExhausted = "bootstrap_exhausted"
	DecisionInvalidTarget      = "invalid_target"
	DecisionThresholdRelaxed   = "threshold_relaxed"
)

// #endregion provenance-entry
