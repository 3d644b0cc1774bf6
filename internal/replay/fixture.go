package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: stored runs
// exported so they can be re-scored without the database.
type Fixture struct {
	Description string       `json:"description"`
	Runs        []FixtureRun `json:"runs"`
}

// FixtureRun mirrors the replay-relevant fields of store.RunRecord.
type FixtureRun struct {
	RunID         string    `json:"run_id"`
	Reference     string    `json:"reference"`
	FinalSentence string    `json:"final_sentence"`
	Labels        []string  `json:"labels"`
	Scores        []float64 `json:"scores"`
	Target        []float64 `json:"target"`
	Precision     int       `json:"precision"`
	Status        string    `json:"status"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture serialises f to path.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// FixtureFromRuns exports stored runs.
func FixtureFromRuns(description string, runs []store.RunRecord) *Fixture {
	f := &Fixture{Description: description, Runs: make([]FixtureRun, len(runs))}
	for i, r := range runs {
		f.Runs[i] = FixtureRun{
			RunID:         r.RunID,
			Reference:     r.Reference,
			FinalSentence: r.FinalSentence,
			Labels:        r.Labels,
			Scores:        r.Scores,
			Target:        r.Target,
			Precision:     r.Precision,
			Status:        r.Status,
		}
	}
	return f
}

// ToRunRecords converts the fixture back into store records.
func (f *Fixture) ToRunRecords() []store.RunRecord {
	out := make([]store.RunRecord, len(f.Runs))
	for i, r := range f.Runs {
		out[i] = store.RunRecord{
			RunID:         r.RunID,
			Reference:     r.Reference,
			FinalSentence: r.FinalSentence,
			Labels:        r.Labels,
			Scores:        r.Scores,
			Target:        r.Target,
			Precision:     r.Precision,
			Status:        r.Status,
		}
	}
	return out
}

// #endregion fixture-loader
