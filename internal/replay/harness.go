// Package replay re-scores stored probe runs to check that their recorded
// scores are reproducible.
package replay

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region types
// Outcome is the replay verdict for one stored run.
type Outcome struct {
	RunID      string
	Sentence   string
	Action     string // "idempotent" | "drift" | "skipped"
	Reason     string
	Stored     []float64
	Fresh      []float64
	Precision  int
	GoalStatus string // stored search status
}

const (
	ActionIdempotent = "idempotent"
	ActionDrift      = "drift"
	ActionSkipped    = "skipped"
)

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total      int
	Idempotent int
	Drifted    int
	Skipped    int
}

// #endregion types

// #region rescore
// Rescore scores each run's final sentence again and compares the fresh
// vector with the stored one at the run's precision. Runs without a final
// sentence are skipped. Oracle failures abort the replay.
func Rescore(ctx context.Context, o oracle.ScoreOracle, runs []store.RunRecord) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(runs))
	for _, run := range runs {
		out := Outcome{
			RunID:      run.RunID,
			Sentence:   run.FinalSentence,
			Stored:     run.Scores,
			Precision:  run.Precision,
			GoalStatus: run.Status,
		}
		if run.FinalSentence == "" || len(run.Scores) == 0 {
			out.Action = ActionSkipped
			out.Reason = fmt.Sprintf("run is %s without final scores", run.Status)
			outcomes = append(outcomes, out)
			continue
		}

		fresh, err := oracle.Vector(ctx, o, run.Labels, run.FinalSentence)
		if err != nil {
			return outcomes, fmt.Errorf("rescore run %s: %w", run.RunID, err)
		}
		out.Fresh = fresh

		if slices.Equal(goal.RoundAll(fresh, run.Precision), goal.RoundAll(run.Scores, run.Precision)) {
			out.Action = ActionIdempotent
			out.Reason = fmt.Sprintf("equal at %d decimals", run.Precision)
		} else {
			out.Action = ActionDrift
			out.Reason = fmt.Sprintf("stored %v, fresh %v at %d decimals",
				goal.RoundAll(run.Scores, run.Precision), goal.RoundAll(fresh, run.Precision), run.Precision)
			log.Printf("[PROBE] replay drift in run %s: %s", run.RunID, out.Reason)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Summarize computes aggregate stats from replay outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Action {
		case ActionIdempotent:
			s.Idempotent++
		case ActionDrift:
			s.Drifted++
		case ActionSkipped:
			s.Skipped++
		}
	}
	return s
}

// #endregion rescore
