package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to probe_runs.db")
	last := flag.Int("last", 20, "show N most recent runs")
	run := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/probe_runs.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	runs, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer runs.Close()

	if *run != "" {
		err = runDetailMode(runs, *run, *jsonOut)
	} else {
		err = runListMode(runs, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Iterations  int       `json:"iterations"`
	Evaluations int       `json:"evaluations"`
	Elapsed     float64   `json:"elapsed_seconds"`
	Target      []float64 `json:"target"`
	Scores      []float64 `json:"scores,omitempty"`
	Sentence    string    `json:"final_sentence,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

func runListMode(runs *store.Store, last int, jsonOut bool) error {
	records, err := runs.ListRuns(last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns newest first, reverse for chronological
	rows := make([]listRow, len(records))
	for i, r := range records {
		rows[len(records)-1-i] = listRow{
			RunID:       r.RunID,
			Status:      r.Status,
			Iterations:  r.Iterations,
			Evaluations: r.Evaluations,
			Elapsed:     r.ElapsedSeconds,
			Target:      r.Target,
			Scores:      goal.RoundAll(r.Scores, r.Precision),
			Sentence:    r.FinalSentence,
			CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-12s  %-10s  %5s  %7s  %8s  %-20s  %s\n",
		"Run", "Status", "Iters", "Evals", "Elapsed", "Scores", "Time")
	fmt.Printf("%-12s+-%-10s+-%5s+-%7s+-%8s+-%-20s+-%s\n",
		"------------", "----------", "-----", "-------", "--------", "--------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-10s  %5d  %7d  %7.1fs  %-20s  %s\n",
			shortID(r.RunID), r.Status, r.Iterations, r.Evaluations, r.Elapsed, fmt.Sprint(r.Scores), r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run        store.RunRecord         `json:"run"`
	Iterations []store.IterationRecord `json:"iterations"`
	Decisions  []store.ProvenanceEntry `json:"decisions"`
}

func runDetailMode(runs *store.Store, id string, jsonOut bool) error {
	rec, err := runs.GetRun(id)
	if err != nil {
		return err
	}
	its, err := runs.Iterations(id)
	if err != nil {
		return err
	}
	decisions, err := runs.Decisions(id)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(detailOutput{Run: rec, Iterations: its, Decisions: decisions})
	}

	fmt.Printf("Run:        %s\n", rec.RunID)
	fmt.Printf("Status:     %s\n", rec.Status)
	fmt.Printf("Reference:  %s\n", rec.Reference)
	fmt.Printf("Seed:       %s\n", rec.SeedSentence)
	fmt.Printf("Final:      %s\n", rec.FinalSentence)
	fmt.Printf("Labels:     %v\n", rec.Labels)
	fmt.Printf("Target:     %v (precision %d)\n", rec.Target, rec.Precision)
	fmt.Printf("Scores:     %v\n", rec.Scores)
	fmt.Printf("Search:     %d iterations, %d evaluations, %.1fs, rng seed %d\n",
		rec.Iterations, rec.Evaluations, rec.ElapsedSeconds, rec.RNGSeed)

	if len(its) > 0 {
		fmt.Printf("\n%5s  %12s  %7s  %7s  %7s  %s\n", "Iter", "Fitness", "Evals", "Lower", "Rejects", "Best")
		for _, it := range its {
			fmt.Printf("%5d  %12.6f  %7d  %7d  %7d  %s\n",
				it.Iteration, it.BestFitness, it.Evaluations, it.LowerPrecisionMatches, it.TurnRejects, it.BestText)
		}
	}
	if len(decisions) > 0 {
		fmt.Println("\nDecisions:")
		for _, d := range decisions {
			fmt.Printf("  %s  %-20s %s\n", d.CreatedAt.Format("2006-01-02T15:04:05Z"), d.Decision, d.Reason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
