package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/modelclient"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/replay"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to probe_runs.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	exportPath := flag.String("export", "", "write the DB runs to this fixture path instead of re-scoring")
	last := flag.Int("last", 50, "number of most recent runs to read from the DB")
	addr := flag.String("model-addr", envOr("MODEL_ADDR", "localhost:50051"), "model service address")
	logits := flag.Bool("logits", false, "score with softmax over raw logits")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/probe_runs.db [--last N] [--export fixture.json]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var runs []store.RunRecord
	if *fixturePath != "" {
		f, err := replay.LoadFixture(*fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
			os.Exit(2)
		}
		runs = f.ToRunRecords()
	} else {
		var err error
		runs, err = loadRuns(*dbPath, *last)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		if *exportPath != "" {
			desc := fmt.Sprintf("%d runs exported from %s", len(runs), *dbPath)
			if err := replay.WriteFixture(*exportPath, replay.FixtureFromRuns(desc, runs)); err != nil {
				fmt.Fprintf(os.Stderr, "export: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Exported %d runs to %s\n", len(runs), *exportPath)
			return
		}
	}

	client, err := modelclient.New(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to model service at %s: %v\n", *addr, err)
		os.Exit(2)
	}
	defer client.Close()

	var scorer oracle.ScoreOracle = oracle.NewPipelineOracle(client)
	if *logits {
		scorer = oracle.NewLogitsOracle(client)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	outcomes, err := replay.Rescore(ctx, scorer, runs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rescore: %v\n", err)
		os.Exit(2)
	}
	os.Exit(printComparison(outcomes))
}

// #endregion main

// #region db-extract

func loadRuns(dbPath string, last int) ([]store.RunRecord, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(last)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs found in %s", dbPath)
	}
	return runs, nil
}

// #endregion db-extract

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(outcomes []replay.Outcome) int {
	fmt.Printf("%-12s| %-11s| %-20s| %-20s| %s\n", "Run", "Status", "Stored", "Fresh", "Match")
	fmt.Printf("%-12s+%-12s+%-21s+%-21s+%s\n",
		"------------", "------------", "---------------------", "---------------------", "------")

	for _, o := range outcomes {
		match := "OK"
		switch o.Action {
		case replay.ActionDrift:
			match = "DIFF"
		case replay.ActionSkipped:
			match = "SKIP"
		}
		id := o.RunID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Printf("%-12s| %-11s| %-20v| %-20v| %s\n", id, o.GoalStatus, o.Stored, o.Fresh, match)
	}

	s := replay.Summarize(outcomes)
	fmt.Printf("\nSummary: %d total, %d match, %d drift, %d skipped\n", s.Total, s.Idempotent, s.Drifted, s.Skipped)
	if s.Drifted > 0 {
		return 1
	}
	return 0
}

// #endregion output

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
