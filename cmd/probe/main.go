package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/config"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/modelclient"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/probe"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to a YAML config (defaults apply when empty)")
	reference := flag.String("reference", "", "probe a single reference sentence and exit")
	relax := flag.Bool("relax", false, "lower the similarity threshold when the bootstrap is exhausted")
	logits := flag.Bool("logits", false, "score with softmax over raw logits instead of the pipeline output")
	jsonOut := flag.Bool("json", false, "print results as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	runs, err := store.NewStore(cfg.DB)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer runs.Close()

	// Connect to the model service
	client, err := modelclient.New(cfg.ModelAddr)
	if err != nil {
		log.Fatalf("failed to connect to model service at %s: %v", cfg.ModelAddr, err)
	}
	defer client.Close()

	var scorer oracle.ScoreOracle = oracle.NewPipelineOracle(client)
	if *logits {
		scorer = oracle.NewLogitsOracle(client)
	}

	prober, err := probe.New(cfg.Probe(), probe.Models{
		Oracle:           scorer,
		Embeddings:       client,
		MaskedLM:         client,
		Paraphraser:      client,
		SentenceEmbedder: client,
	})
	if err != nil {
		log.Fatalf("failed to build prober: %v", err)
	}
	prober.WithRecorder(runs)

	runOnce := func(ref string) {
		var res probe.Result
		var err error
		if *relax {
			res, err = prober.RunWithRelaxation(context.Background(), ref)
		} else {
			res, err = prober.Run(context.Background(), ref)
		}
		if err != nil {
			log.Printf("probe error (run %s): %v", res.RunID, err)
			return
		}
		printResult(res, *jsonOut)
	}

	if *reference != "" {
		runOnce(*reference)
		return
	}

	fmt.Println("Score-matching probe ready.")
	fmt.Printf("  DB: %s | Models: %s\n", cfg.DB, cfg.ModelAddr)
	fmt.Println("Type a reference sentence (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		ref := strings.TrimSpace(scanner.Text())
		if ref == "" {
			continue
		}
		if ref == "quit" || ref == "exit" {
			break
		}
		runOnce(ref)
	}
}

// #endregion main

// #region output
func printResult(res probe.Result, jsonOut bool) {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Printf("encode result: %v", err)
		}
		return
	}
	fmt.Printf("\n%s\n\n", res.Sentence)
	fmt.Printf("[%s] status=%s iterations=%d evaluations=%d elapsed=%.1fs seed=%d\n",
		res.RunID, res.Status, res.Iterations, res.Evaluations, res.ElapsedSeconds, res.RNGSeed)
	fmt.Printf("  target=%v\n  scores=%v\n  valid=%v (%s)\n",
		res.Target, res.Scores, res.Validation.Passed, res.Validation.Reason)
}

// #endregion output
