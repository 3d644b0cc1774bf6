// Package probe runs one end-to-end score-matching probe: it fixes the target
// from a reference sentence, bootstraps a seed paraphrase, searches from it,
// and validates what the search returns.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/bootstrap"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/eval"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/search"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/transform"
)

// #region prober-struct

// Prober is the top-level coordinator for a probe run.
type Prober struct {
	cfg      Config
	models   Models
	recorder Recorder
}

// #endregion prober-struct

// #region constructor

// New validates the model set and returns a prober.
func New(cfg Config, models Models) (*Prober, error) {
	switch {
	case models.Oracle == nil:
		return nil, errors.New("probe: score oracle is required")
	case models.Paraphraser == nil || models.SentenceEmbedder == nil:
		return nil, errors.New("probe: paraphrase and sentence embedding models are required")
	case models.Embeddings == nil && models.MaskedLM == nil:
		return nil, errors.New("probe: at least one word substitution model is required")
	}
	return &Prober{cfg: cfg, models: models}, nil
}

// WithRecorder attaches persistence. Recording failures are logged, never fatal.
func (p *Prober) WithRecorder(r Recorder) *Prober {
	p.recorder = r
	return p
}

// Config returns the active configuration.
func (p *Prober) Config() Config {
	return p.cfg
}

// #endregion constructor

// #region run

// Run probes with reference as the anchor. An invalid target or an exhausted
// bootstrap is returned as an error (see goal.InvalidTargetError and
// bootstrap.ExhaustedError); an exhausted search is a Result with
// StatusExhausted.
func (p *Prober) Run(ctx context.Context, reference string) (Result, error) {
	return p.run(ctx, reference, p.cfg)
}

func (p *Prober) run(ctx context.Context, reference string, cfg Config) (Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	runID := store.NewRunID()
	res := Result{RunID: runID, Reference: reference}

	precision, err := goal.PrecisionFromEpsilon(cfg.Epsilon)
	if err != nil {
		return res, err
	}

	scorer := p.models.Oracle
	if cfg.OracleCacheSize > 0 {
		cached, err := oracle.NewCached(scorer, cfg.OracleCacheSize)
		if err != nil {
			return res, err
		}
		scorer = cached
	}

	// 1. Target
	target, err := goal.TargetFromOracle(ctx, scorer, reference, precision)
	if err != nil {
		var invalid *goal.InvalidTargetError
		if errors.As(err, &invalid) {
			p.decide(runID, store.DecisionInvalidTarget, invalid.Error(), nil)
		}
		return res, fmt.Errorf("target: %w", err)
	}
	res.Target = target.Scores()
	log.Printf("[PROBE] run %s target=%v (precision %d)", runID, target.Probabilities(), precision)

	limits := constraint.Context{
		Anchor:          reference,
		MinEditDistance: cfg.MinEditDistance,
		MinLength:       cfg.MinLength,
		MaxLength:       cfg.MaxLength,
	}
	filter, err := constraint.NewFilter(limits)
	if err != nil {
		return res, fmt.Errorf("constraints: %w", err)
	}

	// 2. Seed
	bcfg := cfg.Bootstrap
	bcfg.MinEditDistance, bcfg.MinLength, bcfg.MaxLength = limits.MinEditDistance, limits.MinLength, limits.MaxLength
	seed, err := bootstrap.New(bcfg, p.models.Paraphraser, p.models.SentenceEmbedder).Generate(ctx, reference)
	if err != nil {
		var exhausted *bootstrap.ExhaustedError
		if errors.As(err, &exhausted) {
			p.decide(runID, store.DecisionBootstrapExhausted, exhausted.Error(), exhausted)
		}
		return res, fmt.Errorf("bootstrap: %w", err)
	}
	res.Seed = seed

	// 3. Search
	scfg := cfg.Search
	if scfg.Seed == 0 {
		scfg.Seed = time.Now().UnixNano()
	}
	res.RNGSeed = scfg.Seed

	engine, err := p.engine(cfg, filter, scfg.Seed)
	if err != nil {
		return res, err
	}

	rec := store.RunRecord{
		RunID:        runID,
		Reference:    reference,
		SeedSentence: seed,
		Labels:       target.Labels(),
		Target:       target.Probabilities(),
		Precision:    precision,
		Status:       store.StatusRunning,
		RNGSeed:      scfg.Seed,
	}
	p.save(rec)

	swarm := search.NewSwarm(scfg, engine, scorer, goal.NewEvaluator(target))
	swarm.Observe(func(st search.IterationStats) {
		if p.recorder == nil {
			return
		}
		if err := p.recorder.RecordIteration(store.IterationRecord{
			RunID:                 runID,
			Iteration:             st.Iteration,
			BestFitness:           st.BestFitness,
			BestText:              st.BestText,
			Evaluations:           st.Evaluations,
			LowerPrecisionMatches: st.LowerPrecisionMatches,
			TurnRejects:           st.TurnRejects,
		}); err != nil {
			log.Printf("[PROBE] failed to record iteration %d: %v", st.Iteration, err)
		}
	})

	start := time.Now()
	found, err := swarm.Run(ctx, seed)
	res.ElapsedSeconds = time.Since(start).Seconds()
	if err != nil {
		rec.Status = store.StatusFailed
		rec.ElapsedSeconds = res.ElapsedSeconds
		p.save(rec)
		return res, fmt.Errorf("search: %w", err)
	}
	res.Status = found.Status
	res.Iterations = found.Iterations
	res.Evaluations = found.Evaluations
	res.Sentence = found.Best.Text()

	// 4. Final re-score, bypassing the cache
	rec.FinalSentence = res.Sentence
	rec.Iterations = found.Iterations
	rec.Evaluations = found.Evaluations
	rec.ElapsedSeconds = res.ElapsedSeconds
	scores, err := p.models.Oracle.Predict(ctx, res.Sentence)
	if err != nil {
		rec.Status = store.StatusFailed
		p.save(rec)
		return res, fmt.Errorf("rescore: %w", err)
	}
	res.Scores = scores
	vec, err := oracle.Align(scores, target.Labels())
	if err != nil {
		rec.Status = store.StatusFailed
		p.save(rec)
		return res, fmt.Errorf("rescore: %w", err)
	}

	// 5. Validation and persistence
	res.Validation = eval.NewEvalHarness(cfg.Eval).Run(res.Sentence, vec, limits, target)

	rec.Scores = vec
	rec.Status = string(found.Status)
	p.save(rec)

	decision := store.DecisionExhausted
	if res.Succeeded() {
		decision = store.DecisionSucceeded
	}
	p.decide(runID, decision, res.Validation.Reason, res.Validation.Metrics)

	log.Printf("[PROBE] run %s %s after %d iterations (%.1fs): %q scores=%v valid=%v",
		runID, res.Status, res.Iterations, res.ElapsedSeconds, res.Sentence, vec, res.Validation.Passed)
	return res, nil
}

// engine builds the transformation families the configured models allow.
func (p *Prober) engine(cfg Config, filter *constraint.Filter, seed int64) (*transform.Engine, error) {
	var families []transform.Transformation
	add := func(t transform.Transformation) error {
		if cfg.ProposalCacheSize > 0 {
			cached, err := transform.Cached(t, cfg.ProposalCacheSize)
			if err != nil {
				return err
			}
			t = cached
		}
		families = append(families, t)
		return nil
	}
	if p.models.Embeddings != nil {
		if err := add(transform.EmbeddingSwap{Model: p.models.Embeddings, MaxCandidates: cfg.EmbeddingCandidates}); err != nil {
			return nil, err
		}
	}
	if p.models.MaskedLM != nil {
		if err := add(transform.MaskedLMSwap{Model: p.models.MaskedLM, MaxCandidates: cfg.MaskedLMCandidates}); err != nil {
			return nil, err
		}
	}
	if cfg.CharDeletion {
		families = append(families, transform.NewCharDeletion(rand.New(rand.NewSource(seed+1))))
	}
	return transform.NewEngine(filter, families...), nil
}

// #endregion run

// #region run-probe

// RunProbe is the library entry point: one run with default settings and the
// given structural band and precision.
func RunProbe(ctx context.Context, reference string, models Models, minEditDistance, minLength, maxLength int, epsilon float64) (Result, error) {
	cfg := DefaultConfig()
	cfg.MinEditDistance = minEditDistance
	cfg.MinLength = minLength
	cfg.MaxLength = maxLength
	cfg.Epsilon = epsilon
	p, err := New(cfg, models)
	if err != nil {
		return Result{}, err
	}
	return p.Run(ctx, reference)
}

// #endregion run-probe

// #region recording

func (p *Prober) save(rec store.RunRecord) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.SaveRun(rec); err != nil {
		log.Printf("[PROBE] failed to save run %s: %v", rec.RunID, err)
	}
}

func (p *Prober) decide(runID, decision, reason string, detail any) {
	if p.recorder == nil {
		return
	}
	entry := store.ProvenanceEntry{RunID: runID, Decision: decision, Reason: reason}
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			entry.DetailJSON = string(b)
		}
	}
	if err := p.recorder.LogDecision(entry); err != nil {
		log.Printf("[PROBE] failed to log decision %s: %v", decision, err)
	}
}

// #endregion recording
