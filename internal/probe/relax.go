package probe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/bootstrap"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region policy

// RelaxPolicy decides whether a run that failed to bootstrap is retried with
// a lower similarity threshold.
type RelaxPolicy struct {
	Step float64
	Max  int
}

// ShouldRelax returns whether to retry after err, given the number of
// relaxations already made, and the threshold to retry with.
func (r RelaxPolicy) ShouldRelax(err error, relaxations int, threshold float64) (bool, float64) {
	var exhausted *bootstrap.ExhaustedError
	if !errors.As(err, &exhausted) {
		return false, threshold
	}
	if relaxations >= r.Max || r.Step <= 0 {
		return false, threshold
	}
	next := threshold - r.Step
	if next < 0 {
		return false, threshold
	}
	return true, next
}

// #endregion policy

// #region run-with-relaxation

// RunWithRelaxation runs like Run, but after a bootstrap exhaustion retries
// with the similarity threshold lowered by RelaxStep, at most MaxRelaxations
// times. The last error is returned when every attempt fails.
func (p *Prober) RunWithRelaxation(ctx context.Context, reference string) (Result, error) {
	policy := RelaxPolicy{Step: p.cfg.RelaxStep, Max: p.cfg.MaxRelaxations}
	cfg := p.cfg

	threshold := cfg.Bootstrap.SimilarityThreshold
	for relaxations := 0; ; relaxations++ {
		cfg.Bootstrap.SimilarityThreshold = threshold
		res, err := p.run(ctx, reference, cfg)
		if err == nil {
			return res, nil
		}
		retry, next := policy.ShouldRelax(err, relaxations, threshold)
		if !retry {
			return res, err
		}
		log.Printf("[PROBE] bootstrap exhausted at threshold %.3f, relaxing to %.3f", threshold, next)
		p.decide(res.RunID, store.DecisionThresholdRelaxed, fmt.Sprintf("%.3f -> %.3f", threshold, next), nil)
		threshold = next
	}
}

// #endregion run-with-relaxation
