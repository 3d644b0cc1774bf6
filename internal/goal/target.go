package goal

import (
	"context"
	"fmt"
	"math"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
)

// #region constants

// SumTolerance is the absolute slack allowed between the rounded target sum and 1.
const SumTolerance = 1e-2

// DefaultPrecision is the number of decimals matched when none is configured.
const DefaultPrecision = 3

// #endregion constants

// #region invalid-target-error

// InvalidTargetError reports a target vector that cannot be matched by construction.
type InvalidTargetError struct {
	Probabilities []float64
	Precision     int
	Sum           float64
	Reason        string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %v at precision %d (sum %.6f): %s",
		e.Probabilities, e.Precision, e.Sum, e.Reason)
}

// #endregion invalid-target-error

// #region target-spec

// TargetSpec is the rounded probability vector a probe tries to reproduce.
// It is immutable after construction; accessors return copies.
type TargetSpec struct {
	probs     []float64
	labels    []string
	precision int
	dominant  int
}

// NewTargetSpec rounds probs to precision decimals and validates the result.
// labels gives the positional meaning of probs.
func NewTargetSpec(probs []float64, labels []string, precision int) (*TargetSpec, error) {
	invalid := func(sum float64, reason string) error {
		return &InvalidTargetError{
			Probabilities: append([]float64(nil), probs...),
			Precision:     precision,
			Sum:           sum,
			Reason:        reason,
		}
	}
	if precision < 1 {
		return nil, invalid(0, "precision must be at least 1")
	}
	if len(probs) == 0 {
		return nil, invalid(0, "empty probability vector")
	}
	if len(labels) != len(probs) {
		return nil, invalid(0, fmt.Sprintf("%d labels for %d probabilities", len(labels), len(probs)))
	}

	rounded := RoundAll(probs, precision)
	var sum float64
	for _, p := range rounded {
		sum += p
	}
	for i, p := range rounded {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, invalid(sum, fmt.Sprintf("probability %d (%v) outside [0,1]", i, probs[i]))
		}
	}
	if math.Abs(sum-1.0) > SumTolerance {
		return nil, invalid(sum, "rounded probabilities must sum to ~1")
	}

	dominant := 0
	for i, p := range rounded {
		if p > rounded[dominant] {
			dominant = i
		}
	}

	return &TargetSpec{
		probs:     rounded,
		labels:    append([]string(nil), labels...),
		precision: precision,
		dominant:  dominant,
	}, nil
}

// TargetFromOracle scores reference through o and builds the target from the result.
func TargetFromOracle(ctx context.Context, o oracle.ScoreOracle, reference string, precision int) (*TargetSpec, error) {
	labels, err := o.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("target labels: %w", err)
	}
	scores, err := o.Predict(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("score reference: %w", err)
	}
	vec, err := oracle.Align(scores, labels)
	if err != nil {
		return nil, &InvalidTargetError{Precision: precision, Reason: err.Error()}
	}
	return NewTargetSpec(vec, labels, precision)
}

// Probabilities returns the rounded target vector.
func (t *TargetSpec) Probabilities() []float64 {
	return append([]float64(nil), t.probs...)
}

// Labels returns the label order the vector follows.
func (t *TargetSpec) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Precision returns the number of decimals that must match.
func (t *TargetSpec) Precision() int {
	return t.precision
}

// Dominant returns the index of the highest rounded probability.
func (t *TargetSpec) Dominant() int {
	return t.dominant
}

// DominantLabel returns the label of the highest rounded probability.
func (t *TargetSpec) DominantLabel() string {
	return t.labels[t.dominant]
}

// Scores returns the target as a label→probability map.
func (t *TargetSpec) Scores() map[string]float64 {
	out := make(map[string]float64, len(t.labels))
	for i, l := range t.labels {
		out[l] = t.probs[i]
	}
	return out
}

// #endregion target-spec

// #region precision

// PrecisionFromEpsilon converts a tolerance such as 1e-3 into a decimal count.
func PrecisionFromEpsilon(epsilon float64) (int, error) {
	if !(epsilon > 0 && epsilon < 1) {
		return 0, fmt.Errorf("epsilon %v must be in (0,1)", epsilon)
	}
	return int(math.Round(-math.Log10(epsilon))), nil
}

// #endregion precision
