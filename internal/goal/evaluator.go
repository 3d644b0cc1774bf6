package goal

import (
	"math"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
)

// #region evaluation

// Evaluation is the goal verdict for one score vector.
type Evaluation struct {
	Fitness   float64 // -L2 distance of the rounded vectors; 0 is optimal
	Satisfied bool    // exact match at full precision
	// MatchedDecimals lists every decimal level 1..Precision at which the
	// rounded vectors were equal. Diagnostic only.
	MatchedDecimals []int
	Precision       int
}

// LowerPrecisionMatch reports a match at some level below full precision.
func (e Evaluation) LowerPrecisionMatch() bool {
	for _, d := range e.MatchedDecimals {
		if d < e.Precision {
			return true
		}
	}
	return false
}

// #endregion evaluation

// #region evaluator

// Evaluator compares score vectors against a TargetSpec. It is a pure function
// of its inputs and safe for concurrent use.
type Evaluator struct {
	target *TargetSpec
}

// NewEvaluator creates an evaluator for target.
func NewEvaluator(target *TargetSpec) *Evaluator {
	return &Evaluator{target: target}
}

// Target returns the target being matched.
func (e *Evaluator) Target() *TargetSpec {
	return e.target
}

// Evaluate scores a vector positioned by the target's label order.
func (e *Evaluator) Evaluate(scores []float64) Evaluation {
	p := e.target.precision
	if len(scores) != len(e.target.probs) {
		return Evaluation{Fitness: math.Inf(-1), Precision: p}
	}

	var matched []int
	for d := 1; d <= p; d++ {
		if equalAt(scores, e.target.probs, d) {
			matched = append(matched, d)
		}
	}

	var sumSq float64
	for i, s := range scores {
		diff := Round(s, p) - Round(e.target.probs[i], p)
		sumSq += diff * diff
	}

	return Evaluation{
		Fitness:         -math.Sqrt(sumSq),
		Satisfied:       equalAt(scores, e.target.probs, p),
		MatchedDecimals: matched,
		Precision:       p,
	}
}

// EvaluateScores aligns a label→score map to the target order, then evaluates it.
func (e *Evaluator) EvaluateScores(scores map[string]float64) (Evaluation, error) {
	vec, err := oracle.Align(scores, e.target.labels)
	if err != nil {
		return Evaluation{}, err
	}
	return e.Evaluate(vec), nil
}

// #endregion evaluator

// #region rounding

var pow10 = [...]float64{1, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10, 1e11, 1e12, 1e13, 1e14, 1e15}

func scale(d int) float64 {
	if d < len(pow10) {
		return pow10[d]
	}
	return math.Pow(10, float64(d))
}

// grid maps x onto the integer grid of d decimals, rounding half to even.
func grid(x float64, d int) float64 {
	return math.RoundToEven(x * scale(d))
}

// Round rounds x to d decimals, half to even.
func Round(x float64, d int) float64 {
	return grid(x, d) / scale(d)
}

// RoundAll rounds every element of xs to d decimals.
func RoundAll(xs []float64, d int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = Round(x, d)
	}
	return out
}

// equalAt reports whether a and b coincide on the d-decimal grid.
func equalAt(a, b []float64, d int) bool {
	for i := range a {
		if grid(a[i], d) != grid(b[i], d) {
			return false
		}
	}
	return true
}

// #endregion rounding
