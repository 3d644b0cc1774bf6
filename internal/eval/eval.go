package eval

import (
	"fmt"
	"log"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
)

// #region eval-harness
// EvalHarness validates a finished probe before it is reported.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks sentence against the structural limits and compares its final
// scores with the target. Structural checks block; the goal comparison only
// blocks when RequireGoal is set, since an exhausted search is still a
// valid result.
func (h *EvalHarness) Run(sentence string, scores []float64, limits constraint.Context, target *goal.TargetSpec) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Length band in code points
	length := utf8.RuneCountInString(sentence)
	lengthPass := length >= limits.MinLength && length <= limits.MaxLength
	metrics = append(metrics, EvalMetric{Name: "length", Value: float64(length), Pass: lengthPass, Blocking: true})
	if !lengthPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("length %d outside [%d, %d]", length, limits.MinLength, limits.MaxLength))
	}

	// 2. Edit distance from the anchor
	filter, err := constraint.NewFilter(limits)
	if err != nil {
		return EvalResult{Reason: fmt.Sprintf("eval failed: %v", err), Metrics: metrics}
	}
	dist := filter.EditDistance(sentence)
	distPass := dist >= limits.MinEditDistance
	metrics = append(metrics, EvalMetric{Name: "edit_distance", Value: float64(dist), Pass: distPass, Blocking: true})
	if !distPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("edit distance %d below %d", dist, limits.MinEditDistance))
	}

	// 3. Goal: largest absolute gap and deepest matched precision
	ev := goal.NewEvaluator(target).Evaluate(scores)
	gap := maxAbsDiff(scores, target.Probabilities())
	metrics = append(metrics, EvalMetric{Name: "max_abs_diff", Value: gap, Pass: ev.Satisfied, Blocking: h.config.RequireGoal})
	metrics = append(metrics, EvalMetric{Name: "matched_decimals", Value: float64(deepest(ev.MatchedDecimals)), Pass: ev.Satisfied, Blocking: h.config.RequireGoal})
	if gap > h.config.MaxAbsDiffAlert {
		log.Printf("[PROBE] eval: score gap %.4f exceeds alert level %.4f", gap, h.config.MaxAbsDiffAlert)
	}
	if h.config.RequireGoal && !ev.Satisfied {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("scores miss target at %d decimals", target.Precision()))
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), strings.Join(failReasons, "; "))
		}
	}

	return EvalResult{
		Passed:    passed,
		GoalMatch: ev.Satisfied,
		Metrics:   metrics,
		Reason:    reason,
	}
}

// #endregion eval-harness

// #region helpers
// maxAbsDiff is the largest element-wise gap; +Inf on length mismatch.
func maxAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

func deepest(levels []int) int {
	d := 0
	for _, l := range levels {
		d = max(d, l)
	}
	return d
}

// #endregion helpers
