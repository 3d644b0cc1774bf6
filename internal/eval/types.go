package eval

// #region eval-config
// EvalConfig holds the validation policy.
type EvalConfig struct {
	RequireGoal     bool    // fail results whose scores miss the target
	MaxAbsDiffAlert float64 // log when the largest score gap exceeds this
}

// DefaultEvalConfig returns the standard policy: constraints block, the goal
// is reported only.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		RequireGoal:     false,
		MaxAbsDiffAlert: 0.05,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name     string
	Value    float64
	Pass     bool
	Blocking bool // a failing blocking metric fails the result
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of result validation.
type EvalResult struct {
	Passed    bool
	GoalMatch bool
	Metrics   []EvalMetric
	Reason    string
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
