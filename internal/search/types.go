package search

import (
	"errors"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/transform"
)

// #region status

// Status is the terminal state of a search.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusExhausted Status = "exhausted"
)

// #endregion status

// #region config

// Config holds the particle swarm parameters.
type Config struct {
	PopSize        int     // particles
	MaxIters       int     // iterations before the search is exhausted
	MaxTurnRetries int     // resamples of a turn rejected by the constraints
	Omega1         float64 // inertia at the first iteration
	Omega2         float64 // inertia at the last iteration
	C1             float64 // initial probability of turning toward the personal best
	C2             float64 // initial probability of turning toward the global best
	VMax           float64 // velocity bound
	Concurrency    int     // concurrent scoring calls within one generation
	Seed           int64   // 0 picks a time-based seed
}

// DefaultConfig returns the standard swarm settings.
func DefaultConfig() Config {
	return Config{
		PopSize:        80,
		MaxIters:       40,
		MaxTurnRetries: 10,
		Omega1:         0.8,
		Omega2:         0.2,
		C1:             0.8,
		C2:             0.2,
		VMax:           3.0,
		Concurrency:    8,
	}
}

// #endregion config

// #region result

// IterationStats summarises one finished iteration.
type IterationStats struct {
	Iteration             int
	BestFitness           float64
	BestText              string
	Evaluations           int // cumulative scored candidates
	LowerPrecisionMatches int // cumulative diagnostic matches below full precision
	TurnRejects           int // turns abandoned after all retries, this iteration
}

// Observer receives per-iteration statistics. It runs on the search goroutine.
type Observer func(IterationStats)

// Result is what survives a search: the best candidate and how the search ended.
type Result struct {
	Best                  transform.Candidate
	Status                Status
	Iterations            int
	Evaluations           int
	LowerPrecisionMatches int
	Seed                  int64
}

// ErrSeedRejected is returned when the starting sentence itself violates the
// structural constraints, so no legal result could be returned.
var ErrSeedRejected = errors.New("seed sentence violates structural constraints")

// #endregion result
