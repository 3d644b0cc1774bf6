package search

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/transform"
)

// #region mocks

// wordOracle starts at 0.9 positive and subtracts a fixed amount per
// occurrence of a penalised word.
type wordOracle struct {
	penalty map[string]float64
	err     error
	calls   atomic.Int64
}

func (o *wordOracle) Predict(ctx context.Context, sentence string) (map[string]float64, error) {
	o.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.err != nil {
		return nil, o.err
	}
	pos := 0.9
	for _, w := range strings.Fields(sentence) {
		pos -= o.penalty[w]
	}
	return map[string]float64{"POSITIVE": pos, "NEGATIVE": 1 - pos}, nil
}

func (o *wordOracle) Labels(context.Context) ([]string, error) {
	return []string{"POSITIVE", "NEGATIVE"}, nil
}

type neighbourModel map[string][]string

func (m neighbourModel) NearestWords(_ context.Context, word string, k int) ([]string, error) {
	n := m[word]
	if len(n) > k {
		n = n[:k]
	}
	return n, nil
}

const seedSentence = "the food was good and warm"

func newWorld(t *testing.T, maxLen int, target []float64) (*transform.Engine, *wordOracle, *goal.Evaluator) {
	t.Helper()
	return newWorldIn(t, constraint.Context{MaxLength: maxLen}, target)
}

func newWorldIn(t *testing.T, limits constraint.Context, target []float64) (*transform.Engine, *wordOracle, *goal.Evaluator) {
	t.Helper()
	filter, err := constraint.NewFilter(limits)
	if err != nil {
		t.Fatal(err)
	}
	emb := neighbourModel{
		"food": {"meal"},
		"good": {"fine", "okay"},
		"warm": {"hot", "cold"},
	}
	engine := transform.NewEngine(filter, transform.EmbeddingSwap{Model: emb, MaxCandidates: 10})
	o := &wordOracle{penalty: map[string]float64{"okay": 0.2, "cold": 0.1}}
	spec, err := goal.NewTargetSpec(target, []string{"POSITIVE", "NEGATIVE"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	return engine, o, goal.NewEvaluator(spec)
}

func smallConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.PopSize = 6
	cfg.MaxIters = 5
	cfg.Concurrency = 3
	cfg.Seed = seed
	return cfg
}

// #endregion mocks

// #region tests

func TestSwarm_FindsReachableTarget(t *testing.T) {
	engine, o, ev := newWorld(t, 100, []float64{0.6, 0.4})
	var seen []IterationStats
	s := NewSwarm(smallConfig(42), engine, o, ev)
	s.Observe(func(st IterationStats) { seen = append(seen, st) })

	res, err := s.Run(context.Background(), seedSentence)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSucceeded {
		t.Fatalf("expected success, got %s with best %q", res.Status, res.Best.Text())
	}
	if len(seen) != res.Iterations {
		t.Fatalf("observer saw %d iterations, run took %d", len(seen), res.Iterations)
	}
	if res.Iterations > 0 {
		last := seen[len(seen)-1]
		if last.Iteration != res.Iterations || last.BestText != res.Best.Text() || last.BestFitness != 0 {
			t.Errorf("final iteration stats %+v do not describe the winner %q", last, res.Best.Text())
		}
	}
	if !ev.Evaluate(res.Best.Scores).Satisfied {
		t.Errorf("returned scores %v do not satisfy the target", res.Best.Scores)
	}
	if !strings.Contains(res.Best.Text(), "okay") || !strings.Contains(res.Best.Text(), "cold") {
		t.Errorf("unexpected winning sentence %q", res.Best.Text())
	}
	if !engine.Filter().Accepts(res.Best.Text()) {
		t.Errorf("result %q violates constraints", res.Best.Text())
	}
	if res.Seed != 42 {
		t.Errorf("seed not reported: %d", res.Seed)
	}
	if res.Evaluations == 0 || int64(res.Evaluations) != o.calls.Load() {
		t.Errorf("evaluations %d, oracle calls %d", res.Evaluations, o.calls.Load())
	}
}

func TestSwarm_ExhaustsAfterMaxIters(t *testing.T) {
	// no sentence in this world goes below 0.6 positive
	engine, o, ev := newWorld(t, 100, []float64{0.1, 0.9})
	cfg := smallConfig(7)
	cfg.MaxIters = 3

	var seen []IterationStats
	s := NewSwarm(cfg, engine, o, ev)
	s.Observe(func(st IterationStats) { seen = append(seen, st) })

	res, err := s.Run(context.Background(), seedSentence)
	if err != nil {
		t.Fatalf("exhaustion is a status, not an error: %v", err)
	}
	if res.Status != StatusExhausted || res.Iterations != 3 {
		t.Fatalf("got status %s after %d iterations", res.Status, res.Iterations)
	}
	if len(seen) != 3 || seen[2].Iteration != 3 {
		t.Errorf("observer saw %d iterations", len(seen))
	}
	if !res.Best.Scored {
		t.Error("best candidate must carry its scores")
	}
	// the best reachable sentence is 0.6 positive
	if got := goal.Round(res.Best.Scores[0], 2); got != 0.6 {
		t.Errorf("expected the global best (0.6 positive), got %v for %q", got, res.Best.Text())
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].BestFitness < seen[i-1].BestFitness {
			t.Errorf("global best regressed at iteration %d", seen[i].Iteration)
		}
	}
}

func TestSwarm_SeedAlreadySatisfies(t *testing.T) {
	engine, o, ev := newWorld(t, 100, []float64{0.9, 0.1})
	res, err := NewSwarm(smallConfig(1), engine, o, ev).Run(context.Background(), seedSentence)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSucceeded || res.Iterations != 0 || res.Evaluations != 1 {
		t.Errorf("got %+v", res)
	}
	if res.Best.Text() != seedSentence {
		t.Errorf("expected the seed back, got %q", res.Best.Text())
	}
}

func TestSwarm_RejectsIllegalSeed(t *testing.T) {
	engine, o, ev := newWorld(t, 10, []float64{0.6, 0.4})
	_, err := NewSwarm(smallConfig(1), engine, o, ev).Run(context.Background(), seedSentence)
	if !errors.Is(err, ErrSeedRejected) {
		t.Fatalf("expected ErrSeedRejected, got %v", err)
	}
	if o.calls.Load() != 0 {
		t.Error("an illegal seed must not be scored")
	}
}

func TestSwarm_ResultAlwaysLegal(t *testing.T) {
	// "hot" shortens the sentence below the minimum length
	limits := constraint.Context{MinLength: len(seedSentence), MaxLength: 100}
	engine, o, ev := newWorldIn(t, limits, []float64{0.1, 0.9})
	res, err := NewSwarm(smallConfig(3), engine, o, ev).Run(context.Background(), seedSentence)
	if err != nil {
		t.Fatal(err)
	}
	if !engine.Filter().Accepts(res.Best.Text()) {
		t.Errorf("result %q violates constraints", res.Best.Text())
	}
	if strings.Contains(res.Best.Text(), "hot") {
		t.Errorf("rejected edit leaked into %q", res.Best.Text())
	}
}

func TestSwarm_DeterministicWithSeed(t *testing.T) {
	run := func() Result {
		engine, o, ev := newWorld(t, 100, []float64{0.1, 0.9})
		res, err := NewSwarm(smallConfig(99), engine, o, ev).Run(context.Background(), seedSentence)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if a.Best.Text() != b.Best.Text() || a.Evaluations != b.Evaluations {
		t.Errorf("runs diverged: %q/%d vs %q/%d", a.Best.Text(), a.Evaluations, b.Best.Text(), b.Evaluations)
	}
}

func TestSwarm_OracleErrorAborts(t *testing.T) {
	engine, o, ev := newWorld(t, 100, []float64{0.6, 0.4})
	o.err = errors.New("model server unavailable")
	_, err := NewSwarm(smallConfig(1), engine, o, ev).Run(context.Background(), seedSentence)
	if !errors.Is(err, o.err) {
		t.Fatalf("expected oracle error, got %v", err)
	}
}

func TestSwarm_Cancelled(t *testing.T) {
	engine, o, ev := newWorld(t, 100, []float64{0.6, 0.4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSwarm(smallConfig(1), engine, o, ev).Run(ctx, seedSentence)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSample_FollowsDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		if got := sample(rng, []float64{0, 1, 0}); got != 1 {
			t.Fatalf("drew zero-probability index %d", got)
		}
	}
	counts := make([]int, 2)
	for i := 0; i < 2000; i++ {
		counts[sample(rng, []float64{0.25, 0.75})]++
	}
	if counts[1] < 2*counts[0] {
		t.Errorf("skewed draw counts %v", counts)
	}
}

func TestSigmoid(t *testing.T) {
	if sigmoid(0) != 0.5 || sigmoid(10) < 0.99 || sigmoid(-10) > 0.01 {
		t.Errorf("sigmoid out of shape")
	}
}

// #endregion tests
