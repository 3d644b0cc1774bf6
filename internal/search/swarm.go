package search

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/goal"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/transform"
)

// #region swarm

// Swarm is a discrete particle swarm over word substitutions. Particles move
// by copying words from their personal best and the global best; velocities
// are per word position and decide how likely a position is to be copied.
type Swarm struct {
	cfg      Config
	engine   *transform.Engine
	oracle   oracle.ScoreOracle
	eval     *goal.Evaluator
	observer Observer
}

// NewSwarm creates a swarm that proposes with engine and scores through o
// against eval's target.
func NewSwarm(cfg Config, engine *transform.Engine, o oracle.ScoreOracle, eval *goal.Evaluator) *Swarm {
	return &Swarm{cfg: cfg, engine: engine, oracle: o, eval: eval}
}

// Observe registers fn to receive per-iteration statistics.
func (s *Swarm) Observe(fn Observer) {
	s.observer = fn
}

type particle struct {
	cur      transform.Candidate
	best     transform.Candidate
	velocity []float64
}

// run is the mutable state of one search. It is owned by the goroutine that
// called Run; only scoring fans out.
type run struct {
	rng         *rand.Rand
	rngSeed     int64
	seed        transform.Candidate
	labels      []string
	swarm       []particle
	global      transform.Candidate
	evaluations int
	lowerHits   int
	rejects     int
}

// Run searches outward from seedText. It returns StatusSucceeded as soon as
// any scored candidate satisfies the goal, or StatusExhausted with the best
// candidate found after MaxIters iterations. The returned candidate always
// passes the engine's structural filter.
func (s *Swarm) Run(ctx context.Context, seedText string) (Result, error) {
	seedVal := s.cfg.Seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	st := &run{
		rng:     rand.New(rand.NewSource(seedVal)),
		rngSeed: seedVal,
		seed:    transform.NewCandidate(seedText),
		labels:  s.eval.Target().Labels(),
	}
	result := Result{Seed: seedVal, Status: StatusExhausted}

	if !s.engine.Filter().Accepts(seedText) {
		return result, fmt.Errorf("%w: %q", ErrSeedRejected, seedText)
	}

	scored, hit, err := s.score(ctx, st, []transform.Candidate{st.seed})
	if err != nil {
		return result, err
	}
	st.seed = scored[0]
	st.global = st.seed
	if hit != nil {
		log.Printf("[SWARM] seed already satisfies target: %q", hit.Text())
		return s.finish(st, *hit, StatusSucceeded, 0), nil
	}

	hit, err = s.initialise(ctx, st)
	if err != nil {
		return result, err
	}
	if hit != nil {
		return s.finish(st, *hit, StatusSucceeded, 0), nil
	}

	for i := 0; i < s.cfg.MaxIters; i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		hit, err := s.step(ctx, st, i)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		if hit != nil {
			log.Printf("[SWARM] target matched at iteration %d after %d evaluations", i+1, st.evaluations)
			return s.finish(st, *hit, StatusSucceeded, i+1), nil
		}
	}

	log.Printf("[SWARM] exhausted after %d iterations, best fitness %.6f", s.cfg.MaxIters, st.global.Fitness)
	return s.finish(st, st.global, StatusExhausted, s.cfg.MaxIters), nil
}

func (s *Swarm) finish(st *run, best transform.Candidate, status Status, iters int) Result {
	return Result{
		Best:                  best,
		Status:                status,
		Iterations:            iters,
		Evaluations:           st.evaluations,
		LowerPrecisionMatches: st.lowerHits,
		Seed:                  st.rngSeed,
	}
}

// #endregion swarm

// #region phases

// initialise spreads the population over the best single-edit neighbours of
// the seed, sampled by how much each improves on it.
func (s *Swarm) initialise(ctx context.Context, st *run) (*transform.Candidate, error) {
	neighbours, probs, hit, err := s.bestNeighbours(ctx, st, st.seed)
	if err != nil || hit != nil {
		return hit, err
	}
	n := len(st.seed.Sentence.Words())
	st.swarm = make([]particle, s.cfg.PopSize)
	for k := range st.swarm {
		start := st.seed
		if len(neighbours) > 0 {
			start = neighbours[sample(st.rng, probs)]
		}
		st.swarm[k] = particle{cur: start, best: start, velocity: make([]float64, n)}
		for j := range st.swarm[k].velocity {
			st.swarm[k].velocity[j] = (st.rng.Float64()*2 - 1) * s.cfg.VMax
		}
		if s.better(start, st.global) {
			st.global = start
		}
	}
	return nil, nil
}

// step runs one iteration: velocity update and turns, scoring, mutation and
// elite update.
func (s *Swarm) step(ctx context.Context, st *run, i int) (*transform.Candidate, error) {
	frac := float64(i) / float64(s.cfg.MaxIters)
	omega := (s.cfg.Omega1-s.cfg.Omega2)*float64(s.cfg.MaxIters-i)/float64(s.cfg.MaxIters) + s.cfg.Omega2
	c1 := s.cfg.C1 - frac*(s.cfg.C1-s.cfg.C2)
	c2 := s.cfg.C2 + frac*(s.cfg.C1-s.cfg.C2)
	st.rejects = 0

	for k := range st.swarm {
		p := &st.swarm[k]
		probs := make([]float64, len(p.velocity))
		for j := range p.velocity {
			pull := s.pull(p.cur, st.global, j) + s.pull(p.cur, p.best, j)
			p.velocity[j] = omega*p.velocity[j] + (1-omega)*pull
			probs[j] = sigmoid(p.velocity[j])
		}
		if st.rng.Float64() < c1 {
			p.cur = s.turn(st, p.cur, p.best, probs)
		}
		if st.rng.Float64() < c2 {
			p.cur = s.turn(st, p.cur, st.global, probs)
		}
	}

	hit, err := s.scoreSwarm(ctx, st)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		s.report(st, i, *hit)
		return hit, nil
	}

	for k := range st.swarm {
		p := &st.swarm[k]
		change := float64(len(p.cur.Modified)) / float64(max(1, p.cur.Sentence.Len()))
		if st.rng.Float64() >= 1-2*change {
			continue
		}
		neighbours, probs, hit, err := s.bestNeighbours(ctx, st, p.cur)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			s.report(st, i, *hit)
			return hit, nil
		}
		if len(neighbours) > 0 {
			p.cur = neighbours[sample(st.rng, probs)]
		}
	}

	for k := range st.swarm {
		p := &st.swarm[k]
		if s.better(p.cur, p.best) {
			p.best = p.cur
		}
		if s.better(p.best, st.global) {
			st.global = p.best
		}
	}

	s.report(st, i, st.global)
	return nil, nil
}

// report logs iteration i and passes it to the observer. best is the global
// elite, or the satisfying candidate when the iteration ends the search.
func (s *Swarm) report(st *run, i int, best transform.Candidate) {
	stats := IterationStats{
		Iteration:             i + 1,
		BestFitness:           best.Fitness,
		BestText:              best.Text(),
		Evaluations:           st.evaluations,
		LowerPrecisionMatches: st.lowerHits,
		TurnRejects:           st.rejects,
	}
	log.Printf("[SWARM] iter=%d best=%.6f evals=%d lower_matches=%d rejects=%d",
		stats.Iteration, stats.BestFitness, stats.Evaluations, stats.LowerPrecisionMatches, stats.TurnRejects)
	if s.observer != nil {
		s.observer(stats)
	}
}

// turn copies words of elite into cur, position j with probability probs[j].
// Draws that break the structural constraints are resampled up to
// MaxTurnRetries times; after that cur is kept unchanged.
func (s *Swarm) turn(st *run, cur, elite transform.Candidate, probs []float64) transform.Candidate {
	if cur.Sentence.Len() != elite.Sentence.Len() || cur.Text() == elite.Text() {
		return cur
	}
	for attempt := 0; attempt <= s.cfg.MaxTurnRetries; attempt++ {
		next := cur.Sentence
		changed := false
		for j := range probs {
			if j >= next.Len() || st.rng.Float64() >= probs[j] {
				continue
			}
			if w := elite.Sentence.Word(j); w != next.Word(j) {
				next = next.Replace(j, w)
				changed = true
			}
		}
		if !changed {
			return cur
		}
		if s.engine.Filter().Accepts(next.String()) {
			return transform.Derive(st.seed, next)
		}
	}
	st.rejects++
	return cur
}

// bestNeighbours scores every neighbour of c and keeps the best per word
// position. probs weights each by its fitness gain over c, uniform when
// nothing improves.
func (s *Swarm) bestNeighbours(ctx context.Context, st *run, c transform.Candidate) ([]transform.Candidate, []float64, *transform.Candidate, error) {
	byIndex, err := s.engine.ProposeByIndex(ctx, c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("propose: %w", err)
	}
	indices := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	var best []transform.Candidate
	for _, i := range indices {
		scored, hit, err := s.score(ctx, st, byIndex[i])
		if err != nil || hit != nil {
			return nil, nil, hit, err
		}
		top := scored[0]
		for _, cand := range scored[1:] {
			if s.betterFrom(cand, top, c) {
				top = cand
			}
		}
		best = append(best, top)
	}

	probs := make([]float64, len(best))
	var sum float64
	for j, b := range best {
		probs[j] = math.Max(0, b.Fitness-c.Fitness)
		sum += probs[j]
	}
	for j := range probs {
		if sum == 0 {
			probs[j] = 1 / float64(len(probs))
		} else {
			probs[j] /= sum
		}
	}
	return best, probs, nil, nil
}

func (s *Swarm) scoreSwarm(ctx context.Context, st *run) (*transform.Candidate, error) {
	cands := make([]transform.Candidate, len(st.swarm))
	for k, p := range st.swarm {
		cands[k] = p.cur
	}
	scored, hit, err := s.score(ctx, st, cands)
	if err != nil || hit != nil {
		return hit, err
	}
	for k := range st.swarm {
		st.swarm[k].cur = scored[k]
	}
	return nil, nil
}

// #endregion phases

// #region scoring

// score fills in scores for the unscored candidates concurrently. The first
// satisfying candidate, in input order, is returned as hit.
func (s *Swarm) score(ctx context.Context, st *run, cands []transform.Candidate) ([]transform.Candidate, *transform.Candidate, error) {
	out := slices.Clone(cands)
	evals := make([]goal.Evaluation, len(cands))
	fresh := make([]bool, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Concurrency))
	for i, c := range cands {
		if c.Scored {
			continue
		}
		fresh[i] = true
		g.Go(func() error {
			vec, err := oracle.Vector(gctx, s.oracle, st.labels, c.Text())
			if err != nil {
				return fmt.Errorf("score %q: %w", c.Text(), err)
			}
			evals[i] = s.eval.Evaluate(vec)
			out[i] = c.WithScores(vec, evals[i].Fitness)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var hit *transform.Candidate
	for i := range out {
		if !fresh[i] {
			continue
		}
		st.evaluations++
		if evals[i].LowerPrecisionMatch() {
			st.lowerHits++
		}
		if evals[i].Satisfied && hit == nil {
			h := out[i]
			hit = &h
		}
	}
	return out, hit, nil
}

// better reports whether a beats b, breaking fitness ties by the smaller
// edit distance from the reference.
func (s *Swarm) better(a, b transform.Candidate) bool {
	if a.Fitness != b.Fitness {
		return a.Fitness > b.Fitness
	}
	return s.engine.Filter().EditDistance(a.Text()) < s.engine.Filter().EditDistance(b.Text())
}

// betterFrom is better with ties broken by edit growth relative to from.
func (s *Swarm) betterFrom(a, b, from transform.Candidate) bool {
	if a.Fitness != b.Fitness {
		return a.Fitness > b.Fitness
	}
	return levenshtein.ComputeDistance(from.Text(), a.Text()) < levenshtein.ComputeDistance(from.Text(), b.Text())
}

// pull is -VMax when cur already agrees with elite at word j, +VMax otherwise.
func (s *Swarm) pull(cur, elite transform.Candidate, j int) float64 {
	if j < cur.Sentence.Len() && j < elite.Sentence.Len() && cur.Sentence.Word(j) == elite.Sentence.Word(j) {
		return -s.cfg.VMax
	}
	return s.cfg.VMax
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sample draws an index from the discrete distribution probs.
func sample(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	var acc float64
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}

// #endregion scoring
