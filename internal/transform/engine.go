package transform

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/text"
)

// #region engine

// Engine enumerates single-edit neighbours of a candidate. Every family is
// applied to the current sentence on its own, one edit per proposal, and
// each proposal must pass the structural filter.
type Engine struct {
	filter   *constraint.Filter
	families []Transformation
}

// NewEngine composes families under filter.
func NewEngine(filter *constraint.Filter, families ...Transformation) *Engine {
	return &Engine{filter: filter, families: families}
}

// Filter returns the structural filter applied to proposals.
func (e *Engine) Filter() *constraint.Filter {
	return e.filter
}

// ProposeAt returns the legal, distinct neighbours of c that edit word i.
// Model failures are returned, not masked.
func (e *Engine) ProposeAt(ctx context.Context, c Candidate, i int) ([]Candidate, error) {
	if i < 0 || i >= c.Sentence.Len() {
		return nil, nil
	}
	if ok, _ := constraint.CanModify(c.Sentence, c.Modified, i); !ok {
		return nil, nil
	}

	seen := map[string]bool{c.Text(): true}
	var out []Candidate
	for _, fam := range e.families {
		words, err := fam.Replacements(ctx, c.Sentence, i)
		if err != nil {
			return nil, fmt.Errorf("%s at word %d: %w", fam.Name(), i, err)
		}
		for _, w := range words {
			if w == c.Sentence.Word(i) || !text.IsSingleWord(w) {
				continue
			}
			next := c.With(i, w)
			s := next.Text()
			if seen[s] {
				continue
			}
			seen[s] = true
			if !e.filter.Accepts(s) {
				continue
			}
			out = append(out, next)
		}
	}
	return out, nil
}

// ProposeByIndex returns the neighbours of c grouped by edited word index.
// Indices without a legal neighbour are omitted.
func (e *Engine) ProposeByIndex(ctx context.Context, c Candidate) (map[int][]Candidate, error) {
	out := make(map[int][]Candidate)
	for _, i := range constraint.ModifiableIndices(c.Sentence, c.Modified) {
		props, err := e.ProposeAt(ctx, c, i)
		if err != nil {
			return nil, err
		}
		if len(props) > 0 {
			out[i] = props
		}
	}
	return out, nil
}

// Propose lazily yields every legal neighbour of c, word by word. Iteration
// stops at the first model error, which is yielded with a zero Candidate.
func (e *Engine) Propose(ctx context.Context, c Candidate) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for _, i := range constraint.ModifiableIndices(c.Sentence, c.Modified) {
			props, err := e.ProposeAt(ctx, c, i)
			if err != nil {
				yield(Candidate{}, err)
				return
			}
			for _, p := range props {
				if !yield(p, nil) {
					return
				}
			}
		}
	}
}

// #endregion engine

// #region cached-transformation

// cachedTransformation memoises a deterministic family per sentence and index.
type cachedTransformation struct {
	inner Transformation
	cache *lru.Cache[string, []string]
}

// Cached wraps a deterministic transformation with an LRU of size entries.
// Randomised families such as CharDeletion must not be wrapped.
func Cached(t Transformation, size int) (Transformation, error) {
	c, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("%s cache: %w", t.Name(), err)
	}
	return &cachedTransformation{inner: t, cache: c}, nil
}

func (c *cachedTransformation) Name() string { return c.inner.Name() }

func (c *cachedTransformation) Replacements(ctx context.Context, s text.Sentence, i int) ([]string, error) {
	key := strconv.Itoa(i) + "\x00" + s.String()
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.Replacements(ctx, s, i)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// #endregion cached-transformation
