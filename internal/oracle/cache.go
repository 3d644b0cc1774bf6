package oracle

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// #region cached-oracle

// Cached memoises Predict results per sentence. The search re-proposes the
// same sentences often, and rescoring a cached sentence returns the
// identical vector.
type Cached struct {
	inner ScoreOracle
	cache *lru.Cache[string, map[string]float64]
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner ScoreOracle, size int) (*Cached, error) {
	c, err := lru.New[string, map[string]float64](size)
	if err != nil {
		return nil, fmt.Errorf("score cache: %w", err)
	}
	return &Cached{inner: inner, cache: c}, nil
}

// Predict returns a cached copy or scores through the wrapped oracle.
func (c *Cached) Predict(ctx context.Context, sentence string) (map[string]float64, error) {
	if v, ok := c.cache.Get(sentence); ok {
		return copyScores(v), nil
	}
	v, err := c.inner.Predict(ctx, sentence)
	if err != nil {
		return nil, err
	}
	c.cache.Add(sentence, copyScores(v))
	return v, nil
}

// Labels delegates to the wrapped oracle.
func (c *Cached) Labels(ctx context.Context) ([]string, error) {
	return c.inner.Labels(ctx)
}

// Len reports the number of cached sentences.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func copyScores(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// #endregion cached-oracle
