// Package bootstrap produces the search seed: a paraphrase of the reference
// that already clears the structural constraints and stays semantically close.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/sourcegraph/conc/pool"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
)

// #region interfaces

// ParaphraseModel samples paraphrases of a sentence.
type ParaphraseModel interface {
	Paraphrase(ctx context.Context, sentence string, n int, temperature float64, topK int, topP float64) ([]string, error)
}

// Embedder maps a sentence to a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, sentence string) ([]float32, error)
}

// #endregion interfaces

// #region config

// Config controls sampling and acceptance.
type Config struct {
	NumReturnSequences  int
	Temperature         float64
	TopK                int
	TopP                float64
	SimilarityThreshold float64 // strict lower bound on cosine similarity
	ThresholdAttempts   int     // generation rounds before giving up
	Concurrency         int     // parallel embedding calls

	MinEditDistance int
	MinLength       int
	MaxLength       int
}

// DefaultConfig returns the standard sampling settings and structural band.
func DefaultConfig() Config {
	return Config{
		NumReturnSequences:  20,
		Temperature:         1.5,
		TopK:                50,
		TopP:                0.95,
		SimilarityThreshold: 0.8,
		ThresholdAttempts:   300,
		Concurrency:         4,
		MinEditDistance:     30,
		MinLength:           40,
		MaxLength:           60,
	}
}

// #endregion config

// #region errors

// ExhaustedError reports that no paraphrase qualified within the attempt budget.
type ExhaustedError struct {
	Anchor           string
	Attempts         int
	Generated        int
	StructuralPasses int
	BestSimilarity   float64 // -1 when nothing reached the similarity check
	Threshold        float64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no paraphrase of %q qualified after %d attempts (generated=%d, structural_passes=%d, best_similarity=%.3f, threshold=%.3f)",
		e.Anchor, e.Attempts, e.Generated, e.StructuralPasses, e.BestSimilarity, e.Threshold)
}

// #endregion errors

// #region bootstrapper

// Bootstrapper generates a qualifying seed sentence.
type Bootstrapper struct {
	cfg      Config
	para     ParaphraseModel
	embedder Embedder
}

// New creates a bootstrapper over the given models.
func New(cfg Config, para ParaphraseModel, embedder Embedder) *Bootstrapper {
	return &Bootstrapper{cfg: cfg, para: para, embedder: embedder}
}

// Config returns the active settings.
func (b *Bootstrapper) Config() Config {
	return b.cfg
}

// Generate samples paraphrases of anchor until one passes the structural
// band and has cosine similarity above the threshold. Candidates are checked
// in generation order; the first that qualifies is returned.
func (b *Bootstrapper) Generate(ctx context.Context, anchor string) (string, error) {
	filter, err := constraint.NewFilter(constraint.Context{
		Anchor:          anchor,
		MinEditDistance: b.cfg.MinEditDistance,
		MinLength:       b.cfg.MinLength,
		MaxLength:       b.cfg.MaxLength,
	})
	if err != nil {
		return "", fmt.Errorf("bootstrap limits: %w", err)
	}

	exhausted := &ExhaustedError{Anchor: anchor, BestSimilarity: -1, Threshold: b.cfg.SimilarityThreshold}
	var anchorVec []float32

	for attempt := 1; attempt <= b.cfg.ThresholdAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("bootstrap attempt %d: %w", attempt, err)
		}
		exhausted.Attempts = attempt

		paraphrases, err := b.para.Paraphrase(ctx, anchor, b.cfg.NumReturnSequences, b.cfg.Temperature, b.cfg.TopK, b.cfg.TopP)
		if err != nil {
			return "", fmt.Errorf("paraphrase attempt %d: %w", attempt, err)
		}
		exhausted.Generated += len(paraphrases)

		var valid []string
		for _, p := range paraphrases {
			if filter.Accepts(p) {
				valid = append(valid, p)
			}
		}
		exhausted.StructuralPasses += len(valid)
		if len(valid) == 0 {
			continue
		}

		if anchorVec == nil {
			if anchorVec, err = b.embedder.Embed(ctx, anchor); err != nil {
				return "", fmt.Errorf("embed anchor: %w", err)
			}
		}
		sims, err := b.similarities(ctx, anchorVec, valid)
		if err != nil {
			return "", err
		}
		for i, sim := range sims {
			exhausted.BestSimilarity = math.Max(exhausted.BestSimilarity, sim)
			if sim > b.cfg.SimilarityThreshold {
				log.Printf("[BOOT] seed found on attempt %d (similarity %.3f): %q", attempt, sim, valid[i])
				return valid[i], nil
			}
		}
	}

	log.Printf("[BOOT] exhausted: %v", exhausted)
	return "", exhausted
}

// similarities embeds candidates concurrently and returns their cosine
// similarity to anchorVec, in input order.
func (b *Bootstrapper) similarities(ctx context.Context, anchorVec []float32, candidates []string) ([]float64, error) {
	sims := make([]float64, len(candidates))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(max(1, b.cfg.Concurrency))
	for i, c := range candidates {
		p.Go(func(ctx context.Context) error {
			vec, err := b.embedder.Embed(ctx, c)
			if err != nil {
				return fmt.Errorf("embed %q: %w", c, err)
			}
			sims[i] = CosineSimilarity(anchorVec, vec)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return sims, nil
}

// #endregion bootstrapper

// #region similarity

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// #endregion similarity
