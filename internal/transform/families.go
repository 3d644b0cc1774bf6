package transform

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/text"
)

// #region interfaces

// Transformation proposes replacement words for one word position.
type Transformation interface {
	Name() string
	Replacements(ctx context.Context, s text.Sentence, i int) ([]string, error)
}

// EmbeddingModel returns the nearest neighbours of a word, closest first.
type EmbeddingModel interface {
	NearestWords(ctx context.Context, word string, k int) ([]string, error)
}

// MaskedLM returns ranked fillers for words[position] when it is masked.
type MaskedLM interface {
	FillMask(ctx context.Context, words []string, position, k int) ([]string, error)
}

// #endregion interfaces

// #region embedding-swap

// EmbeddingSwap replaces a word with its nearest neighbours in embedding space.
type EmbeddingSwap struct {
	Model         EmbeddingModel
	MaxCandidates int
}

func (t EmbeddingSwap) Name() string { return "embedding_swap" }

func (t EmbeddingSwap) Replacements(ctx context.Context, s text.Sentence, i int) ([]string, error) {
	word := s.Word(i)
	neighbours, err := t.Model.NearestWords(ctx, strings.ToLower(word), t.MaxCandidates)
	if err != nil {
		return nil, err
	}
	return caseAligned(word, neighbours, t.MaxCandidates), nil
}

// #endregion embedding-swap

// #region masked-lm-swap

// MaskedLMSwap masks a word and substitutes the language model's top fillers.
type MaskedLMSwap struct {
	Model         MaskedLM
	MaxCandidates int
}

func (t MaskedLMSwap) Name() string { return "masked_lm_swap" }

func (t MaskedLMSwap) Replacements(ctx context.Context, s text.Sentence, i int) ([]string, error) {
	fillers, err := t.Model.FillMask(ctx, s.Words(), i, t.MaxCandidates)
	if err != nil {
		return nil, err
	}
	alpha := fillers[:0:0]
	for _, f := range fillers {
		if isAlphabetic(f) {
			alpha = append(alpha, f)
		}
	}
	return caseAligned(s.Word(i), alpha, t.MaxCandidates), nil
}

// #endregion masked-lm-swap

// #region char-deletion

// CharDeletion drops one randomly chosen character from a word. Only
// positions whose deletion leaves a single word are drawn, so an apostrophe
// or hyphen is never left dangling ("grandmother's" never becomes
// "grandmother'").
type CharDeletion struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCharDeletion creates a deletion transformation drawing from rng.
func NewCharDeletion(rng *rand.Rand) *CharDeletion {
	return &CharDeletion{rng: rng}
}

func (t *CharDeletion) Name() string { return "char_deletion" }

func (t *CharDeletion) Replacements(_ context.Context, s text.Sentence, i int) ([]string, error) {
	runes := []rune(s.Word(i))
	if len(runes) < 2 {
		return nil, nil
	}
	var positions []int
	for pos := range runes {
		if text.IsSingleWord(deleteRune(runes, pos)) {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return nil, nil
	}
	t.mu.Lock()
	pos := positions[t.rng.Intn(len(positions))]
	t.mu.Unlock()
	return []string{deleteRune(runes, pos)}, nil
}

func deleteRune(runes []rune, pos int) string {
	return string(runes[:pos]) + string(runes[pos+1:])
}

// #endregion char-deletion

// #region helpers

// caseAligned drops the original word and non-words, applies the original's
// capitalisation, and keeps at most limit entries.
func caseAligned(original string, words []string, limit int) []string {
	var out []string
	for _, w := range words {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.EqualFold(w, original) || !text.IsSingleWord(w) {
			continue
		}
		out = append(out, text.MatchCase(original, w))
	}
	return out
}

func isAlphabetic(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '\'' {
			return false
		}
	}
	return true
}

// #endregion helpers
