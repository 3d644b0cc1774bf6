package transform

import (
	"slices"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/text"
)

// #region candidate

// Candidate is a sentence in the search together with the word positions
// changed since the search seed. Scores and Fitness are filled in by the
// search once the candidate has been scored. Candidates are values; edits
// produce new candidates.
type Candidate struct {
	Sentence text.Sentence
	Modified []int // sorted word indices changed since the seed

	Scores  []float64
	Fitness float64
	Scored  bool
}

// NewCandidate parses s into an unmodified, unscored candidate.
func NewCandidate(s string) Candidate {
	return Candidate{Sentence: text.Parse(s)}
}

// Text returns the candidate sentence.
func (c Candidate) Text() string {
	return c.Sentence.String()
}

// With returns an unscored copy whose word i is w, recording i as modified.
func (c Candidate) With(i int, w string) Candidate {
	mod := slices.Clone(c.Modified)
	if pos, found := slices.BinarySearch(mod, i); !found {
		mod = slices.Insert(mod, pos, i)
	}
	return Candidate{Sentence: c.Sentence.Replace(i, w), Modified: mod}
}

// Derive builds an unscored candidate for s whose modified set is measured
// against seed.
func Derive(seed Candidate, s text.Sentence) Candidate {
	return Candidate{Sentence: s, Modified: seed.Sentence.DiffIndices(s)}
}

// WithScores returns a copy carrying the given scores and fitness.
func (c Candidate) WithScores(scores []float64, fitness float64) Candidate {
	c.Scores = slices.Clone(scores)
	c.Fitness = fitness
	c.Scored = true
	c.Modified = slices.Clone(c.Modified)
	return c
}

// #endregion candidate
