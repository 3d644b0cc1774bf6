// Package constraint decides which candidate sentences are legal search moves.
package constraint

import (
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/text"
)

// #region context

// Context holds the per-run structural limits, measured against Anchor.
type Context struct {
	Anchor          string
	MinEditDistance int
	MinLength       int
	MaxLength       int
}

// DefaultContext returns the default limits for anchor.
func DefaultContext(anchor string) Context {
	return Context{
		Anchor:          anchor,
		MinEditDistance: 30,
		MinLength:       40,
		MaxLength:       60,
	}
}

// Validate rejects limits no sentence could satisfy.
func (c Context) Validate() error {
	if c.MinEditDistance < 0 || c.MinLength < 0 {
		return fmt.Errorf("constraint limits must be non-negative (edit=%d, min_length=%d)", c.MinEditDistance, c.MinLength)
	}
	if c.MinLength > c.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", c.MinLength, c.MaxLength)
	}
	return nil
}

// #endregion context

// #region reasons

// Reason names why a candidate was rejected.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonLength       Reason = "length"
	ReasonEditDistance Reason = "edit_distance"
	ReasonRepeat       Reason = "repeat_modification"
	ReasonStopword     Reason = "stopword_modification"
)

// #endregion reasons

// #region filter

// Filter applies the length band and edit-distance floor. Rejections are
// expected and frequent; they are only counted.
type Filter struct {
	ctx Context

	lengthRejects atomic.Int64
	editRejects   atomic.Int64
	accepted      atomic.Int64
}

// NewFilter validates ctx and returns a filter for it.
func NewFilter(ctx Context) (*Filter, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	return &Filter{ctx: ctx}, nil
}

// Context returns the limits the filter enforces.
func (f *Filter) Context() Context {
	return f.ctx
}

// Accepts reports whether candidate satisfies every structural limit.
func (f *Filter) Accepts(candidate string) bool {
	ok, _ := f.Check(candidate)
	return ok
}

// Check is Accepts with the rejection reason. The length band is checked
// first because it is cheaper than the edit distance.
func (f *Filter) Check(candidate string) (bool, Reason) {
	n := utf8.RuneCountInString(candidate)
	if n < f.ctx.MinLength || n > f.ctx.MaxLength {
		f.lengthRejects.Add(1)
		return false, ReasonLength
	}
	if f.EditDistance(candidate) < f.ctx.MinEditDistance {
		f.editRejects.Add(1)
		return false, ReasonEditDistance
	}
	f.accepted.Add(1)
	return true, ReasonNone
}

// EditDistance is the character-level Levenshtein distance from the anchor.
func (f *Filter) EditDistance(candidate string) int {
	return levenshtein.ComputeDistance(f.ctx.Anchor, candidate)
}

// Stats returns the accept and reject counters.
func (f *Filter) Stats() map[Reason]int64 {
	return map[Reason]int64{
		ReasonNone:         f.accepted.Load(),
		ReasonLength:       f.lengthRejects.Load(),
		ReasonEditDistance: f.editRejects.Load(),
	}
}

// #endregion filter

// #region pre-transformation

// CanModify applies the pre-transformation checks to word index i of s:
// an index changed earlier in the lineage may not change again, and
// stopwords are never changed.
func CanModify(s text.Sentence, modified []int, i int) (bool, Reason) {
	for _, m := range modified {
		if m == i {
			return false, ReasonRepeat
		}
	}
	if text.IsStopword(s.Word(i)) {
		return false, ReasonStopword
	}
	return true, ReasonNone
}

// ModifiableIndices returns every index of s that passes CanModify.
func ModifiableIndices(s text.Sentence, modified []int) []int {
	var out []int
	for i := 0; i < s.Len(); i++ {
		if ok, _ := CanModify(s, modified, i); ok {
			out = append(out, i)
		}
	}
	return out
}

// #endregion pre-transformation
