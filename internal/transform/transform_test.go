package transform

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/constraint"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/text"
)

// #region mocks
type mockEmbedding struct {
	neighbours map[string][]string
	err        error
	calls      int
}

func (m *mockEmbedding) NearestWords(_ context.Context, word string, k int) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	n := m.neighbours[word]
	if len(n) > k {
		n = n[:k]
	}
	return n, nil
}

type mockMLM struct {
	fillers []string
	got     []string
}

func (m *mockMLM) FillMask(_ context.Context, words []string, position, _ int) ([]string, error) {
	m.got = append([]string(nil), words...)
	m.got[position] = "[MASK]"
	return m.fillers, nil
}

func openFilter(t *testing.T, maxLen int) *constraint.Filter {
	t.Helper()
	f, err := constraint.NewFilter(constraint.Context{Anchor: "", MinEditDistance: 0, MinLength: 0, MaxLength: maxLen})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// #endregion mocks

// #region candidate-tests
func TestCandidate_WithRecordsModified(t *testing.T) {
	c := NewCandidate("the best sauce ever")
	d := c.With(2, "gravy").With(1, "finest")

	if c.Text() != "the best sauce ever" || len(c.Modified) != 0 {
		t.Errorf("original changed: %q %v", c.Text(), c.Modified)
	}
	if d.Text() != "the finest gravy ever" {
		t.Errorf("unexpected text %q", d.Text())
	}
	if !reflect.DeepEqual(d.Modified, []int{1, 2}) {
		t.Errorf("modified: got %v", d.Modified)
	}
	if d.Scored {
		t.Error("edited candidate must be unscored")
	}
}

func TestCandidate_WithScoresCopies(t *testing.T) {
	scores := []float64{0.5, 0.5}
	c := NewCandidate("a b").WithScores(scores, -0.1)
	scores[0] = 1
	if c.Scores[0] != 0.5 || !c.Scored {
		t.Errorf("scores not copied: %+v", c)
	}
}

// #endregion candidate-tests

// #region family-tests
func TestEmbeddingSwap_CaseAndLimit(t *testing.T) {
	m := &mockEmbedding{neighbours: map[string][]string{
		"best": {"best", "finest", "greatest", "top notch", "ideal"},
	}}
	swap := EmbeddingSwap{Model: m, MaxCandidates: 2}

	got, err := swap.Replacements(context.Background(), text.Parse("Best sauce"), 0)
	if err != nil {
		t.Fatal(err)
	}
	// the model is asked for 2, gets "best","finest"; "best" is the original
	if !reflect.DeepEqual(got, []string{"Finest"}) {
		t.Errorf("got %v", got)
	}
}

func TestMaskedLMSwap_FiltersNonAlphabetic(t *testing.T) {
	m := &mockMLM{fillers: []string{"greatest", "##est", "1st", "worst", "sauce"}}
	swap := MaskedLMSwap{Model: m, MaxCandidates: 40}

	got, err := swap.Replacements(context.Background(), text.Parse("the best sauce"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"greatest", "worst", "sauce"}) {
		t.Errorf("got %v", got)
	}
	if m.got[1] != "[MASK]" || m.got[0] != "the" {
		t.Errorf("mask not placed: %v", m.got)
	}
}

func TestCharDeletion_DropsOneRune(t *testing.T) {
	del := NewCharDeletion(rand.New(rand.NewSource(7)))
	for i := 0; i < 20; i++ {
		got, err := del.Replacements(context.Background(), text.Parse("sauce"), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || len(got[0]) != 4 {
			t.Fatalf("expected one 4-letter word, got %v", got)
		}
		if !isSubsequence(got[0], "sauce") {
			t.Errorf("%q is not sauce minus one letter", got[0])
		}
	}
	got, _ := del.Replacements(context.Background(), text.Parse("a"), 0)
	if len(got) != 0 {
		t.Errorf("single-letter words must not be deleted, got %v", got)
	}
}

func TestCharDeletion_KeepsInnerPunctuationAttached(t *testing.T) {
	del := NewCharDeletion(rand.New(rand.NewSource(3)))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got, err := del.Replacements(context.Background(), text.Parse("grandmother's"), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one deletion, got %v", got)
		}
		if !text.IsSingleWord(got[0]) {
			t.Fatalf("%q is not a single word", got[0])
		}
		seen[got[0]] = true
	}
	if seen["grandmother'"] {
		t.Errorf("dangling apostrophe was produced: %v", seen)
	}
	if len(seen) < 5 {
		t.Errorf("expected a spread of deletions, got %v", seen)
	}

	// only dropping the hyphen keeps a-b a single word
	for i := 0; i < 20; i++ {
		got, _ := del.Replacements(context.Background(), text.Parse("a-b"), 0)
		if len(got) != 1 || got[0] != "ab" {
			t.Fatalf("expected [ab], got %v", got)
		}
	}
}

func isSubsequence(sub, s string) bool {
	j := 0
	for i := 0; i < len(s) && j < len(sub); i++ {
		if s[i] == sub[j] {
			j++
		}
	}
	return j == len(sub)
}

// #endregion family-tests

// #region engine-tests
func TestEngine_ProposeAtFiltersAndDedups(t *testing.T) {
	emb := &mockEmbedding{neighbours: map[string][]string{"sauce": {"gravy", "condiment"}}}
	mlm := &mockMLM{fillers: []string{"gravy", "dip"}}
	// "the best condiment" is 18 runes; cap at 16 so it is rejected
	e := NewEngine(openFilter(t, 16), EmbeddingSwap{Model: emb, MaxCandidates: 30}, MaskedLMSwap{Model: mlm, MaxCandidates: 40})

	props, err := e.ProposeAt(context.Background(), NewCandidate("the best sauce"), 2)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, p := range props {
		texts = append(texts, p.Text())
		if !reflect.DeepEqual(p.Modified, []int{2}) {
			t.Errorf("modified not recorded: %v", p.Modified)
		}
	}
	want := []string{"the best gravy", "the best dip"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("got %v, want %v", texts, want)
	}
}

func TestEngine_SkipsStopwordsAndRepeats(t *testing.T) {
	emb := &mockEmbedding{neighbours: map[string][]string{"the": {"a"}, "best": {"finest"}}}
	e := NewEngine(openFilter(t, 100), EmbeddingSwap{Model: emb, MaxCandidates: 30})

	c := NewCandidate("the best sauce")
	if props, _ := e.ProposeAt(context.Background(), c, 0); len(props) != 0 {
		t.Errorf("stopword edited: %v", props)
	}
	edited := c.With(1, "finest")
	if props, _ := e.ProposeAt(context.Background(), edited, 1); len(props) != 0 {
		t.Errorf("index edited twice: %v", props)
	}
	if props, _ := e.ProposeAt(context.Background(), c, 9); props != nil {
		t.Errorf("out of range index must yield nothing")
	}
}

func TestEngine_ModelErrorPropagates(t *testing.T) {
	modelErr := errors.New("embedding index missing")
	e := NewEngine(openFilter(t, 100), EmbeddingSwap{Model: &mockEmbedding{err: modelErr}, MaxCandidates: 30})

	_, err := e.ProposeAt(context.Background(), NewCandidate("best sauce"), 0)
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model error, got %v", err)
	}
	for _, err := range e.Propose(context.Background(), NewCandidate("best sauce")) {
		if !errors.Is(err, modelErr) {
			t.Fatalf("expected model error from iterator, got %v", err)
		}
	}
}

func TestEngine_ProposeLazy(t *testing.T) {
	emb := &mockEmbedding{neighbours: map[string][]string{
		"best":  {"finest", "greatest"},
		"sauce": {"gravy"},
	}}
	e := NewEngine(openFilter(t, 100), EmbeddingSwap{Model: emb, MaxCandidates: 30})

	var first []string
	for c, err := range e.Propose(context.Background(), NewCandidate("best sauce")) {
		if err != nil {
			t.Fatal(err)
		}
		first = append(first, c.Text())
		break
	}
	if !reflect.DeepEqual(first, []string{"finest sauce"}) {
		t.Errorf("got %v", first)
	}
	if emb.calls != 1 {
		t.Errorf("lazy iteration should query one word, queried %d", emb.calls)
	}

	byIndex, err := e.ProposeByIndex(context.Background(), NewCandidate("best sauce"))
	if err != nil {
		t.Fatal(err)
	}
	if len(byIndex[0]) != 2 || len(byIndex[1]) != 1 {
		t.Errorf("unexpected grouping %v", byIndex)
	}
}

func TestCached_MemoisesReplacements(t *testing.T) {
	emb := &mockEmbedding{neighbours: map[string][]string{"best": {"finest"}}}
	cached, err := Cached(EmbeddingSwap{Model: emb, MaxCandidates: 30}, 8)
	if err != nil {
		t.Fatal(err)
	}
	s := text.Parse("best sauce")
	for i := 0; i < 3; i++ {
		got, err := cached.Replacements(context.Background(), s, 0)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got, ",") != "finest" {
			t.Errorf("got %v", got)
		}
	}
	if emb.calls != 1 {
		t.Errorf("expected one model call, got %d", emb.calls)
	}
	if cached.Name() != "embedding_swap" {
		t.Errorf("name not delegated: %q", cached.Name())
	}
}

// #endregion engine-tests
