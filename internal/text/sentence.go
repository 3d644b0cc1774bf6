package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// #region sentence

// Sentence is a sentence split into words and the separators between them.
// It is a value: Replace returns a new Sentence and never touches the receiver.
type Sentence struct {
	words []string
	seps  []string // len(words)+1; seps[i] precedes words[i], the last trails
}

// Parse splits s into words. A word is a run of letters and digits, with
// apostrophes and hyphens allowed between word characters ("grandmother's").
func Parse(s string) Sentence {
	runes := []rune(s)
	var words, seps []string
	var sep strings.Builder

	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			sep.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) {
			r := runes[j]
			if isWordRune(r) {
				j++
				continue
			}
			if (r == '\'' || r == '-' || r == '’') && j+1 < len(runes) && isWordRune(runes[j+1]) {
				j++
				continue
			}
			break
		}
		seps = append(seps, sep.String())
		sep.Reset()
		words = append(words, string(runes[i:j]))
		i = j
	}
	seps = append(seps, sep.String())
	return Sentence{words: words, seps: seps}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// String reassembles the sentence.
func (s Sentence) String() string {
	if len(s.seps) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range s.words {
		b.WriteString(s.seps[i])
		b.WriteString(w)
	}
	b.WriteString(s.seps[len(s.seps)-1])
	return b.String()
}

// Len returns the number of words.
func (s Sentence) Len() int {
	return len(s.words)
}

// Word returns the word at index i.
func (s Sentence) Word(i int) string {
	return s.words[i]
}

// Words returns a copy of the word list.
func (s Sentence) Words() []string {
	return append([]string(nil), s.words...)
}

// RuneLen returns the length of the reassembled sentence in code points.
func (s Sentence) RuneLen() int {
	return utf8.RuneCountInString(s.String())
}

// Replace returns a copy with word i replaced by w.
func (s Sentence) Replace(i int, w string) Sentence {
	words := append([]string(nil), s.words...)
	words[i] = w
	return Sentence{words: words, seps: s.seps}
}

// DiffIndices returns the word positions where s and o differ. Sentences with a
// different word count differ everywhere.
func (s Sentence) DiffIndices(o Sentence) []int {
	n := max(len(s.words), len(o.words))
	var out []int
	for i := 0; i < n; i++ {
		if i >= len(s.words) || i >= len(o.words) || s.words[i] != o.words[i] {
			out = append(out, i)
		}
	}
	return out
}

// #endregion sentence

// #region case

// MatchCase gives replacement the capitalisation pattern of original:
// all upper, leading capital, or lower.
func MatchCase(original, replacement string) string {
	if original == "" || replacement == "" {
		return replacement
	}
	if strings.ToUpper(original) == original && utf8.RuneCountInString(original) > 1 {
		return strings.ToUpper(replacement)
	}
	first, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(replacement)
		return string(unicode.ToUpper(r)) + replacement[size:]
	}
	return replacement
}

// IsSingleWord reports whether w parses to exactly one word spanning all of w.
func IsSingleWord(w string) bool {
	s := Parse(w)
	return s.Len() == 1 && s.words[0] == w
}

// #endregion case
