package text

import "strings"

// #region stopwords
// stopwords contains common English function words that are never edited.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "our": true, "their": true, "his": true, "these": true,
	"those": true, "am": true, "there": true, "here": true, "all": true,
	"any": true, "each": true, "ever": true, "just": true, "too": true,
	"very": true, "s": true, "t": true, "nor": true, "only": true,
	"own": true, "same": true, "such": true, "over": true, "under": true,
	"again": true, "once": true, "off": true, "further": true, "while": true,
}

// IsStopword reports whether w is a stopword, ignoring case.
func IsStopword(w string) bool {
	return stopwords[strings.ToLower(w)]
}

// ContentIndices returns the positions of non-stopword words in s.
func ContentIndices(s Sentence) []int {
	var out []int
	for i, w := range s.words {
		if !IsStopword(w) {
			out = append(out, i)
		}
	}
	return out
}

// #endregion stopwords
