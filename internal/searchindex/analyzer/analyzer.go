// Package analyzer turns term labels and query values into index tokens.
// The "standard" analyzer lower-cases and splits on word boundaries the way
// the external search engine's standard tokenizer does: underscores join,
// '.' and apostrophes join between two letters or two digits, and ',' joins
// between two digits. "english" additionally removes stop-words and the
// possessive "'s" and applies a simple suffix-stripping stemmer.
package analyzer

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

const (
	Standard = "standard"
	English  = "english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Analyzer is a configured tokenisation pipeline.
type Analyzer struct {
	name      string
	stopWords bool
	stem      bool
}

// ByName returns the analyzer registered under name. An empty name selects
// the standard analyzer.
func ByName(name string) (Analyzer, error) {
	switch name {
	case "", Standard:
		return Analyzer{name: Standard}, nil
	case English:
		return Analyzer{name: English, stopWords: true, stem: true}, nil
	default:
		return Analyzer{}, fmt.Errorf("analyzer %q: %w", name, apperrors.ErrUnknownBackend)
	}
}

func (a Analyzer) Name() string {
	if a.name == "" {
		return Standard
	}
	return a.name
}

// Tokenize breaks text into lowercased Tokens.
func (a Analyzer) Tokenize(text string) []Token {
	words := splitWords(strings.ToLower(text))
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if a.stopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if a.stem {
			word = stem(strings.TrimSuffix(word, "'s"))
		}
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Term: word, Position: pos})
		pos++
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

// joins reports whether the punctuation rune r, sitting between prev and
// next, stays inside the word.
func joins(prev, r, next rune) bool {
	switch r {
	case '.', '\'':
		return (unicode.IsLetter(prev) && unicode.IsLetter(next)) ||
			(unicode.IsDigit(prev) && unicode.IsDigit(next))
	case ',', ';':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	}
	return false
}

// splitWords cuts text into words. A word made only of underscores is
// dropped.
func splitWords(text string) []string {
	runes := []rune(text)
	var words []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		if w := string(runes[start:end]); strings.Trim(w, "_") != "" {
			words = append(words, w)
		}
		start = -1
	}
	for i, r := range runes {
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && i+1 < len(runes) && joins(runes[i-1], r, runes[i+1]):
		default:
			flush(i)
		}
	}
	flush(len(runes))
	return words
}

// Terms returns the distinct terms of text in first-seen order.
func (a Analyzer) Terms(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range a.Tokenize(text) {
		if _, ok := seen[tok.Term]; ok {
			continue
		}
		seen[tok.Term] = struct{}{}
		out = append(out, tok.Term)
	}
	return out
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies the first matching suffix rule whose result stays long enough.
func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
