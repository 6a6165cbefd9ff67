// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lexicon holds the text primitives shared by the segmenter, the
// query synthesizer, the scorer, and the embedders: tokenization,
// stopwords, keyword stems, sentence splitting, and title and symbol
// cleanup. All functions are pure.
package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	// wordPattern matches letter runs with inner apostrophes.
	wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

	// keywordPattern matches ASCII words of three or more letters.
	keywordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

	spaceRun = regexp.MustCompile(`\s+`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
		"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
		"own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "not", "you", "your",
		"all", "had", "her", "one", "our", "day", "get", "has", "him", "his", "how", "man", "new", "old",
		"see", "two", "way", "who", "boy", "did", "let", "put", "say", "she", "use", "may", "said", "have",
		"what", "which", "when", "where", "why", "they", "them", "their", "there", "here", "also", "each",
		"any", "some", "more", "most", "other", "only", "both", "few", "many", "much", "must", "need",
		"would", "could", "within", "without", "per", "via", "etc", "needs",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether the lower-cased word is a stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Words returns the lower-cased words of text, stopwords removed.
func Words(text string) []string {
	raw := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, w := range raw {
		if IsStopword(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// WordCount returns the number of whitespace-separated tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Stem reduces simple English plurals so that "trends" and "trend" share
// a term.
func Stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	}
	return w
}

// Keywords returns the stemmed, de-duplicated keywords of text in first
// occurrence order.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range keywordPattern.FindAllString(strings.ToLower(text), -1) {
		if IsStopword(w) {
			continue
		}
		s := Stem(w)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TermSet returns the keyword stems of text as a set.
func TermSet(text string) map[string]struct{} {
	kw := Keywords(text)
	set := make(map[string]struct{}, len(kw))
	for _, k := range kw {
		set[k] = struct{}{}
	}
	return set
}

// SortedSet returns the union of the given keyword lists, sorted.
func SortedSet(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, k := range l {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Overlap returns |terms ∩ focus| / |focus|, or 0 when focus is empty.
func Overlap(terms map[string]struct{}, focus []string) float64 {
	if len(focus) == 0 {
		return 0
	}
	hits := 0
	for _, f := range focus {
		if _, ok := terms[f]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(focus))
}

// CollapseSpace replaces whitespace runs with single spaces and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most n runes, cutting at the last word
// boundary when one exists.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
