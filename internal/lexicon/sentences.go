// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lexicon

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "mr": true, "mrs": true,
	"ms": true, "dr": true, "no": true, "fig": true, "approx": true, "st": true,
}

// SplitSentences splits text into trimmed sentences. Line breaks inside a
// paragraph are treated as spaces; a line that starts with a bullet marker
// starts a new sentence.
func SplitSentences(text string) []string {
	var out []string
	for _, para := range splitBullets(text) {
		out = append(out, splitParagraph(para)...)
	}
	return out
}

func splitBullets(text string) []string {
	var (
		paras []string
		cur   []string
	)
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if isBulletLine(trimmed) {
			flush()
			trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "•*-·◦▪"))
		}
		cur = append(cur, trimmed)
	}
	flush()
	return paras
}

func isBulletLine(s string) bool {
	r := []rune(s)
	if len(r) < 2 {
		return false
	}
	switch r[0] {
	case '•', '◦', '▪', '·':
		return true
	case '-', '*':
		return unicode.IsSpace(r[1])
	}
	return false
}

func splitParagraph(text string) []string {
	runes := []rune(CollapseSpace(text))
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`.!?"')]”’`, runes[j]) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:j])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// isAbbreviation reports whether the word ending the prefix is an
// abbreviation or a single initial.
func isAbbreviation(prefix []rune) bool {
	k := len(prefix)
	for k > 0 && !unicode.IsSpace(prefix[k-1]) {
		k--
	}
	word := strings.ToLower(strings.Trim(string(prefix[k:]), `("'`))
	if abbreviations[word] {
		return true
	}
	r := []rune(word)
	return len(r) == 1 && unicode.IsLetter(r[0]) || strings.Count(word, ".") > 0 && len(r) <= 4
}
