// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lexicon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinTitleLen and MaxTitleLen bound an acceptable title in runes
	// (exclusive lower bound, inclusive upper bound).
	MinTitleLen = 3
	MaxTitleLen = 80
)

var (
	leadingNumbering = regexp.MustCompile(`^(?:\d+[.)]?[\d.]*\s+|[\-*•·]\s*)+`)
	leadingBulletO   = regexp.MustCompile(`^o\s+`)
	leadingRoman     = regexp.MustCompile(`^[IVXLCDMivxlcdm]+\.\s*`)
	leadingLetter    = regexp.MustCompile(`^[A-Z]\.\s+`)
	structuralPrefix = regexp.MustCompile(`(?i)^(chapter|section|unit|part)\s+\d+[.\-:\s]*`)
	trailingPunct    = regexp.MustCompile(`[.:\s]+$`)
	bulletRunes      = regexp.MustCompile(`[\x{2022}\x{2023}\x{25E6}\x{2043}\x{2219}]`)
)

// CleanTitle strips numbering, bullets, roman numerals, letter prefixes,
// structural prefixes ("Chapter 3"), and trailing dots or colons. An
// all-caps title is converted to title case.
func CleanTitle(text string) string {
	t := CollapseSpace(bulletRunes.ReplaceAllString(text, ""))
	t = leadingBulletO.ReplaceAllString(t, "")
	t = structuralPrefix.ReplaceAllString(t, "")
	t = leadingRoman.ReplaceAllString(t, "")
	t = leadingLetter.ReplaceAllString(t, "")
	t = leadingNumbering.ReplaceAllString(t, "")
	t = trailingPunct.ReplaceAllString(t, "")
	t = CollapseSpace(t)
	if isAllCaps(t) {
		t = cases.Title(language.English).String(strings.ToLower(t))
	}
	return t
}

// ValidTitleLength reports whether t has more than MinTitleLen and at most
// MaxTitleLen runes.
func ValidTitleLength(t string) bool {
	n := len([]rune(t))
	return n > MinTitleLen && n <= MaxTitleLen
}

// EndsSentence reports whether s ends with sentence punctuation.
func EndsSentence(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’' || unicode.IsSpace(r)
	})
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ';', ',':
		return true
	}
	return false
}

// StartsUpper reports whether the first letter or digit of s is an
// uppercase letter or a digit.
func StartsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// CapitalizedRatio returns the share of words in s that start with an
// uppercase letter. Short function words are ignored.
func CapitalizedRatio(s string) float64 {
	words := strings.Fields(s)
	total, caps := 0, 0
	for _, w := range words {
		if len(w) <= 3 && IsStopword(strings.ToLower(w)) {
			continue
		}
		total++
		if StartsUpper(w) {
			caps++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(caps) / float64(total)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters > 3
}

// symbolReplacer maps typographic symbols to plain-text equivalents.
var symbolReplacer = strings.NewReplacer(
	"○", "o",
	"●", "•", "◦", "•", "▪", "•", "▫", "•", "►", "•", "‣", "•", "⁃", "•", "∙", "•", "◊", "•",
	"™", "TM",
	"®", "(R)",
	"©", "(C)",
	"°", " degrees",
	"±", "+/-",
	"≈", "approximately",
	"≤", "<=",
	"≥", ">=",
	"≠", "!=",
	"÷", "/",
	"×", "x",
	"–", "-",
	"—", "-",
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"…", "...",
	"½", "1/2", "¼", "1/4", "¾", "3/4",
	"¹", "1", "²", "2", "³", "3", "⁴", "4", "⁵", "5",
	"\u00a0", " ",
	"ﬁ", "fi", "ﬂ", "fl",
)

var (
	colonJunk  = regexp.MustCompile(`:\s*[,;.]`)
	commaRun   = regexp.MustCompile(`,\s*,+`)
	spaceStops = regexp.MustCompile(`\s+([.,;:!?])`)
)

// NormalizeSymbols rewrites typographic symbols as plain text, applies
// NFKC, and tidies punctuation left behind by extraction.
func NormalizeSymbols(text string) string {
	t := symbolReplacer.Replace(text)
	t = norm.NFKC.String(t)
	t = colonJunk.ReplaceAllString(t, ": ")
	t = commaRun.ReplaceAllString(t, ", ")
	t = CollapseSpace(t)
	t = spaceStops.ReplaceAllString(t, "$1")
	return t
}
