package searchutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var normalizeReplacer = strings.NewReplacer(
	"-", " ",
	".", " ",
	"_", " ",
	",", " ",
	":", " ",
	";", " ",
	"!", " ",
	"?", " ",
	"(", " ",
	")", " ",
	"[", " ",
	"]", " ",
	"'", " ",
	"\"", " ",
	"/", " ",
	"\\", " ",
	"|", " ",
	"+", " ",
	"&", " ",
	"*", " ",
)

// FoldDiacritics strips combining marks, so "Capítulo" becomes "Capitulo".
func FoldDiacritics(value string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		return value
	}
	return folded
}

// Normalize lowercases, folds diacritics and collapses punctuation to
// single spaces.
func Normalize(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	if clean == "" {
		return ""
	}
	clean = normalizeReplacer.Replace(FoldDiacritics(clean))
	return strings.Join(strings.Fields(clean), " ")
}

// Slugify turns a title into a URL slug of lowercase ASCII letters, digits
// and single hyphens.
func Slugify(value string) string {
	folded := strings.ToLower(FoldDiacritics(strings.TrimSpace(value)))

	var builder strings.Builder
	builder.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	return builder.String()
}

// UniqueNonEmpty trims values and drops blanks and case-insensitive
// duplicates, keeping first occurrences.
func UniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
