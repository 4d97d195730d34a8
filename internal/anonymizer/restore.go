package anonymizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/carenotes/veil/internal/mapping"
)

// wordLikeKey matches aliases made of letters, optionally with internal
// spaces, hyphens or apostrophes: names, not dates or codes. These are
// substituted only at word edges so a short alias cannot corrupt a longer
// word containing it.
var wordLikeKey = regexp.MustCompile(`^\p{L}+(?:[ '\x{2019}-]\p{L}+)*$`)

// Deanonymize restores original values in model output text and returns the
// restored text together with the reverse (original -> alias) mapping.
// Symbol-bearing keys (dates, codes, suffixed aliases) are replaced without
// boundary constraints and before word-like keys, so "Hugo#2" is consumed
// ahead of a bare "Hugo". An empty mapping returns the text unchanged.
func Deanonymize(text string, m *mapping.Mapping) (string, map[string]string) {
	if m == nil || m.Len() == 0 {
		return text, map[string]string{}
	}

	var wordKeys, otherKeys []string
	m.Walk(func(alias, _ string) {
		if wordLikeKey.MatchString(alias) {
			wordKeys = append(wordKeys, alias)
		} else {
			otherKeys = append(otherKeys, alias)
		}
	})
	byLengthDesc(wordKeys)
	byLengthDesc(otherKeys)

	out := text
	if len(otherKeys) > 0 {
		re := regexp.MustCompile(alternation(otherKeys))
		out = re.ReplaceAllStringFunc(out, func(match string) string {
			original, _ := m.Original(match)
			return original
		})
	}
	if len(wordKeys) > 0 {
		out = replaceBounded(out, regexp.MustCompile(alternation(wordKeys)), m)
	}

	return out, m.Reverse()
}

// replaceBounded substitutes matches that are not adjacent to a word
// character. All matches are located in one scan and spliced right to left,
// so restored originals are never re-scanned.
func replaceBounded(text string, re *regexp.Regexp, m *mapping.Mapping) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		from, to := matches[i][0], matches[i][1]
		if !boundedAt(text, from, to) {
			continue
		}
		original, ok := m.Original(text[from:to])
		if !ok {
			continue
		}
		out = out[:from] + original + out[to:]
	}
	return out
}

func boundedAt(text string, from, to int) bool {
	if from > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:from])
		if isWordRune(r) {
			return false
		}
	}
	if to < len(text) {
		r, _ := utf8.DecodeRuneInString(text[to:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// byLengthDesc orders keys longest first so the compiled alternation prefers
// the most specific alias over any key that is its prefix.
func byLengthDesc(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

func alternation(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}
