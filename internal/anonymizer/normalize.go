package anonymizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// folded is a normalized view of a string: diacritics stripped, case folded,
// whitespace runs collapsed to single ASCII spaces. Offsets map every byte
// of the fold back to the source so matches found on the fold can be
// replaced in the original text without disturbing anything around them.
type folded struct {
	text  string
	start []int // start[i] = source offset of the rune behind fold byte i
	end   []int // end[i] = source offset just past that rune (or run)
}

// fold normalizes s for matching while tracking source offsets.
func fold(s string) folded {
	var b strings.Builder
	b.Grow(len(s))
	var start, end []int

	emit := func(r rune, srcStart, srcEnd int) {
		n := utf8.RuneLen(r)
		for i := 0; i < n; i++ {
			start = append(start, srcStart)
			end = append(end, srcEnd)
		}
		b.WriteRune(r)
	}

	i := 0
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			runStart := i
			for i < len(s) {
				r2, w2 := utf8.DecodeRuneInString(s[i:])
				if !unicode.IsSpace(r2) {
					break
				}
				i += w2
			}
			emit(' ', runStart, i)
			continue
		}
		for _, fr := range foldRune(r) {
			emit(fr, i, i+w)
		}
		i += w
	}

	return folded{text: b.String(), start: start, end: end}
}

// srcSpan maps a fold span [from,to) back to source offsets.
func (f folded) srcSpan(from, to int) (int, int) {
	if from >= len(f.start) || to <= from {
		return 0, 0
	}
	return f.start[from], f.end[to-1]
}

// wordBounded reports whether the fold span [from,to) sits at word edges:
// not preceded or followed by a letter or digit.
func (f folded) wordBounded(from, to int) bool {
	if from > 0 {
		r, _ := utf8.DecodeLastRuneInString(f.text[:from])
		if isWordRune(r) {
			return false
		}
	}
	if to < len(f.text) {
		r, _ := utf8.DecodeRuneInString(f.text[to:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// foldRune decomposes one rune, drops combining marks, and lowercases what
// remains: "É" folds to "e".
func foldRune(r rune) []rune {
	decomposed := norm.NFD.String(string(r))
	out := make([]rune, 0, 2)
	for _, d := range decomposed {
		if unicode.Is(unicode.Mn, d) {
			continue
		}
		out = append(out, unicode.ToLower(d))
	}
	return out
}

// foldValue normalizes a short value for set membership tests (sentinels,
// gender tokens): diacritics stripped, lowercased, whitespace collapsed and
// trimmed.
func foldValue(s string) string {
	f := fold(s)
	return strings.TrimSpace(f.text)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
