package trendreport

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize normalizes a raw story string into the canonical form the
// renderer works with. It is pure, deterministic, and idempotent:
// Sanitize(Sanitize(s)) == Sanitize(s) for every s.
//
// Steps, in order: NFC composition; removal of control characters;
// removal of zero-width joiners/non-joiners, BOM, and bidi controls;
// mapping of smart punctuation (curly quotes, en/em dash, NBSP) to ASCII
// equivalents; whitespace collapse and trim. When Thai codepoints are
// present, a narrow secondary pass recomposes decomposed sara-am
// sequences and reorders tone-before-vowel sequences into canonical
// order. Sanitize never fails: malformed UTF-8 degrades to replacement
// characters rather than erroring.
func Sanitize(raw string) string {
	s, _ := sanitize(raw)
	return s
}

// sanitize additionally reports whether lossy substitution happened, so
// callers holding a logger can record the degradation.
func sanitize(raw string) (out string, degraded bool) {
	if raw == "" {
		return "", false
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "\uFFFD")
		degraded = true
	}

	s, _, err := transform.String(stripTransform(), raw)
	if err != nil {
		// The transformer chain does not fail on valid UTF-8, but keep a
		// manual path so sanitize can never error out.
		s = stripManually(raw)
		degraded = true
	}

	s = strings.Map(mapSmartPunct, s)
	s = strings.Join(strings.Fields(s), " ")

	if containsThai(s) {
		s = repairThai(s)
	}
	return s, degraded
}

// stripTransform composes to NFC and drops control and invisible
// formatting codepoints in one pass.
func stripTransform() transform.Transformer {
	return transform.Chain(norm.NFC, runes.Remove(runes.Predicate(isStrippedRune)))
}

// isStrippedRune reports whether a codepoint is removed outright:
// control characters (the whitespace controls survive until the final
// collapse as plain spaces via mapSmartPunct) and the invisible
// formatting set that breaks glyph drawing.
func isStrippedRune(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	if unicode.IsControl(r) {
		return true
	}
	switch r {
	case '\u200B', // zero width space
		'\u200C',           // zero width non-joiner
		'\u200D',           // zero width joiner
		'\u200E', '\u200F', // LRM, RLM
		'\u2060', // word joiner
		'\uFEFF': // BOM / zero width no-break space
		return true
	}
	if r >= '\u202A' && r <= '\u202E' { // bidi embedding/override controls
		return true
	}
	if r >= '\u2066' && r <= '\u2069' { // bidi isolate controls
		return true
	}
	return false
}

func stripManually(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFC.String(s) {
		if !isStrippedRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mapSmartPunct replaces typographic punctuation with the ASCII
// equivalent so every loaded family can draw it.
func mapSmartPunct(r rune) rune {
	switch r {
	case '\u2018', '\u2019', '\u201A', '\u2039', '\u203A':
		return '\''
	case '\u201C', '\u201D', '\u201E', '\u00AB', '\u00BB':
		return '"'
	case '\u2010', '\u2011', '\u2012', '\u2013', '\u2014', '\u2015':
		return '-'
	case '\u00A0', '\u202F', '\u2007':
		return ' '
	}
	return r
}

// Thai codepoint classes. Classification is by exact range membership
// only: a codepoint outside these ranges is never treated as a combining
// mark, no matter how it renders. The leading vowels U+0E40..U+0E44 and
// sara am U+0E33 are full base characters and must never be stripped or
// merged away.
const (
	thaiBlockLo = '\u0E00'
	thaiBlockHi = '\u0E7F'

	thaiNikhahit = '\u0E4D'
	thaiSaraAa   = '\u0E32'
	thaiSaraAm   = '\u0E33'
)

// isThaiCombiningMark reports whether r is one of the Thai above/below
// marks that attach to a base consonant: mai han-akat (U+0E31), the
// above/below vowels U+0E34..U+0E3A, and the tone/diacritic run
// U+0E47..U+0E4E.
func isThaiCombiningMark(r rune) bool {
	return r == '\u0E31' ||
		(r >= '\u0E34' && r <= '\u0E3A') ||
		(r >= '\u0E47' && r <= '\u0E4E')
}

// isThaiToneMark reports whether r is mai ek..mai chattawa.
func isThaiToneMark(r rune) bool {
	return r >= '\u0E48' && r <= '\u0E4B'
}

func containsThai(s string) bool {
	for _, r := range s {
		if r >= thaiBlockLo && r <= thaiBlockHi {
			return true
		}
	}
	return false
}

// repairThai applies the narrow Thai-only fixes: recompose the
// decomposed sara am pair (nikhahit + sara aa, which NFC leaves alone
// because the composition is a compatibility mapping) and reorder each
// run of combining marks into canonical vowel-before-tone order. It
// deletes nothing. Recomposition runs first so a nikhahit waiting for
// its sara aa is never reordered away from it.
func repairThai(s string) string {
	return string(reorderMarks(recomposeSaraAm([]rune(s))))
}

func recomposeSaraAm(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); i++ {
		if rs[i] == thaiNikhahit && i+1 < len(rs) && rs[i+1] == thaiSaraAa {
			out = append(out, thaiSaraAm)
			i++
			continue
		}
		out = append(out, rs[i])
	}
	return out
}

// reorderMarks rewrites each maximal run of Thai combining marks with
// the non-tone marks first and the tone marks after, both in their
// original relative order. A single left-to-right scan of the whole run
// makes the result a fixed point: reordering it again changes nothing,
// which keeps sanitization idempotent even for stacked marks.
func reorderMarks(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); {
		if !isThaiCombiningMark(rs[i]) {
			out = append(out, rs[i])
			i++
			continue
		}
		j := i
		for j < len(rs) && isThaiCombiningMark(rs[j]) {
			j++
		}
		for k := i; k < j; k++ {
			if !isThaiToneMark(rs[k]) {
				out = append(out, rs[k])
			}
		}
		for k := i; k < j; k++ {
			if isThaiToneMark(rs[k]) {
				out = append(out, rs[k])
			}
		}
		i = j
	}
	return out
}
