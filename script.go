package trendreport

import (
	"log/slog"
	"sort"
)

// Script identifies a writing system for font selection. The set is
// deliberately small: it matches the families the registry knows how to
// load, not the full Unicode script inventory.
type Script int

const (
	ScriptLatin Script = iota
	ScriptThai
	ScriptHan
	ScriptHangul
	ScriptEmoji
	ScriptSymbols
	ScriptOther
)

var scriptNames = [...]string{
	ScriptLatin:   "Latin",
	ScriptThai:    "Thai",
	ScriptHan:     "Han",
	ScriptHangul:  "Hangul",
	ScriptEmoji:   "Emoji",
	ScriptSymbols: "Symbols",
	ScriptOther:   "Other",
}

func (s Script) String() string {
	if int(s) < len(scriptNames) {
		return scriptNames[s]
	}
	return "Unknown"
}

// ScriptProfile records which scripts appear in a batch of strings and
// how many codepoints each contributed. It is computed once per request
// and never persisted.
type ScriptProfile struct {
	Counts map[Script]int
}

// Has reports whether at least one codepoint of script s was seen.
func (p ScriptProfile) Has(s Script) bool {
	return p.Counts[s] > 0
}

// Scripts returns the detected scripts in ascending Script order.
func (p ScriptProfile) Scripts() []Script {
	out := make([]Script, 0, len(p.Counts))
	for s, n := range p.Counts {
		if n > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// defaultProfile is the safe answer when classification fails: Thai and
// Latin cover the regular report body, and the registry force-loads the
// symbols family regardless.
func defaultProfile() ScriptProfile {
	return ScriptProfile{Counts: map[Script]int{ScriptThai: 1, ScriptLatin: 1}}
}

// AnalyzeScripts classifies every codepoint in the batch. It never
// fails: an unexpected panic during classification is swallowed and the
// default {Thai, Latin} profile returned, so one bad string cannot drop
// font loading for the rest of the batch.
func AnalyzeScripts(strs []string) (profile ScriptProfile) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("script analysis failed, using default profile", "panic", r)
			profile = defaultProfile()
		}
	}()

	counts := make(map[Script]int)
	for _, s := range strs {
		for _, r := range s {
			if r == ' ' || r == '\t' || r == '\n' {
				continue
			}
			counts[classifyRune(r)]++
		}
	}
	return ScriptProfile{Counts: counts}
}

// classifyRune maps one codepoint to its selection script by exact range
// membership.
func classifyRune(r rune) Script {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z',
		r >= '0' && r <= '9',
		// ASCII punctuation counts as Latin: it rides along in ordinary
		// sentences and must not pull a whole run onto the symbols font.
		r >= '!' && r <= '/', r >= ':' && r <= '@',
		r >= '[' && r <= '`', r >= '{' && r <= '~',
		r >= '\u00C0' && r <= '\u024F': // Latin-1 letters through Latin Extended-B
		return ScriptLatin
	case r >= thaiBlockLo && r <= thaiBlockHi:
		return ScriptThai
	case r >= '\u4E00' && r <= '\u9FFF', // CJK Unified Ideographs
		r >= '\u3400' && r <= '\u4DBF', // CJK Extension A
		r >= '\uF900' && r <= '\uFAFF', // CJK Compatibility Ideographs
		r >= '\u3040' && r <= '\u30FF': // Hiragana + Katakana
		return ScriptHan
	case r >= '\uAC00' && r <= '\uD7A3', // Hangul syllables
		r >= '\u1100' && r <= '\u11FF', // Hangul Jamo
		r >= '\u3130' && r <= '\u318F': // Hangul compatibility Jamo
		return ScriptHangul
	case r >= 0x1F000 && r <= 0x1FAFF, // emoji and pictograph planes
		r >= '\u2600' && r <= '\u27BF', // misc symbols, dingbats
		r == '\uFE0F':                  // variation selector riding an emoji
		return ScriptEmoji
	case r >= '\u20A0' && r <= '\u20CF', // currency symbols
		r == '\u00A2', r == '\u00A3', r == '\u00A4', r == '\u00A5',
		r >= '\u2000' && r <= '\u206F', // general punctuation
		r >= '\u2100' && r <= '\u2BFF', // letterlike, arrows, math, misc technical
		r >= '\u3000' && r <= '\u303F': // CJK punctuation
		return ScriptSymbols
	default:
		return ScriptOther
	}
}
