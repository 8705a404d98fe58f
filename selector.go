package trendreport

// selectionOrder is the priority when several scripts coexist in one
// string. Hangul and Han first: their fonts are the hardest to
// substitute. Thai and Latin are absent because the universal family
// already covers them.
var selectionOrder = []Script{ScriptHangul, ScriptHan, ScriptEmoji, ScriptSymbols}

// SelectFamily picks the font family for one text run. It is total and
// pure: it never fails and never returns a name outside the registry's
// loaded set, falling through to the universal family when no
// higher-priority candidate loaded.
//
// Known limitation: one run gets one family, so a string mixing two
// non-Latin scripts renders one of them with missing-glyph boxes. The
// fix is splitting such strings into multiple styled runs at layout
// time, not forcing a single font to do both.
func SelectFamily(text string, reg *FontRegistry) string {
	if reg == nil {
		return FamilyUniversal
	}
	profile := AnalyzeScripts([]string{text})
	for _, script := range selectionOrder {
		if !profile.Has(script) {
			continue
		}
		for _, fam := range scriptFamilies[script] {
			if reg.Loaded(fam) {
				return fam
			}
		}
	}
	return reg.Universal()
}
