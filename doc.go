// Package trendreport renders the TrendSiam weekly trending-story report
// as a PDF from a ranked list of story records.
//
// Story titles routinely mix Thai, Latin, CJK, Hangul, emoji, and symbol
// codepoints in a single string. The pipeline normalizes each string
// (Sanitize), classifies the writing systems present (AnalyzeScripts),
// loads checksum-verified fonts for the detected scripts (FontRegistry),
// picks one family per text run (SelectFamily), and renders through one
// of two interchangeable engines: an in-process vector engine drawing
// glyphs without OpenType shaping, and a sandboxed Chromium engine that
// delegates shaping to a full layout pass. A Router splits traffic
// between the two for gradual rollout and retries once on the alternate
// engine when the chosen one fails.
//
// Typical use:
//
//	pipe, err := trendreport.NewPipeline(trendreport.DefaultConfig())
//	if err != nil { ... }
//	defer pipe.Close()
//	res, err := pipe.RenderReport(ctx, records)
//	// res.PDF holds the bytes, res.Meta the engine/latency/snapshot id.
package trendreport
