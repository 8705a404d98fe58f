package trendreport

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Fixed weekly-report template metrics. Line height and padding are the
// mitigation for the vector engine's clipped-combining-mark defect:
// Thai tone marks stack above the x-height and need the extra room.
const (
	marginPt = 48.0
	titlePt  = 18.0
	headerPt = 10.5
	rowPt    = 12.5
	metaPt   = 9.0
	footerPt = 8.0

	// lineHeightFactor keeps stacked marks clear of neighbouring lines.
	lineHeightFactor = 1.6
	// combiningPadPt is added above and below rows whose text carries
	// combining-mark scripts.
	combiningPadPt = 3.0
)

// reportRow is one ranked story prepared for rendering: sanitized text
// with the font family already selected and validated against the
// registry.
type reportRow struct {
	Rank      int
	Title     string
	Family    string
	Meta      string
	MetaFam   string
	Combining bool
}

// reportTitle is the fixed header line of the weekly report.
func reportTitle(weekOf time.Time) string {
	if weekOf.IsZero() {
		return "TrendSiam Weekly Report"
	}
	return "TrendSiam Weekly Report - " + weekOf.Format("2 Jan 2006")
}

// buildRows sanitizes every record and selects a family per string. It
// also reports sanitizer degradations through the logger, which the pure
// Sanitize entry point cannot do itself.
func buildRows(req *RenderRequest, logger *slog.Logger) []reportRow {
	if logger == nil {
		logger = slog.Default()
	}
	rows := make([]reportRow, 0, len(req.Records))
	for _, rec := range req.Records {
		title, degraded := sanitize(rec.Title)
		if degraded {
			logger.Warn("title sanitized lossily", "rank", rec.Rank, "request", req.ID)
		}
		if title == "" {
			title = "(untitled)"
		}
		meta := recordMeta(rec)
		rows = append(rows, reportRow{
			Rank:      rec.Rank,
			Title:     title,
			Family:    SelectFamily(title, req.Registry),
			Meta:      meta,
			MetaFam:   SelectFamily(meta, req.Registry),
			Combining: containsThai(title),
		})
	}
	return rows
}

// recordMeta formats the one-line metadata under each title.
func recordMeta(rec StoryRecord) string {
	parts := make([]string, 0, 4)
	if rec.Channel != "" {
		parts = append(parts, Sanitize(rec.Channel))
	}
	if rec.Category != "" {
		parts = append(parts, Sanitize(rec.Category))
	}
	if rec.Views > 0 {
		parts = append(parts, formatViews(rec.Views)+" views")
	}
	if !rec.PublishedAt.IsZero() {
		parts = append(parts, rec.PublishedAt.Format("2 Jan 15:04"))
	}
	return strings.Join(parts, " | ")
}

// formatViews renders a view count the way the web UI does: 1.2M, 34K.
func formatViews(n int64) string {
	switch {
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1_000_000)) + "M"
	case n >= 1_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1_000)) + "K"
	default:
		return fmt.Sprintf("%d", n)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
