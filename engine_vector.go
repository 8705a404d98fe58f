package trendreport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-text/typesetting/segmenter"
)

// pdfEpoch is the fixed creation/modification date stamped into every
// document so that two renders of the same request are byte-identical.
var pdfEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// VectorEngine is the in-process implementation: it embeds the loaded
// TTF fonts and draws text from glyph advances, with no OpenType
// shaping pass. Combining marks therefore position only as well as the
// font's default metrics allow; the template's line height and padding
// keep the worst cases from clipping, they do not fix positioning.
type VectorEngine struct {
	reg    *FontRegistry
	logger *slog.Logger
}

// NewVectorEngine creates the vector engine over an initialized
// registry.
func NewVectorEngine(reg *FontRegistry, logger *slog.Logger) *VectorEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorEngine{reg: reg, logger: logger}
}

// ID implements Engine.
func (e *VectorEngine) ID() EngineID { return EngineVector }

// Render implements Engine. The whole report template is drawn here:
// header, ranked rows, footer.
func (e *VectorEngine) Render(ctx context.Context, req *RenderRequest) (out []byte, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// A panic inside the PDF backend surfaces as an engine error so the
	// router can retry on the alternate engine instead of crashing the
	// process.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &EngineError{Engine: EngineVector, Err: fmt.Errorf("render panic: %v", r)}
		}
	}()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetTitle(reportTitle(req.WeekOf), true)
	pdf.SetCreator("TrendSiam", true)
	pdf.SetMargins(marginPt, marginPt, marginPt)
	pdf.SetAutoPageBreak(true, marginPt)

	if err := e.registerFonts(pdf); err != nil {
		return nil, err
	}

	pdf.AddPage()
	contentW := pageWidthPt - 2*marginPt

	universal := e.reg.Universal()
	pdf.SetFont(universal, "B", titlePt)
	pdf.CellFormat(contentW, titlePt*lineHeightFactor, reportTitle(req.WeekOf), "", 1, "L", false, 0, "")
	pdf.SetFont(universal, "", headerPt)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(contentW, headerPt*lineHeightFactor,
		fmt.Sprintf("Top %d trending stories", len(req.Records)), "", 1, "L", false, 0, "")
	pdf.Ln(rowPt)
	pdf.SetTextColor(0, 0, 0)

	rankW := InchToPoint(0.5)
	for _, row := range buildRows(req, e.logger) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.drawRow(pdf, row, rankW, contentW-rankW)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyOutput
	}
	return buf.Bytes(), nil
}

// drawRow draws one ranked story: rank cell, wrapped title, metadata
// line. Rows with combining-mark scripts get extra vertical padding so
// stacked tone marks do not clip against the neighbouring row.
func (e *VectorEngine) drawRow(pdf *fpdf.Fpdf, row reportRow, rankW, textW float64) {
	lineH := rowPt * lineHeightFactor
	if row.Combining {
		pdf.Ln(combiningPadPt)
	}

	pdf.SetFont(e.reg.Universal(), "B", rowPt)
	pdf.CellFormat(rankW, lineH, fmt.Sprintf("%d.", row.Rank), "", 0, "L", false, 0, "")

	pdf.SetFont(row.Family, "", rowPt)
	x := pdf.GetX()
	for i, line := range e.wrapText(pdf, basicPlane(row.Title), textW) {
		if i > 0 {
			pdf.SetX(x)
		}
		pdf.CellFormat(textW, lineH, line, "", 1, "L", false, 0, "")
	}

	if row.Meta != "" {
		pdf.SetX(x)
		pdf.SetFont(row.MetaFam, "", metaPt)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(textW, metaPt*lineHeightFactor, basicPlane(row.Meta), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	if row.Combining {
		pdf.Ln(combiningPadPt)
	}
	pdf.Ln(rowPt * 0.4)
}

// basicPlane substitutes U+FFFD for any codepoint above the Basic
// Multilingual Plane. The PDF backend addresses glyphs through a CID
// map indexed by a 16-bit code, so emoji and other supplementary-plane
// runes cannot be drawn by this engine at all.
func basicPlane(s string) string {
	return strings.Map(func(r rune) rune {
		if r > '\uFFFF' {
			return '\uFFFD'
		}
		return r
	}, s)
}

// registerFonts embeds every loaded family into the document. The bold
// style falls back to regular bytes when the family has no bold weight.
func (e *VectorEngine) registerFonts(pdf *fpdf.Fpdf) error {
	for _, fam := range e.reg.Families() {
		regular := e.reg.Asset(fam, WeightRegular)
		if regular == nil {
			return fmt.Errorf("family %s in loaded set but has no regular asset", fam)
		}
		pdf.AddUTF8FontFromBytes(fam, "", regular.Data)
		pdf.AddUTF8FontFromBytes(fam, "B", e.reg.Asset(fam, WeightBold).Data)
	}
	if pdf.Err() {
		return fmt.Errorf("register fonts: %w", pdf.Error())
	}
	return nil
}

// wrapText wraps a string to maxW points, breaking only at grapheme
// cluster boundaries. Breaking at codepoint or byte boundaries splits a
// base from its marks and renders garbage at the split, so the cluster
// segmentation is load-bearing here, not a nicety.
func (e *VectorEngine) wrapText(pdf *fpdf.Fpdf, text string, maxW float64) []string {
	if pdf.GetStringWidth(text) <= maxW {
		return []string{text}
	}
	var lines []string
	var line strings.Builder
	lineW := 0.0
	for _, cluster := range graphemeClusters(text) {
		w := pdf.GetStringWidth(cluster)
		if line.Len() > 0 && lineW+w > maxW {
			lines = append(lines, strings.TrimRight(line.String(), " "))
			line.Reset()
			lineW = 0
			if cluster == " " {
				continue
			}
		}
		line.WriteString(cluster)
		lineW += w
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// graphemeClusters splits a string into user-perceived characters.
func graphemeClusters(text string) []string {
	var seg segmenter.Segmenter
	seg.Init([]rune(text))
	var out []string
	iter := seg.GraphemeIterator()
	for iter.Next() {
		out = append(out, string(iter.Grapheme().Text))
	}
	return out
}

// Probe implements Engine: renders the fixed probe string through the
// full template path and reports health.
func (e *VectorEngine) Probe(ctx context.Context) (*ProbeResult, error) {
	start := time.Now()
	req := &RenderRequest{
		ID:       "probe-" + string(EngineVector),
		Registry: e.reg,
		Records:  []StoryRecord{{Rank: 1, Title: probeText}},
	}
	out, err := e.Render(ctx, req)
	healthy := err == nil && len(out) > 0
	res := probeResult(EngineVector, e.reg, healthy, time.Since(start))
	if err != nil {
		return res, err
	}
	return res, nil
}
