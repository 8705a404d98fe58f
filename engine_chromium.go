package trendreport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultFontsReadyTimeout bounds the wait for the page's fonts to
// finish loading before capture.
const DefaultFontsReadyTimeout = 10 * time.Second

// DefaultChromiumPoolSize caps concurrent rendering processes.
const DefaultChromiumPoolSize = 2

// ChromiumConfig configures the sandboxed engine.
type ChromiumConfig struct {
	// ExecPath overrides the Chromium binary path. Empty means chromedp's
	// default lookup.
	ExecPath string
	// PoolSize caps how many rendering processes run at once. Acquisition
	// is serialized so two requests never share one process's in-flight
	// state.
	PoolSize int
	// FontsReadyTimeout bounds the document.fonts wait.
	FontsReadyTimeout time.Duration
}

func (c *ChromiumConfig) defaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultChromiumPoolSize
	}
	if c.FontsReadyTimeout <= 0 {
		c.FontsReadyTimeout = DefaultFontsReadyTimeout
	}
}

// ChromiumEngine delegates shaping and layout to a headless Chromium
// process: the report is built as a self-contained HTML page with the
// registry's fonts inlined as @font-face data URLs, Chromium shapes and
// lays it out, and the engine captures the result with PrintToPDF.
// Mark positioning, ligatures, and bidi come out correct by
// construction, at the cost of latency and a browser dependency.
//
// The capture waits for the page's explicit fonts-ready signal first:
// capturing early renders fallback-substituted glyphs, which looks
// exactly like a font-registration failure in the output.
type ChromiumEngine struct {
	reg    *FontRegistry
	logger *slog.Logger
	cfg    ChromiumConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	sem         chan struct{}
}

// NewChromiumEngine creates the engine and its process allocator. The
// browser itself starts lazily on the first render.
func NewChromiumEngine(reg *FontRegistry, cfg ChromiumConfig, logger *slog.Logger) *ChromiumEngine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromiumEngine{
		reg:         reg,
		logger:      logger,
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sem:         make(chan struct{}, cfg.PoolSize),
	}
}

// Close tears down the process allocator and any browsers it owns.
func (e *ChromiumEngine) Close() {
	e.allocCancel()
}

// ID implements Engine.
func (e *ChromiumEngine) ID() EngineID { return EngineChromium }

// Render implements Engine.
func (e *ChromiumEngine) Render(ctx context.Context, req *RenderRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	html, err := e.buildHTML(req)
	if err != nil {
		return nil, fmt.Errorf("build report html: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(e.allocCtx)
	defer tabCancel()
	// Caller cancellation must reach the rendering process, not just the
	// chromedp actions, so no orphan survives an abandoned request.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	var ready bool
	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Poll("document.fonts.status === 'loaded'", &ready,
			chromedp.WithPollingTimeout(e.cfg.FontsReadyTimeout)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.5).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return nil, fmt.Errorf("%w after %s", ErrFontsNotReady, e.cfg.FontsReadyTimeout)
		}
		return nil, fmt.Errorf("chromium render: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyOutput
	}
	return pdf, nil
}

// reportTemplate is the fixed weekly-report page. Fonts arrive as
// pre-built CSS (data-URL @font-face rules); rows carry their selected
// family inline with the universal family as the run-level fallback.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
{{.FontCSS}}
body { font-family: "{{.Universal}}", sans-serif; margin: 0; padding: 36pt 42pt; }
h1 { font-size: 18pt; margin: 0 0 2pt 0; }
.sub { font-size: 10.5pt; color: #6e6e6e; margin-bottom: 14pt; }
.row { line-height: 1.6; padding: 3pt 0; }
.rank { font-weight: 700; display: inline-block; width: 24pt; }
.title { font-size: 12.5pt; }
.meta { font-size: 9pt; color: #6e6e6e; margin-left: 24pt; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="sub">Top {{.Count}} trending stories</div>
{{range .Rows}}<div class="row">
<span class="rank">{{.Rank}}.</span><span class="title" style="font-family: '{{.Family}}', '{{$.Universal}}'">{{.Title}}</span>
{{if .Meta}}<div class="meta" style="font-family: '{{.MetaFam}}', '{{$.Universal}}'">{{.Meta}}</div>{{end}}
</div>
{{end}}</body>
</html>
`))

type reportPage struct {
	Title     string
	Count     int
	Universal string
	FontCSS   template.CSS
	Rows      []reportRow
}

func (e *ChromiumEngine) buildHTML(req *RenderRequest) (string, error) {
	var buf bytes.Buffer
	data := reportPage{
		Title:     reportTitle(req.WeekOf),
		Count:     len(req.Records),
		Universal: e.reg.Universal(),
		FontCSS:   template.CSS(fontFaceCSS(e.reg)),
		Rows:      buildRows(req, e.logger),
	}
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fontFaceCSS inlines every loaded asset as an @font-face rule so the
// page depends on nothing outside the document.
func fontFaceCSS(reg *FontRegistry) string {
	weights := []struct {
		name string
		css  string
	}{
		{WeightRegular, "400"},
		{WeightBold, "700"},
	}
	var b strings.Builder
	for _, fam := range reg.Families() {
		for _, w := range weights {
			a := reg.Asset(fam, w.name)
			if a == nil || a.Weight != w.name {
				continue
			}
			fmt.Fprintf(&b,
				"@font-face { font-family: %q; font-weight: %s; src: url(data:font/ttf;base64,%s) format(\"truetype\"); }\n",
				fam, w.css, base64.StdEncoding.EncodeToString(a.Data))
		}
	}
	return b.String()
}

// Probe implements Engine: spins up a rendering process for the fixed
// probe string. Slower than the vector probe, which is the point:
// it proves the browser path end to end.
func (e *ChromiumEngine) Probe(ctx context.Context) (*ProbeResult, error) {
	start := time.Now()
	req := &RenderRequest{
		ID:       "probe-" + string(EngineChromium),
		Registry: e.reg,
		Records:  []StoryRecord{{Rank: 1, Title: probeText}},
	}
	out, err := e.Render(ctx, req)
	healthy := err == nil && len(out) > 0
	res := probeResult(EngineChromium, e.reg, healthy, time.Since(start))
	return res, err
}
