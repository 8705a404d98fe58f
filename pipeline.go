package trendreport

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Config configures the whole rendering pipeline.
type Config struct {
	// FontDir holds the font files named by the manifest.
	FontDir string
	// ManifestPath points at the known-good font manifest.
	ManifestPath string

	// VectorEnabled and ChromiumEnabled switch the two engines on. At
	// least one must be enabled.
	VectorEnabled   bool
	ChromiumEnabled bool
	// Split is the percentage of traffic routed to the Chromium engine.
	Split int

	// RequestTimeout covers one render including the fallback attempt.
	RequestTimeout time.Duration
	Chromium       ChromiumConfig

	Logger *slog.Logger
}

// DefaultConfig returns the stock configuration: vector engine only,
// fonts out of ./fonts, rollout disabled.
func DefaultConfig() *Config {
	return &Config{
		FontDir:        "fonts",
		ManifestPath:   "fonts/manifest.json",
		VectorEnabled:  true,
		Split:          0,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Pipeline wires sanitizer, analyzer, registry, selector, engines, and
// router into one render path. Fonts load once, on the first render,
// and are shared read-only for the process lifetime.
type Pipeline struct {
	cfg      *Config
	logger   *slog.Logger
	registry *FontRegistry
	router   *Router
	engines  []Engine
	chromium *ChromiumEngine

	fontsOnce sync.Once
	fontsErr  error

	idMu   sync.Mutex
	idRand *rand.Rand
}

// NewPipeline validates the configuration and builds the pipeline. The
// Chromium engine's browser, when enabled, starts lazily on first use.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.VectorEnabled && !cfg.ChromiumEnabled {
		return nil, fmt.Errorf("pipeline: no engine enabled")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		registry: NewFontRegistry(logger),
		idRand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	var base, alt Engine
	if cfg.VectorEnabled {
		base = NewVectorEngine(p.registry, logger)
		p.engines = append(p.engines, base)
	}
	if cfg.ChromiumEnabled {
		p.chromium = NewChromiumEngine(p.registry, cfg.Chromium, logger)
		alt = p.chromium
		p.engines = append(p.engines, alt)
	}

	router, err := NewRouter(RouterConfig{
		Base:      base,
		Alternate: alt,
		Split:     cfg.Split,
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	p.router = router
	return p, nil
}

// Close releases engine resources. Safe to call once after the last
// render.
func (p *Pipeline) Close() {
	if p.chromium != nil {
		p.chromium.Close()
	}
}

// Registry exposes the loaded font set, primarily for probes and the
// verification battery.
func (p *Pipeline) Registry() *FontRegistry { return p.registry }

// ensureFonts runs the one-time font resolution: analyze the batch,
// load checksum-verified fonts for the detected scripts, publish the
// loaded set. Later renders reuse the same registry even if their batch
// detects more scripts; the forced symbols family and the universal
// fallback keep those renders legible rather than failing them.
func (p *Pipeline) ensureFonts(profile ScriptProfile) error {
	p.fontsOnce.Do(func() {
		manifest, err := LoadManifest(p.cfg.ManifestPath)
		if err != nil {
			p.fontsErr = err
			return
		}
		p.fontsErr = p.registry.Load(p.cfg.FontDir, manifest, profile)
	})
	return p.fontsErr
}

// RenderReport runs the full pipeline for one ranked batch and returns
// PDF bytes plus metadata. Failures that have a safe default self-heal
// internally; an error here means true exhaustion (no usable fonts, or
// both engines failed) and is retryable.
func (p *Pipeline) RenderReport(ctx context.Context, records []StoryRecord) (*RenderResult, error) {
	if err := p.ensureFonts(AnalyzeScripts(profileSample(records))); err != nil {
		return nil, fmt.Errorf("font resolution: %w", err)
	}

	req := &RenderRequest{
		ID:       p.newSnapshotID(),
		Records:  records,
		Registry: p.registry,
		WeekOf:   mondayOf(time.Now()),
	}
	return p.router.Render(ctx, req)
}

// Probe health-checks one engine by name, loading fonts first if no
// render has run yet.
func (p *Pipeline) Probe(ctx context.Context, id EngineID) (*ProbeResult, error) {
	if err := p.ensureFonts(defaultProfile()); err != nil {
		return nil, fmt.Errorf("font resolution: %w", err)
	}
	return p.router.Probe(ctx, id)
}

// Verify runs the regression battery through every enabled engine.
func (p *Pipeline) Verify(ctx context.Context) ([]*HarnessReport, error) {
	if err := p.ensureFonts(defaultProfile()); err != nil {
		return nil, fmt.Errorf("font resolution: %w", err)
	}
	return RunHarness(ctx, p.registry, p.engines...), nil
}

// newSnapshotID mints the ULID that names this render in telemetry and
// doubles as the routing key.
func (p *Pipeline) newSnapshotID() string {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.idRand).String()
}

// mondayOf returns the Monday of t's week, for the report header.
// profileSample collects every field the report template renders as
// text, so the script profile sees the same runes the engines will
// draw. Category matters here: a CJK-only category with a Thai title
// would otherwise miss its family at load time.
func profileSample(records []StoryRecord) []string {
	sample := make([]string, 0, len(records)*3)
	for _, rec := range records {
		sample = append(sample, rec.Title, rec.Channel, rec.Category)
	}
	return sample
}

func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, 1-weekday)
}
