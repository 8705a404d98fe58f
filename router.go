package trendreport

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"
)

// RouterState describes where the rollout stands, derived from the
// traffic split.
type RouterState int

const (
	// RouterDisabled routes everything to the base engine.
	RouterDisabled RouterState = iota
	// RouterCanary routes a 1-99% slice to the alternate engine.
	RouterCanary
	// RouterFullCutover routes everything to the alternate engine.
	RouterFullCutover
)

func (s RouterState) String() string {
	switch s {
	case RouterDisabled:
		return "disabled"
	case RouterCanary:
		return "canary"
	case RouterFullCutover:
		return "full-cutover"
	}
	return "unknown"
}

// DefaultRequestTimeout bounds one routed render including the one-shot
// fallback attempt.
const DefaultRequestTimeout = 60 * time.Second

// Router picks an engine per request under a configurable traffic split
// and retries once on the alternate when the chosen engine fails. The
// retry is per-request, not a circuit breaker: observed engine failures
// are rare and transient, so one request's failure says little about
// the next.
type Router struct {
	base    Engine
	alt     Engine
	split   int
	timeout time.Duration
	logger  *slog.Logger
}

// RouterConfig configures a Router. Split is the percentage of requests
// routed to the alternate engine; Timeout covers the primary attempt
// plus the fallback and defaults to DefaultRequestTimeout.
type RouterConfig struct {
	Base      Engine
	Alternate Engine
	Split     int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewRouter validates the configuration and builds a Router. One of the
// two engines may be nil, in which case all traffic goes to the other
// and no fallback exists.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Base == nil && cfg.Alternate == nil {
		return nil, fmt.Errorf("router: no engines configured")
	}
	if cfg.Split < 0 || cfg.Split > 100 {
		return nil, fmt.Errorf("router: split %d out of range 0-100", cfg.Split)
	}
	if cfg.Base == nil {
		cfg.Split = 100
	}
	if cfg.Alternate == nil {
		cfg.Split = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		base:    cfg.Base,
		alt:     cfg.Alternate,
		split:   cfg.Split,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// State reports the rollout state implied by the split.
func (r *Router) State() RouterState {
	switch {
	case r.split == 0:
		return RouterDisabled
	case r.split == 100:
		return RouterFullCutover
	default:
		return RouterCanary
	}
}

// Split returns the configured alternate-traffic percentage.
func (r *Router) Split() int { return r.split }

// DecideEngine is the pure routing function: the same (split, request
// id) pair always lands on the same engine. Exported so rollout
// behavior is testable without invoking either engine.
func DecideEngine(split int, requestID string) EngineID {
	if split <= 0 {
		return EngineVector
	}
	if split >= 100 {
		return EngineChromium
	}
	h := fnv.New32a()
	h.Write([]byte(requestID))
	if int(h.Sum32()%100) < split {
		return EngineChromium
	}
	return EngineVector
}

// engineFor maps a decision to the configured engine instance, honoring
// disabled engines.
func (r *Router) engineFor(id EngineID) Engine {
	if id == EngineChromium && r.alt != nil {
		return r.alt
	}
	if r.base != nil {
		return r.base
	}
	return r.alt
}

// alternateOf returns the other configured engine, or nil when only one
// engine exists.
func (r *Router) alternateOf(chosen Engine) Engine {
	if chosen == r.base {
		return r.alt
	}
	return r.base
}

// Render routes one request: it runs the decided engine and, on any
// failure (error, timeout, empty output), retries exactly once against
// the alternate before surfacing the error. Every decision and outcome
// is logged for traffic, latency, and success-rate analysis.
func (r *Router) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	chosen := r.engineFor(DecideEngine(r.split, req.ID))
	r.logger.Info("routing render request",
		"request", req.ID, "engine", chosen.ID(), "split", r.split, "state", r.State().String())

	out, primaryErr := renderOnce(ctx, chosen, req)
	if primaryErr == nil {
		r.logger.Info("render succeeded",
			"request", req.ID, "engine", chosen.ID(), "fallback", false,
			"elapsed", time.Since(start), "bytes", len(out))
		return r.result(req, out, chosen.ID(), start, false), nil
	}

	alt := r.alternateOf(chosen)
	if alt == nil {
		r.logger.Error("render failed with no alternate engine",
			"request", req.ID, "engine", chosen.ID(), "error", primaryErr)
		return nil, &EngineError{Engine: chosen.ID(), Err: primaryErr}
	}

	r.logger.Warn("primary engine failed, retrying on alternate",
		"request", req.ID, "engine", chosen.ID(), "alternate", alt.ID(), "error", primaryErr)

	out, altErr := renderOnce(ctx, alt, req)
	if altErr != nil {
		r.logger.Error("both engines failed",
			"request", req.ID, "primary", chosen.ID(), "primary_error", primaryErr,
			"alternate", alt.ID(), "alternate_error", altErr)
		return nil, fmt.Errorf("both engines failed: %w (primary %s: %v)",
			&EngineError{Engine: alt.ID(), Err: altErr}, chosen.ID(), primaryErr)
	}

	r.logger.Info("render succeeded",
		"request", req.ID, "engine", alt.ID(), "fallback", true,
		"elapsed", time.Since(start), "bytes", len(out))
	return r.result(req, out, alt.ID(), start, true), nil
}

// renderOnce runs one engine attempt, normalizing empty output into an
// error so the fallback path treats it like a crash.
func renderOnce(ctx context.Context, eng Engine, req *RenderRequest) ([]byte, error) {
	out, err := eng.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

func (r *Router) result(req *RenderRequest, pdf []byte, engine EngineID, start time.Time, fallback bool) *RenderResult {
	return &RenderResult{
		PDF: pdf,
		Meta: ReportMeta{
			Engine:     engine,
			Elapsed:    time.Since(start),
			SnapshotID: req.ID,
			Split:      r.split,
			Fallback:   fallback,
			Pages:      countPages(pdf),
		},
	}
}

// countPages counts page objects in the raw PDF without a parser. The
// vector engine writes its page dictionaries uncompressed, so the
// literal /Type /Page entries are countable directly; the /Type /Pages
// tree node matches the same prefix and is subtracted back out.
// Chromium packs most objects into compressed streams, hiding the page
// dictionaries, so the page tree's /Count entry is tried next. Returns
// 0 when neither form is visible.
func countPages(pdf []byte) int {
	n := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	if n > 0 {
		return n
	}
	marker := []byte("/Count ")
	i := bytes.Index(pdf, marker)
	if i < 0 {
		return 0
	}
	n = 0
	for _, c := range pdf[i+len(marker):] {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Probe runs the health check of the named engine.
func (r *Router) Probe(ctx context.Context, id EngineID) (*ProbeResult, error) {
	var eng Engine
	switch {
	case r.base != nil && r.base.ID() == id:
		eng = r.base
	case r.alt != nil && r.alt.ID() == id:
		eng = r.alt
	default:
		return nil, fmt.Errorf("router: engine %s not configured", id)
	}
	return eng.Probe(ctx)
}
