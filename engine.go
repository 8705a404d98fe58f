package trendreport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EngineID names one of the two render engine implementations.
type EngineID string

const (
	// EngineVector draws glyphs in-process from font metrics without
	// OpenType shaping.
	EngineVector EngineID = "vector"
	// EngineChromium delegates shaping and layout to a sandboxed
	// Chromium process.
	EngineChromium EngineID = "chromium"
)

// Engine renders one report request to PDF bytes. Both implementations
// satisfy the same contract so the router can treat them symmetrically.
type Engine interface {
	ID() EngineID
	Render(ctx context.Context, req *RenderRequest) ([]byte, error)
	// Probe renders a short fixed string and reports engine health. It is
	// used operationally to gate traffic-split increases.
	Probe(ctx context.Context) (*ProbeResult, error)
}

// ProbeResult is the answer to a health-check probe.
type ProbeResult struct {
	Engine   EngineID      `json:"engine"`
	Healthy  bool          `json:"healthy"`
	Families []string      `json:"families"`
	Version  string        `json:"version"`
	Elapsed  time.Duration `json:"elapsed"`
}

// probeText is the fixed string a health probe renders: Thai with a tone
// cluster, Latin, and a currency symbol.
const probeText = "ทดสอบระบบ render ฿100"

// ErrEmptyOutput is returned when an engine completed without error but
// produced zero PDF bytes. The router treats it like any other engine
// failure and retries on the alternate.
var ErrEmptyOutput = errors.New("engine produced empty output")

// ErrFontsNotReady is returned by the Chromium engine when the page's
// fonts did not finish loading within the readiness timeout. Capturing
// before that signal produces fallback-substituted glyphs, which is the
// same corruption as a registration failure, so the capture is aborted
// instead.
var ErrFontsNotReady = errors.New("fonts not ready before capture timeout")

// EngineError wraps a failure from one engine implementation with the
// engine's identity, so telemetry and the retry path know which side
// failed.
type EngineError struct {
	Engine EngineID
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// probeResult builds the common part of a ProbeResult for an engine.
func probeResult(id EngineID, reg *FontRegistry, healthy bool, elapsed time.Duration) *ProbeResult {
	var families []string
	if reg != nil {
		families = reg.Families()
	}
	return &ProbeResult{
		Engine:   id,
		Healthy:  healthy,
		Families: families,
		Version:  Version,
		Elapsed:  elapsed,
	}
}
