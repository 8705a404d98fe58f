package trendreport

import (
	"fmt"
	"time"
)

// StoryRecord is one ranked trending story as produced by the ingestion
// pipeline. Records are read-only input; the renderer never mutates them.
type StoryRecord struct {
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	Category    string    `json:"category"`
	Views       int64     `json:"views"`
	Score       float64   `json:"score"`
	PublishedAt time.Time `json:"published_at"`
}

// RenderRequest carries one report render through the pipeline. A request
// is created per call and discarded after the response or after retry
// exhaustion; it is never reused.
type RenderRequest struct {
	// ID identifies the request in telemetry and drives the routing
	// decision. The pipeline assigns a ULID when the caller leaves it empty.
	ID       string
	Records  []StoryRecord
	Registry *FontRegistry
	// WeekOf is the Monday of the reported week, printed in the header.
	WeekOf time.Time
}

// Validate reports structural problems with the request.
func (r *RenderRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("render request is nil")
	}
	if r.Registry == nil {
		return fmt.Errorf("render request has no font registry")
	}
	return nil
}

// ReportMeta is the out-of-band metadata returned alongside the PDF bytes.
type ReportMeta struct {
	Engine     EngineID      `json:"engine"`
	Elapsed    time.Duration `json:"elapsed"`
	SnapshotID string        `json:"snapshot_id"`
	Split      int           `json:"split"`
	Pages      int           `json:"pages"`
	// Fallback is true when the primary engine failed and the bytes came
	// from the one-shot retry on the alternate engine.
	Fallback bool `json:"fallback"`
}

// RenderResult is the final product of one pipeline call.
type RenderResult struct {
	PDF  []byte
	Meta ReportMeta
}
