package trendreport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine is a controllable Engine for router tests.
type stubEngine struct {
	id    EngineID
	fail  bool
	empty bool
	calls int
}

func (s *stubEngine) ID() EngineID { return s.id }

func (s *stubEngine) Render(ctx context.Context, req *RenderRequest) ([]byte, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("injected failure")
	}
	if s.empty {
		return nil, nil
	}
	return []byte("%PDF-1.4 stub " + string(s.id)), nil
}

func (s *stubEngine) Probe(ctx context.Context) (*ProbeResult, error) {
	return probeResult(s.id, nil, !s.fail, time.Millisecond), nil
}

func newTestRouter(t *testing.T, base, alt Engine, split int) *Router {
	t.Helper()
	r, err := NewRouter(RouterConfig{
		Base: base, Alternate: alt, Split: split, Logger: testLogger(),
	})
	require.NoError(t, err)
	return r
}

func TestNewRouterValidation(t *testing.T) {
	_, err := NewRouter(RouterConfig{})
	assert.Error(t, err, "no engines")

	_, err = NewRouter(RouterConfig{Base: &stubEngine{id: EngineVector}, Split: 101})
	assert.Error(t, err, "split out of range")

	_, err = NewRouter(RouterConfig{Base: &stubEngine{id: EngineVector}, Split: -1})
	assert.Error(t, err, "negative split")
}

func TestRouterState(t *testing.T) {
	base := &stubEngine{id: EngineVector}
	alt := &stubEngine{id: EngineChromium}
	assert.Equal(t, RouterDisabled, newTestRouter(t, base, alt, 0).State())
	assert.Equal(t, RouterCanary, newTestRouter(t, base, alt, 1).State())
	assert.Equal(t, RouterCanary, newTestRouter(t, base, alt, 99).State())
	assert.Equal(t, RouterFullCutover, newTestRouter(t, base, alt, 100).State())
}

func TestDecideEngineBoundaries(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("req-%d", i)
		assert.Equal(t, EngineVector, DecideEngine(0, id))
		assert.Equal(t, EngineChromium, DecideEngine(100, id))
	}
}

func TestDecideEngineDeterministic(t *testing.T) {
	for _, split := range []int{10, 50, 90} {
		first := DecideEngine(split, "stable-request-id")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, DecideEngine(split, "stable-request-id"))
		}
	}
}

func TestDecideEngineSplitRatio(t *testing.T) {
	const n = 1000
	chromium := 0
	for i := 0; i < n; i++ {
		if DecideEngine(50, fmt.Sprintf("req-%d", i)) == EngineChromium {
			chromium++
		}
	}
	// Hash-based assignment over 1,000 ids; statistical tolerance around
	// the configured 50%.
	assert.InDelta(t, 500, chromium, 50, "observed %d/%d on alternate", chromium, n)
}

func TestRouterRendersViaChosenEngine(t *testing.T) {
	base := &stubEngine{id: EngineVector}
	alt := &stubEngine{id: EngineChromium}
	r := newTestRouter(t, base, alt, 0)

	res, err := r.Render(context.Background(), &RenderRequest{ID: "abc", Registry: testRegistry(t)})
	require.NoError(t, err)
	assert.Equal(t, EngineVector, res.Meta.Engine)
	assert.False(t, res.Meta.Fallback)
	assert.Equal(t, "abc", res.Meta.SnapshotID)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 0, alt.calls)
}

func TestRouterFallbackOnFailure(t *testing.T) {
	base := &stubEngine{id: EngineVector}
	alt := &stubEngine{id: EngineChromium, fail: true}
	r := newTestRouter(t, base, alt, 100)

	res, err := r.Render(context.Background(), &RenderRequest{ID: "abc", Registry: testRegistry(t)})
	require.NoError(t, err)
	assert.True(t, res.Meta.Fallback, "fallback must be flagged in telemetry")
	assert.Equal(t, EngineVector, res.Meta.Engine)
	assert.Equal(t, 1, alt.calls, "primary tried once")
	assert.Equal(t, 1, base.calls, "alternate tried exactly once")
}

func TestRouterEmptyOutputTriggersFallback(t *testing.T) {
	base := &stubEngine{id: EngineVector, empty: true}
	alt := &stubEngine{id: EngineChromium}
	r := newTestRouter(t, base, alt, 0)

	res, err := r.Render(context.Background(), &RenderRequest{ID: "abc", Registry: testRegistry(t)})
	require.NoError(t, err)
	assert.True(t, res.Meta.Fallback)
	assert.Equal(t, EngineChromium, res.Meta.Engine)
}

func TestRouterBothEnginesFail(t *testing.T) {
	base := &stubEngine{id: EngineVector, fail: true}
	alt := &stubEngine{id: EngineChromium, fail: true}
	r := newTestRouter(t, base, alt, 0)

	_, err := r.Render(context.Background(), &RenderRequest{ID: "abc", Registry: testRegistry(t)})
	require.Error(t, err)
	var engErr *EngineError
	assert.ErrorAs(t, err, &engErr)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, 1, alt.calls, "retry happens exactly once")
}

func TestRouterSingleEngineNoFallback(t *testing.T) {
	base := &stubEngine{id: EngineVector, fail: true}
	r := newTestRouter(t, base, nil, 0)
	_, err := r.Render(context.Background(), &RenderRequest{ID: "abc", Registry: testRegistry(t)})
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

// Scenario: canary at 10% with the alternate engine fully broken. The
// per-request fallback keeps overall success at 100% over 500 requests,
// with the broken slice flagged as fallbacks.
func TestRouterCanaryWithBrokenAlternate(t *testing.T) {
	base := &stubEngine{id: EngineVector}
	alt := &stubEngine{id: EngineChromium, fail: true}
	r := newTestRouter(t, base, alt, 10)
	reg := testRegistry(t)

	const n = 500
	succeeded, fallbacks := 0, 0
	for i := 0; i < n; i++ {
		res, err := r.Render(context.Background(),
			&RenderRequest{ID: fmt.Sprintf("req-%d", i), Registry: reg})
		if err == nil {
			succeeded++
			if res.Meta.Fallback {
				fallbacks++
			}
		}
	}
	assert.GreaterOrEqual(t, float64(succeeded)/n, 0.99, "success rate")
	assert.Greater(t, fallbacks, 0, "some requests hit the broken canary and fell back")
	assert.Less(t, fallbacks, n/4, "canary slice stays near the configured 10%")
}

func TestRouterProbe(t *testing.T) {
	base := &stubEngine{id: EngineVector}
	alt := &stubEngine{id: EngineChromium}
	r := newTestRouter(t, base, alt, 50)

	res, err := r.Probe(context.Background(), EngineChromium)
	require.NoError(t, err)
	assert.Equal(t, EngineChromium, res.Engine)

	_, err = r.Probe(context.Background(), EngineID("nonsense"))
	assert.Error(t, err)
}

func TestCountPages(t *testing.T) {
	pdf := []byte("%PDF-1.4\n" +
		"1 0 obj << /Type /Pages /Count 2 >> endobj\n" +
		"2 0 obj << /Type /Page >> endobj\n" +
		"3 0 obj << /Type /Page >> endobj\n")
	assert.Equal(t, 2, countPages(pdf))
	assert.Equal(t, 0, countPages([]byte("stub-bytes")))
	assert.Equal(t, 0, countPages(nil))

	// Compressed object streams hide the page dictionaries; the page
	// tree /Count is the remaining signal.
	packed := []byte("%PDF-1.7\nstream...endstream\n<< /Count 3 >>\n")
	assert.Equal(t, 3, countPages(packed))
}
