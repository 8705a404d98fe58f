package trendreport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarnessPassesOnVectorEngine(t *testing.T) {
	reg := testRegistry(t, FamilyHangul, FamilyHan, FamilySymbols)
	eng := NewVectorEngine(reg, testLogger())

	reports := RunHarness(context.Background(), reg, eng)
	require.Len(t, reports, 1)
	rep := reports[0]
	assert.True(t, rep.Passed, "findings: %v", rep.Findings)
	assert.Equal(t, EngineVector, rep.Engine)
	assert.GreaterOrEqual(t, rep.Bytes, harnessMinBytes)
	assert.LessOrEqual(t, rep.Bytes, harnessMaxBytes)
	// The test fonts carry Latin glyphs only, so the Thai battery
	// strings must show up as coverage notes without failing the run.
	assert.NotEmpty(t, rep.Notes)
}

func TestHarnessCatchesFailingEngine(t *testing.T) {
	reg := testRegistry(t)
	broken := &stubEngine{id: EngineChromium, fail: true}

	reports := RunHarness(context.Background(), reg, broken)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Passed)
	assert.NotEmpty(t, reports[0].Findings)
}

func TestHarnessCatchesEmptyOutput(t *testing.T) {
	reg := testRegistry(t)
	empty := &stubEngine{id: EngineChromium, empty: true}

	reports := RunHarness(context.Background(), reg, empty)
	require.Len(t, reports, 1)
	rep := reports[0]
	assert.False(t, rep.Passed, "zero-byte output must fail the size envelope")
}

func TestHarnessMultipleEngines(t *testing.T) {
	reg := testRegistry(t, FamilySymbols)
	vector := NewVectorEngine(reg, testLogger())
	stub := &stubEngine{id: EngineChromium}

	reports := RunHarness(context.Background(), reg, vector, stub)
	require.Len(t, reports, 2)
	assert.Equal(t, EngineVector, reports[0].Engine)
	assert.Equal(t, EngineChromium, reports[1].Engine)
}

func TestCheckDeterminismTolerance(t *testing.T) {
	rep := &HarnessReport{Passed: true}
	checkDeterminism(rep, EngineVector, []byte("aaa"), []byte("aab"))
	assert.False(t, rep.Passed, "vector must be byte-identical")

	rep = &HarnessReport{Passed: true}
	first := make([]byte, 10000)
	second := make([]byte, 10100) // 1% drift, inside Chromium tolerance
	checkDeterminism(rep, EngineChromium, first, second)
	assert.True(t, rep.Passed)

	rep = &HarnessReport{Passed: true}
	third := make([]byte, 12000) // 20% drift
	checkDeterminism(rep, EngineChromium, first, third)
	assert.False(t, rep.Passed)
}

func TestCountCombiningMarks(t *testing.T) {
	assert.Equal(t, 0, countCombiningMarks("plain"))
	// sara am (U+0E33) is a base character, only mai tho counts here
	assert.Equal(t, 1, countCombiningMarks("น้ำ"))
	assert.Equal(t, 2, countCombiningMarks("ว่ามั"))
}
