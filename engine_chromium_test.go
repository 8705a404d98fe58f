package trendreport

import (
	"strings"
	"testing"
	"time"
)

func TestChromiumConfigDefaults(t *testing.T) {
	var cfg ChromiumConfig
	cfg.defaults()
	if cfg.PoolSize != DefaultChromiumPoolSize {
		t.Errorf("PoolSize = %d", cfg.PoolSize)
	}
	if cfg.FontsReadyTimeout != DefaultFontsReadyTimeout {
		t.Errorf("FontsReadyTimeout = %v", cfg.FontsReadyTimeout)
	}

	cfg = ChromiumConfig{PoolSize: 5, FontsReadyTimeout: time.Second}
	cfg.defaults()
	if cfg.PoolSize != 5 || cfg.FontsReadyTimeout != time.Second {
		t.Error("defaults must not override explicit values")
	}
}

func TestBuildHTML(t *testing.T) {
	reg := testRegistry(t, FamilyHangul)
	eng := NewChromiumEngine(reg, ChromiumConfig{}, testLogger())
	defer eng.Close()

	req := testRequest(reg, "ข่าวเด่น", "안녕하세요 <script>alert(1)</script>")
	html, err := eng.buildHTML(req)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}

	for _, want := range []string{
		"@font-face",
		"data:font/ttf;base64,",
		FamilyUniversal,
		FamilyHangul,
		"ข่าวเด่น",
		"line-height: 1.6",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
	// Titles are untrusted scraped text and must come out escaped.
	if strings.Contains(html, "<script>alert") {
		t.Error("unescaped title in html")
	}
}

func TestBuildHTMLDeterministic(t *testing.T) {
	reg := testRegistry(t, FamilyHangul, FamilySymbols)
	eng := NewChromiumEngine(reg, ChromiumConfig{}, testLogger())
	defer eng.Close()

	req := testRequest(reg, harnessBattery...)
	first, err := eng.buildHTML(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.buildHTML(req)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("page content differs across builds of the same request")
	}
}

func TestFontFaceCSSSkipsFallbackBold(t *testing.T) {
	reg := testRegistry(t)
	// Registry built without a real bold weight for this family: only the
	// regular rule may appear, not a bold rule duplicating regular bytes.
	reg.assets["RegularOnly"] = map[string]*FontAsset{
		WeightRegular: {Family: "RegularOnly", Weight: WeightRegular, Data: []byte{1, 2, 3}},
	}
	css := fontFaceCSS(reg)
	if strings.Count(css, `"RegularOnly"`) != 1 {
		t.Errorf("expected exactly one @font-face for RegularOnly:\n%s", css)
	}
}
