package trendreport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/sfnt"
)

// Font family identifiers. The selector and the registry share these
// constants: a family is only ever requested under the exact name it was
// registered with, which rules out the class of bug where a render asks
// for a family the loader published under a different spelling.
const (
	// FamilyUniversal covers Thai and Latin and is the terminal fallback
	// for every selection. The registry refuses to initialize without it.
	FamilyUniversal = "NotoSansThai"
	FamilyHan       = "NotoSansSC"
	FamilyHangul    = "NotoSansKR"
	FamilyEmoji     = "NotoEmoji"
	FamilySymbols   = "NotoSansSymbols"
)

// Font weights the registry loads per family.
const (
	WeightRegular = "regular"
	WeightBold    = "bold"
)

// scriptFamilies maps each detected script to its ordered candidate
// families. Thai and Latin resolve to the universal family directly.
var scriptFamilies = map[Script][]string{
	ScriptThai:    {FamilyUniversal},
	ScriptLatin:   {FamilyUniversal},
	ScriptHan:     {FamilyHan},
	ScriptHangul:  {FamilyHangul},
	ScriptEmoji:   {FamilyEmoji},
	ScriptSymbols: {FamilySymbols},
}

// maxFontFileSize limits the size of individual font files loaded into
// memory. CJK fonts are the largest at around 20 MB.
const maxFontFileSize = 40 << 20

// FontAsset is one loaded, checksum-verified font file.
type FontAsset struct {
	Family   string
	Weight   string
	Path     string
	Data     []byte
	Checksum string
	Font     *sfnt.Font
}

// FontManifest lists the known-good font files and their checksums. The
// registry trusts no font bytes that do not hash to the manifest value.
type FontManifest struct {
	Fonts []FontManifestEntry `json:"fonts"`
}

// FontManifestEntry describes one font file of one family/weight.
type FontManifestEntry struct {
	Family string `json:"family"`
	Weight string `json:"weight"`
	File   string `json:"file"`
	SHA256 string `json:"sha256"`
}

// LoadManifest reads and decodes a font manifest from disk.
func LoadManifest(path string) (*FontManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font manifest: %w", err)
	}
	var m FontManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse font manifest %s: %w", path, err)
	}
	if len(m.Fonts) == 0 {
		return nil, fmt.Errorf("font manifest %s lists no fonts", path)
	}
	return &m, nil
}

// entriesFor returns the manifest entries of one family.
func (m *FontManifest) entriesFor(family string) []FontManifestEntry {
	var out []FontManifestEntry
	for _, e := range m.Fonts {
		if e.Family == family {
			out = append(out, e)
		}
	}
	return out
}

// FontIntegrityError reports a checksum mismatch for one font file. The
// affected family is skipped; other families still load.
type FontIntegrityError struct {
	Family string
	File   string
	Want   string
	Got    string
}

func (e *FontIntegrityError) Error() string {
	return fmt.Sprintf("font %s (%s): checksum mismatch: manifest %s, file %s",
		e.Family, e.File, e.Want, e.Got)
}

// FontRegistry holds the fonts that actually loaded for the process
// lifetime. It is built once in an explicit Load phase and read-only
// afterwards: assets are shared across concurrent renders without
// further locking, and the loaded-family set is the single source of
// truth the selector validates every candidate against.
type FontRegistry struct {
	mu        sync.Mutex
	assets    map[string]map[string]*FontAsset // family -> weight -> asset
	universal string
	loaded    bool
	logger    *slog.Logger

	sfntMu  sync.Mutex
	sfntBuf sfnt.Buffer
}

// NewFontRegistry creates an empty registry. A nil logger falls back to
// slog.Default().
func NewFontRegistry(logger *slog.Logger) *FontRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FontRegistry{
		assets:    make(map[string]map[string]*FontAsset),
		universal: FamilyUniversal,
		logger:    logger,
	}
}

// Load resolves fonts for the detected scripts: for every script in the
// profile it loads the regular and bold weights of each candidate
// family, verifying the manifest checksum before trusting any bytes. The
// symbols family is always loaded regardless of detection, since
// punctuation and currency glyphs show up even when the analyzer saw
// none. Load may be called once per registry; it fails if the universal
// family cannot be loaded, and degrades with a warning when every
// non-universal family failed.
func (r *FontRegistry) Load(dir string, manifest *FontManifest, profile ScriptProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return fmt.Errorf("font registry already loaded")
	}
	if manifest == nil {
		return fmt.Errorf("font registry: nil manifest")
	}

	want := []string{r.universal, FamilySymbols}
	for _, s := range profile.Scripts() {
		for _, fam := range scriptFamilies[s] {
			want = append(want, fam)
		}
	}

	seen := make(map[string]bool)
	for _, fam := range want {
		if seen[fam] {
			continue
		}
		seen[fam] = true
		r.loadFamily(dir, manifest, fam)
	}

	if _, ok := r.assets[r.universal]; !ok {
		return fmt.Errorf("font registry: universal family %s failed to load", r.universal)
	}
	if len(r.assets) == 1 {
		r.logger.Warn("no non-universal font families loaded, rendering with universal only",
			"universal", r.universal)
	}
	r.loaded = true
	return nil
}

// loadFamily loads every manifest entry of one family. Any failure
// (missing entry, unreadable file, checksum mismatch, unparseable font)
// skips the whole family rather than registering it half-usable.
func (r *FontRegistry) loadFamily(dir string, manifest *FontManifest, family string) {
	entries := manifest.entriesFor(family)
	if len(entries) == 0 {
		r.logger.Warn("font family not in manifest, skipping", "family", family)
		return
	}

	weights := make(map[string]*FontAsset, len(entries))
	for _, e := range entries {
		asset, err := loadAsset(dir, e)
		if err != nil {
			r.logger.Warn("font failed to load, skipping family",
				"family", family, "file", e.File, "error", err)
			return
		}
		weights[e.Weight] = asset
	}
	if _, ok := weights[WeightRegular]; !ok {
		r.logger.Warn("font family has no regular weight, skipping", "family", family)
		return
	}
	r.assets[family] = weights
}

func loadAsset(dir string, e FontManifestEntry) (*FontAsset, error) {
	path := filepath.Join(dir, e.File)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFontFileSize {
		return nil, fmt.Errorf("font file too large: %d bytes (max %d)", info.Size(), maxFontFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, e.SHA256) {
		return nil, &FontIntegrityError{Family: e.Family, File: e.File, Want: e.SHA256, Got: got}
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &FontAsset{
		Family:   e.Family,
		Weight:   e.Weight,
		Path:     path,
		Data:     data,
		Checksum: got,
		Font:     f,
	}, nil
}

// Loaded reports whether the family registered successfully. This is the
// check the selector runs before returning any candidate.
func (r *FontRegistry) Loaded(family string) bool {
	_, ok := r.assets[family]
	return ok
}

// Universal returns the name of the always-present fallback family.
func (r *FontRegistry) Universal() string {
	return r.universal
}

// Families returns the loaded family names in sorted order.
func (r *FontRegistry) Families() []string {
	out := make([]string, 0, len(r.assets))
	for fam := range r.assets {
		out = append(out, fam)
	}
	sort.Strings(out)
	return out
}

// Asset returns the loaded asset for a family and weight, or nil. A
// missing bold weight falls back to regular.
func (r *FontRegistry) Asset(family, weight string) *FontAsset {
	weights, ok := r.assets[family]
	if !ok {
		return nil
	}
	if a, ok := weights[weight]; ok {
		return a
	}
	return weights[WeightRegular]
}

// Covers reports whether the family's regular weight has a glyph for the
// rune. Used by the harness to distinguish expected missing-glyph boxes
// (mixed-script single runs) from regressions.
func (r *FontRegistry) Covers(family string, ch rune) bool {
	a := r.Asset(family, WeightRegular)
	if a == nil || a.Font == nil {
		return false
	}
	r.sfntMu.Lock()
	defer r.sfntMu.Unlock()
	gi, err := a.Font.GlyphIndex(&r.sfntBuf, ch)
	return err == nil && gi != 0
}
