package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelight.ai/internal/voxel"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if r.Palette[0] != "AIR" || r.MustID("AIR") != voxel.BlockAir {
		t.Fatalf("AIR must be palette id 0, got %v", r.Palette)
	}
	if !r.LightPassing(voxel.BlockAir) || !r.SkyLightPassing(voxel.BlockAir) {
		t.Fatalf("AIR must pass light")
	}
	if r.LightPassing(r.MustID("STONE")) {
		t.Fatalf("STONE must block light")
	}
	if !r.LightPassing(r.MustID("LEAVES")) || r.SkyLightPassing(r.MustID("LEAVES")) {
		t.Fatalf("LEAVES pass block light but not sky light")
	}
	if got := r.Emission(r.MustID("GLOWSTONE")); got != [3]uint8{15, 14, 10} {
		t.Fatalf("GLOWSTONE emission: %v", got)
	}
	if r.Fallback() != r.MustID("UNKNOWN") {
		t.Fatalf("fallback: got %d", r.Fallback())
	}
	if r.Known(voxel.BlockVoid) || r.LightPassing(voxel.BlockVoid) || r.Block(voxel.BlockVoid) != nil {
		t.Fatalf("void id must be unknown")
	}
	if r.PaletteDigest == "" || r.DefsDigest == "" {
		t.Fatalf("missing digests")
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing air":    `[{"id":"STONE"}]`,
		"bad id":         `[{"id":"AIR"},{"id":"lower"}]`,
		"emission range": `[{"id":"AIR"},{"id":"LAMP","emission":[16,0,0]}]`,
		"unknown field":  `[{"id":"AIR","glow":true}]`,
		"duplicate":      `[{"id":"AIR"},{"id":"AIR"}]`,
		"two fallbacks":  `[{"id":"AIR"},{"id":"A","fallback":true},{"id":"B","fallback":true}]`,
		"not json":       `{`,
		"empty":          `[]`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "blocks.json")
	raw := `[{"id":"ZINC","solid":true},{"id":"AIR","light_passing":true}]`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Join(r.Palette, ",") != "AIR,ZINC" {
		t.Fatalf("palette: %v", r.Palette)
	}
	if r.Fallback() != voxel.BlockAir {
		t.Fatalf("fallback defaults to AIR, got %d", r.Fallback())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
