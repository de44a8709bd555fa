package content

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelight.ai/internal/voxel"
)

//go:embed blocks.schema.json
var blocksSchema string

//go:embed default_blocks.json
var defaultBlocks []byte

type BlockDef struct {
	ID              string   `json:"id"`
	Solid           bool     `json:"solid"`
	LightPassing    bool     `json:"light_passing"`
	SkyLightPassing bool     `json:"sky_light_passing"`
	Emission        [3]uint8 `json:"emission"`
	Fallback        bool     `json:"fallback,omitempty"`
}

// Registry is the read-only block table consulted by storage and lighting.
// Palette ids are dense; AIR is always 0.
type Registry struct {
	Palette []string
	Index   map[string]voxel.BlockID
	Defs    []BlockDef

	PaletteDigest string
	DefsDigest    string

	fallback voxel.BlockID
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("blocks.schema.json", blocksSchema)
	})
	return schema, schemaErr
}

func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Default returns the built-in block set.
func Default() *Registry {
	r, err := Parse(defaultBlocks)
	if err != nil {
		panic(fmt.Sprintf("content: default blocks: %v", err))
	}
	return r
}

func Parse(raw []byte) (*Registry, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("blocks schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	byID := make(map[string]BlockDef, len(defs))
	for _, d := range defs {
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		byID[d.ID] = d
	}
	if _, ok := byID["AIR"]; !ok {
		return nil, fmt.Errorf("blocks.json: missing AIR")
	}
	if len(byID) >= int(voxel.BlockVoid) {
		return nil, fmt.Errorf("blocks.json: %d blocks exceed the id space", len(byID))
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{"AIR"}, ids...)

	r := &Registry{
		Palette:    ids,
		Index:      make(map[string]voxel.BlockID, len(ids)),
		Defs:       make([]BlockDef, len(ids)),
		DefsDigest: sha256Hex(raw),
	}
	fallbacks := 0
	for i, id := range ids {
		r.Index[id] = voxel.BlockID(i)
		r.Defs[i] = byID[id]
		if byID[id].Fallback {
			r.fallback = voxel.BlockID(i)
			fallbacks++
		}
	}
	if fallbacks > 1 {
		return nil, fmt.Errorf("blocks.json: %d fallback blocks, want at most 1", fallbacks)
	}
	palJSON, _ := json.Marshal(ids)
	r.PaletteDigest = sha256Hex(palJSON)
	return r, nil
}

// Block returns nil for ids outside the palette.
func (r *Registry) Block(id voxel.BlockID) *BlockDef {
	if int(id) >= len(r.Defs) {
		return nil
	}
	return &r.Defs[id]
}

func (r *Registry) ID(name string) (voxel.BlockID, bool) {
	id, ok := r.Index[name]
	return id, ok
}

// MustID is for wiring code and tests that reference built-in blocks.
func (r *Registry) MustID(name string) voxel.BlockID {
	id, ok := r.Index[name]
	if !ok {
		panic("content: unknown block " + name)
	}
	return id
}

func (r *Registry) Known(id voxel.BlockID) bool {
	return int(id) < len(r.Defs)
}

func (r *Registry) LightPassing(id voxel.BlockID) bool {
	b := r.Block(id)
	return b != nil && b.LightPassing
}

func (r *Registry) SkyLightPassing(id voxel.BlockID) bool {
	b := r.Block(id)
	return b != nil && b.SkyLightPassing
}

func (r *Registry) Emission(id voxel.BlockID) [3]uint8 {
	b := r.Block(id)
	if b == nil {
		return [3]uint8{}
	}
	return b.Emission
}

// Fallback replaces ids that are no longer in the palette.
func (r *Registry) Fallback() voxel.BlockID {
	return r.fallback
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
