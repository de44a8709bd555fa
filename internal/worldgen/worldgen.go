// Package worldgen fills empty chunks with noise terrain. It stands in for
// the external generator when a chunk has nothing persisted.
package worldgen

import (
	"github.com/ojrac/opensimplex-go"

	"voxelight.ai/internal/voxel"
)

type Palette interface {
	ID(name string) (voxel.BlockID, bool)
}

type Blocks struct {
	Stone, Dirt, Grass, Glow voxel.BlockID
}

// BlocksFrom resolves the generator's block names; missing ones fall back
// to stone, or air when even stone is missing.
func BlocksFrom(p Palette) Blocks {
	get := func(name string, def voxel.BlockID) voxel.BlockID {
		if id, ok := p.ID(name); ok {
			return id
		}
		return def
	}
	stone := get("STONE", voxel.BlockAir)
	return Blocks{
		Stone: stone,
		Dirt:  get("DIRT", stone),
		Grass: get("GRASS", stone),
		Glow:  get("GLOWSTONE", stone),
	}
}

type Generator struct {
	noise  opensimplex.Noise32
	blocks Blocks

	BaseHeight int
	Amplitude  float32
	Scale      float32
	Octaves    int
}

func New(seed int64, blocks Blocks) *Generator {
	return &Generator{
		noise:      opensimplex.New32(seed),
		blocks:     blocks,
		BaseHeight: 64,
		Amplitude:  24,
		Scale:      96,
		Octaves:    4,
	}
}

// Height returns the terrain surface y at world column x,z.
func (g *Generator) Height(x, z int, h int) int {
	val := float32(0)
	x1, z1 := float32(x), float32(z)
	amp := g.Amplitude
	for i := 0; i < g.Octaves; i++ {
		val += g.noise.Eval2(x1/g.Scale, z1/g.Scale) * amp
		x1 *= 2
		z1 *= 2
		amp *= 0.5
	}
	y := g.BaseHeight + int(val)
	return max(1, min(h-2, y))
}

// Fill overwrites every voxel of ch and marks it modified.
func (g *Generator) Fill(ch *voxel.Chunk) {
	d := ch.Dims
	for lz := 0; lz < d.D; lz++ {
		for lx := 0; lx < d.W; lx++ {
			x, _, z := d.ToWorld(ch.Key, lx, 0, lz)
			top := g.Height(x, z, d.H)
			for y := 0; y < d.H; y++ {
				id := voxel.BlockAir
				switch {
				case y > top:
				case y == top:
					id = g.blocks.Grass
				case y > top-4:
					id = g.blocks.Dirt
				case g.noise.Eval3(float32(x)/12, float32(y)/12, float32(z)/12) > 0.55:
					id = g.blocks.Glow
				default:
					id = g.blocks.Stone
				}
				ch.Voxels[d.Index(lx, y, lz)] = voxel.Voxel{ID: id}
			}
		}
	}
	ch.SetModified(true)
}
