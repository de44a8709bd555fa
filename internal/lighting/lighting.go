package lighting

import (
	"errors"
	"io"
	"log"

	"voxelight.ai/internal/voxel"
)

type Content interface {
	Blocks
	SkyLightPassing(id voxel.BlockID) bool
	Emission(id voxel.BlockID) [3]uint8
}

type World interface {
	Voxels
	Chunk(cx, cz int32) *voxel.Chunk
	Voxel(x, y, z int) *voxel.Voxel
	LoadedChunkKeys() []voxel.ChunkKey
}

// Lighting bundles one solver per channel and the world-level relight
// operations built on them.
type Lighting struct {
	content Content
	world   World
	dims    voxel.Dims
	log     *log.Logger

	solvers [voxel.Channels]*Solver
}

func New(content Content, world World, logger *log.Logger) *Lighting {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &Lighting{
		content: content,
		world:   world,
		dims:    world.Dims(),
		log:     logger,
	}
	for ch := range l.solvers {
		l.solvers[ch] = NewSolver(content, world, ch)
	}
	return l
}

func (l *Lighting) Solver(channel int) *Solver {
	return l.solvers[channel]
}

func (l *Lighting) Solve() {
	for _, s := range l.solvers {
		s.Solve()
	}
}

// Clear zeroes the lightmaps of all resident chunks.
func (l *Lighting) Clear() {
	for _, k := range l.world.LoadedChunkKeys() {
		if ch := l.world.Chunk(k.CX, k.CZ); ch != nil {
			ch.Lightmap.Clear()
			ch.SetModified(true)
		}
	}
}

// Relight discards all light and rebuilds every resident chunk from its
// blocks: sky columns first, then sky spread, then emitters.
func (l *Lighting) Relight() {
	l.Clear()
	keys := l.world.LoadedChunkKeys()
	for _, k := range keys {
		if ch := l.world.Chunk(k.CX, k.CZ); ch != nil {
			PrebuildSkyLight(ch, l.content)
		}
	}
	for _, k := range keys {
		l.BuildSkyLight(k.CX, k.CZ)
	}
	for _, k := range keys {
		l.OnChunkLoaded(k.CX, k.CZ, false)
	}
}

// PrebuildSkyLight fills each column with full sky light from the top down
// to the first block that stops sky light. No propagation happens here.
func PrebuildSkyLight(ch *voxel.Chunk, content Content) {
	d := ch.Dims
	start := d.H - 1
	if content.SkyLightPassing(voxel.BlockAir) {
		// Everything above the top block is open air.
		start = max(ch.Top(), 0)
		for i := d.Index(0, start+1, 0); i < d.Volume(); i++ {
			ch.Lightmap.SetAt(i, voxel.ChannelS, voxel.MaxLight)
		}
	}
	highest := 0
	for z := 0; z < d.D; z++ {
		for x := 0; x < d.W; x++ {
			for y := start; y >= 0; y-- {
				if !content.SkyLightPassing(ch.Get(x, y, z).ID) {
					highest = max(highest, y)
					break
				}
				ch.Lightmap.Set(x, y, z, voxel.ChannelS, voxel.MaxLight)
			}
		}
	}
	if highest < d.H-1 {
		highest++
	}
	ch.Lightmap.Highest = highest
}

func (l *Lighting) PrebuildSkyLight(ch *voxel.Chunk) {
	PrebuildSkyLight(ch, l.content)
}

// BuildSkyLight spreads prebuilt sky light sideways and under overhangs.
// Only full-sky voxels bordering a darker light-passing neighbour are seeded.
func (l *Lighting) BuildSkyLight(cx, cz int32) {
	ch := l.world.Chunk(cx, cz)
	if ch == nil {
		return
	}
	sky := l.solvers[voxel.ChannelS]
	d := l.dims
	highest := ch.Lightmap.Highest
	for y := 0; y < d.H; y++ {
		for z := 0; z < d.D; z++ {
			for x := 0; x < d.W; x++ {
				// Above the highest sky blocker only the border can face shade.
				if y > highest && x > 0 && x < d.W-1 && z > 0 && z < d.D-1 {
					continue
				}
				if ch.Lightmap.Get(x, y, z, voxel.ChannelS) != voxel.MaxLight {
					continue
				}
				gx, gy, gz := d.ToWorld(ch.Key, x, y, z)
				if l.hasDarkerNeighbour(gx, gy, gz, voxel.ChannelS, voxel.MaxLight) {
					sky.Add(gx, gy, gz, voxel.MaxLight)
				}
			}
		}
	}
	sky.Solve()
}

func (l *Lighting) hasDarkerNeighbour(x, y, z, channel, light int) bool {
	for _, off := range neighbours {
		nx, ny, nz := x+off[0], y+off[1], z+off[2]
		nch := l.world.ChunkByVoxel(nx, ny, nz)
		if nch == nil {
			continue
		}
		_, lx, ly, lz := l.dims.ToLocal(nx, ny, nz)
		if l.content.LightPassing(nch.Get(lx, ly, lz).ID) && nch.Lightmap.Get(lx, ly, lz, channel)+2 <= light {
			return true
		}
	}
	return false
}

// OnChunkLoaded seeds every emitter of a freshly resident chunk. With
// expand, light stored on both sides of the chunk border is re-propagated
// so the new chunk and its resident neighbours agree.
func (l *Lighting) OnChunkLoaded(cx, cz int32, expand bool) {
	ch := l.world.Chunk(cx, cz)
	if ch == nil {
		return
	}
	d := l.dims
	for i, v := range ch.Voxels {
		e := l.content.Emission(v.ID)
		if e == ([3]uint8{}) {
			continue
		}
		lx, ly, lz := d.Unindex(i)
		gx, gy, gz := d.ToWorld(ch.Key, lx, ly, lz)
		for c := 0; c < 3; c++ {
			l.solvers[c].Add(gx, gy, gz, int(e[c]))
		}
	}

	if expand {
		x0, z0, _ := d.ToWorld(ch.Key, 0, 0, 0)
		for y := 0; y < d.H; y++ {
			for z := z0; z < z0+d.D; z++ {
				l.reseedAll(x0, y, z)
				l.reseedAll(x0+d.W-1, y, z)
				l.reseedAll(x0-1, y, z)
				l.reseedAll(x0+d.W, y, z)
			}
			for x := x0; x < x0+d.W; x++ {
				l.reseedAll(x, y, z0)
				l.reseedAll(x, y, z0+d.D-1)
				l.reseedAll(x, y, z0-1)
				l.reseedAll(x, y, z0+d.D)
			}
		}
	}
	l.Solve()
}

// OnBlockSet restores consistency after the voxel at x,y,z became id.
// The storage must already hold the new block.
func (l *Lighting) OnBlockSet(x, y, z int, id voxel.BlockID) {
	passing := l.content.LightPassing(id)
	emission := l.content.Emission(id)

	for c := 0; c < 3; c++ {
		l.solvers[c].Remove(x, y, z)
		l.solvers[c].Solve()
	}

	sky := l.solvers[voxel.ChannelS]
	if l.content.SkyLightPassing(id) {
		if !l.dims.InHeight(y+1) || l.skyAt(x, y+1, z) == voxel.MaxLight {
			for i := y; i >= 0; i-- {
				v := l.world.Voxel(x, i, z)
				if v == nil || (i != y && !l.content.SkyLightPassing(v.ID)) {
					break
				}
				sky.Add(x, i, z, voxel.MaxLight)
			}
		}
	} else {
		sky.Remove(x, y, z)
		for i := y - 1; i >= 0; i-- {
			v := l.world.Voxel(x, i, z)
			if v == nil || !l.content.SkyLightPassing(v.ID) {
				break
			}
			sky.Remove(x, i, z)
		}
		sky.Solve()
	}

	if passing {
		for _, off := range neighbours {
			l.reseedAll(x+off[0], y+off[1], z+off[2])
		}
	}
	for c := 0; c < 3; c++ {
		l.solvers[c].Add(x, y, z, int(emission[c]))
	}
	l.Solve()
}

func (l *Lighting) skyAt(x, y, z int) int {
	ch := l.world.ChunkByVoxel(x, y, z)
	if ch == nil {
		return 0
	}
	_, lx, ly, lz := l.dims.ToLocal(x, y, z)
	return ch.Lightmap.Get(lx, ly, lz, voxel.ChannelS)
}

func (l *Lighting) reseedAll(x, y, z int) {
	for _, s := range l.solvers {
		if err := s.Reseed(x, y, z); err != nil && !errors.Is(err, ErrNoChunk) {
			l.log.Printf("reseed %d,%d,%d: %v", x, y, z, err)
		}
	}
}
