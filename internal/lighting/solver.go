package lighting

import (
	"errors"
	"fmt"

	"voxelight.ai/internal/voxel"
)

var ErrNoChunk = errors.New("lighting: no such chunk")

type Blocks interface {
	LightPassing(id voxel.BlockID) bool
}

// Voxels resolves world coordinates to resident chunks. ChunkByVoxel returns
// nil for positions outside the world height or in unresident chunks.
type Voxels interface {
	Dims() voxel.Dims
	ChunkByVoxel(x, y, z int) *voxel.Chunk
}

type entry struct {
	x, y, z int
	light   uint8
}

// queue is a FIFO worklist; the backing array is reused once drained.
type queue struct {
	buf  []entry
	head int
}

func (q *queue) push(e entry) { q.buf = append(q.buf, e) }
func (q *queue) len() int     { return len(q.buf) - q.head }

func (q *queue) pop() entry {
	e := q.buf[q.head]
	q.head++
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}
	return e
}

var neighbours = [6][3]int{
	{0, 0, 1},
	{0, 0, -1},
	{0, 1, 0},
	{0, -1, 0},
	{1, 0, 0},
	{-1, 0, 0},
}

// Solver propagates one light channel with breadth-first flood fill.
// Edits are staged by Add and Remove and applied by Solve.
type Solver struct {
	blocks  Blocks
	voxels  Voxels
	dims    voxel.Dims
	channel int

	remq queue
	addq queue
}

func NewSolver(blocks Blocks, voxels Voxels, channel int) *Solver {
	return &Solver{
		blocks:  blocks,
		voxels:  voxels,
		dims:    voxels.Dims(),
		channel: channel,
	}
}

func (s *Solver) Channel() int { return s.channel }

// Pending reports the number of staged removals and additions.
func (s *Solver) Pending() (removals, additions int) {
	return s.remq.len(), s.addq.len()
}

// Add writes emission at the voxel and stages it for propagation.
// Emissions of 1 or less cannot light a neighbour and are ignored.
func (s *Solver) Add(x, y, z, emission int) {
	if emission <= 1 {
		return
	}
	ch := s.voxels.ChunkByVoxel(x, y, z)
	if ch == nil {
		return
	}
	emission = min(emission, voxel.MaxLight)
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	ch.Lightmap.Set(lx, ly, lz, s.channel, emission)
	ch.SetModified(true)
	s.addq.push(entry{x: x, y: y, z: z, light: uint8(emission)})
}

// Reseed propagates the value already stored at the voxel, e.g. to push
// light across a boundary after a neighbouring chunk became resident.
func (s *Solver) Reseed(x, y, z int) error {
	ch := s.voxels.ChunkByVoxel(x, y, z)
	if ch == nil {
		return fmt.Errorf("%w at %d,%d,%d", ErrNoChunk, x, y, z)
	}
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	s.Add(x, y, z, ch.Lightmap.Get(lx, ly, lz, s.channel))
	return nil
}

// Remove darkens the voxel and stages the old value for retraction.
func (s *Solver) Remove(x, y, z int) {
	ch := s.voxels.ChunkByVoxel(x, y, z)
	if ch == nil {
		return
	}
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	light := ch.Lightmap.Get(lx, ly, lz, s.channel)
	if light == 0 {
		return
	}
	ch.Lightmap.Set(lx, ly, lz, s.channel, 0)
	ch.SetModified(true)
	s.remq.push(entry{x: x, y: y, z: z, light: uint8(light)})
}

// Solve drains both queues: retraction first, then propagation.
// Neighbours in unresident chunks are skipped.
func (s *Solver) Solve() {
	for s.remq.len() > 0 {
		e := s.remq.pop()
		for _, off := range neighbours {
			x, y, z := e.x+off[0], e.y+off[1], e.z+off[2]
			ch := s.voxels.ChunkByVoxel(x, y, z)
			if ch == nil {
				continue
			}
			_, lx, ly, lz := s.dims.ToLocal(x, y, z)
			ch.SetModified(true)

			light := ch.Lightmap.Get(lx, ly, lz, s.channel)
			switch {
			case light != 0 && light == int(e.light)-1:
				s.remq.push(entry{x: x, y: y, z: z, light: uint8(light)})
				ch.Lightmap.Set(lx, ly, lz, s.channel, 0)
			case light >= int(e.light):
				s.addq.push(entry{x: x, y: y, z: z, light: uint8(light)})
			}
		}
	}

	for s.addq.len() > 0 {
		e := s.addq.pop()
		for _, off := range neighbours {
			x, y, z := e.x+off[0], e.y+off[1], e.z+off[2]
			ch := s.voxels.ChunkByVoxel(x, y, z)
			if ch == nil {
				continue
			}
			_, lx, ly, lz := s.dims.ToLocal(x, y, z)
			ch.SetModified(true)

			light := ch.Lightmap.Get(lx, ly, lz, s.channel)
			id := ch.Get(lx, ly, lz).ID
			if s.blocks.LightPassing(id) && light+2 <= int(e.light) {
				ch.Lightmap.Set(lx, ly, lz, s.channel, int(e.light)-1)
				s.addq.push(entry{x: x, y: y, z: z, light: e.light - 1})
			}
		}
	}
}
