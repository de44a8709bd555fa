package lighting

import (
	"errors"
	"testing"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/content"
	"voxelight.ai/internal/voxel"
)

var cube16 = voxel.Dims{W: 16, H: 16, D: 16}

func newWorld(t *testing.T, keys ...voxel.ChunkKey) (*chunks.Storage, *content.Registry) {
	t.Helper()
	reg := content.Default()
	s := chunks.New(chunks.Config{Dims: cube16, Content: reg})
	for _, k := range keys {
		s.Create(k.CX, k.CZ)
	}
	return s, reg
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func snapshot(s *chunks.Storage, channel int) map[[3]int]int {
	out := map[[3]int]int{}
	d := s.Dims()
	for _, k := range s.LoadedChunkKeys() {
		ch := s.Chunk(k.CX, k.CZ)
		for i := range ch.Voxels {
			lx, ly, lz := d.Unindex(i)
			if v := ch.Lightmap.Get(lx, ly, lz, channel); v != 0 {
				x, y, z := d.ToWorld(k, lx, ly, lz)
				out[[3]int{x, y, z}] = v
			}
		}
	}
	return out
}

func sameField(t *testing.T, got, want map[[3]int]int) {
	t.Helper()
	for p, v := range want {
		if got[p] != v {
			t.Fatalf("at %v: got %d want %d", p, got[p], v)
		}
	}
	for p, v := range got {
		if want[p] != v {
			t.Fatalf("at %v: got %d want %d", p, v, want[p])
		}
	}
}

func TestSingleSourceFalloff(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Add(8, 8, 8, 10)
	sv.Solve()

	for y := 0; y < 16; y++ {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				want := max(0, 10-(abs(x-8)+abs(y-8)+abs(z-8)))
				if got := s.Light(x, y, z, voxel.ChannelR); got != want {
					t.Fatalf("light at %d,%d,%d: got %d want %d", x, y, z, got, want)
				}
			}
		}
	}
	if got := s.Light(8, 8, 8, voxel.ChannelG); got != 0 {
		t.Fatalf("other channels must stay dark, got %d", got)
	}
}

func TestScenarioAddThenRemove(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Add(8, 8, 8, 10)
	sv.Solve()

	probes := []struct {
		x, y, z int
		want    int
	}{
		{8, 8, 4, 6},
		{8, 8, 9, 9},
		{0, 8, 8, 2},
		{15, 8, 8, 3},
	}
	for _, p := range probes {
		if got := s.Light(p.x, p.y, p.z, voxel.ChannelR); got != p.want {
			t.Fatalf("light at %d,%d,%d: got %d want %d", p.x, p.y, p.z, got, p.want)
		}
	}

	sv.Remove(8, 8, 8)
	sv.Solve()
	if field := snapshot(s, voxel.ChannelR); len(field) != 0 {
		t.Fatalf("expected darkness after removal, %d voxels still lit", len(field))
	}
}

func TestRemovalMatchesFreshSolve(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelG)
	sv.Add(4, 8, 8, 10)
	sv.Add(11, 7, 9, 8)
	sv.Solve()
	sv.Remove(4, 8, 8)
	sv.Solve()
	got := snapshot(s, voxel.ChannelG)

	fresh, _ := newWorld(t, voxel.ChunkKey{})
	fs := NewSolver(reg, fresh, voxel.ChannelG)
	fs.Add(11, 7, 9, 8)
	fs.Solve()
	sameField(t, got, snapshot(fresh, voxel.ChannelG))
}

func TestSolveWithEmptyQueuesIsIdempotent(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelB)
	sv.Add(3, 3, 3, 12)
	sv.Solve()
	before := snapshot(s, voxel.ChannelB)

	if r, a := sv.Pending(); r != 0 || a != 0 {
		t.Fatalf("queues not drained: %d/%d", r, a)
	}
	sv.Solve()
	sameField(t, snapshot(s, voxel.ChannelB), before)
}

func TestOpaqueVoxelBlocksCorridor(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	stone := reg.MustID("STONE")
	ch := s.Chunk(0, 0)
	for i := range ch.Voxels {
		ch.Voxels[i].ID = stone
	}
	for x := 2; x <= 13; x++ {
		s.SetVoxel(x, 8, 8, voxel.BlockAir)
	}
	s.SetVoxel(8, 8, 8, stone)

	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Add(3, 8, 8, 15)
	sv.Solve()

	if got := s.Light(7, 8, 8, voxel.ChannelR); got != 11 {
		t.Fatalf("before the plug: got %d want 11", got)
	}
	if got := s.Light(8, 8, 8, voxel.ChannelR); got != 0 {
		t.Fatalf("plug must stay dark, got %d", got)
	}
	for x := 9; x <= 13; x++ {
		if got := s.Light(x, 8, 8, voxel.ChannelR); got != 0 {
			t.Fatalf("behind the plug at x=%d: got %d", x, got)
		}
	}
}

func TestPropagationCrossesResidentChunks(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{}, voxel.ChunkKey{CX: -1})
	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Add(1, 5, 5, 9)
	sv.Solve()

	if got := s.Light(-1, 5, 5, voxel.ChannelR); got != 7 {
		t.Fatalf("across the border: got %d want 7", got)
	}
	if got := s.Light(-7, 5, 5, voxel.ChannelR); got != 1 {
		t.Fatalf("far side: got %d want 1", got)
	}
	if !s.Chunk(-1, 0).Modified() {
		t.Fatalf("neighbour chunk must be marked modified")
	}
	// z=16 is not resident: that direction is silently skipped.
	sv.Add(3, 5, 15, 9)
	sv.Solve()
	if s.Chunk(0, 1) != nil {
		t.Fatalf("solver must not create chunks")
	}
}

func TestAddIgnoresWeakAndClampsStrongEmission(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Add(1, 1, 1, 1)
	sv.Add(2, 2, 2, 0)
	if _, a := sv.Pending(); a != 0 {
		t.Fatalf("weak emissions must not be queued")
	}
	if s.Chunk(0, 0).Modified() {
		t.Fatalf("weak emissions must not touch the chunk")
	}
	sv.Add(8, 8, 8, 200)
	sv.Solve()
	if got := s.Light(8, 8, 8, voxel.ChannelR); got != voxel.MaxLight {
		t.Fatalf("clamped emission: got %d", got)
	}
	if got := s.Light(8, 8, 9, voxel.ChannelR); got != 14 {
		t.Fatalf("neighbour: got %d", got)
	}
	// Add outside any chunk is a no-op.
	sv.Add(100, 1, 1, 15)
	if _, a := sv.Pending(); a != 0 {
		t.Fatalf("unresident add queued")
	}
}

func TestReseedRequiresChunk(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelR)
	if err := sv.Reseed(100, 1, 1); !errors.Is(err, ErrNoChunk) {
		t.Fatalf("expected ErrNoChunk, got %v", err)
	}
	if err := sv.Reseed(1, -1, 1); !errors.Is(err, ErrNoChunk) {
		t.Fatalf("below the world: expected ErrNoChunk, got %v", err)
	}

	s.Chunk(0, 0).Lightmap.Set(4, 4, 4, voxel.ChannelR, 6)
	if err := sv.Reseed(4, 4, 4); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	sv.Solve()
	if got := s.Light(4, 4, 6, voxel.ChannelR); got != 4 {
		t.Fatalf("reseeded light: got %d want 4", got)
	}
}

func TestRemoveOfDarkVoxelIsNoop(t *testing.T) {
	s, reg := newWorld(t, voxel.ChunkKey{})
	sv := NewSolver(reg, s, voxel.ChannelR)
	sv.Remove(3, 3, 3)
	sv.Remove(300, 3, 3)
	if r, _ := sv.Pending(); r != 0 {
		t.Fatalf("nothing to retract, got %d queued", r)
	}
	if s.Chunk(0, 0).Modified() {
		t.Fatalf("dark removal must not mark the chunk")
	}
}
