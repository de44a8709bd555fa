package voxel

import (
	"errors"
	"testing"
)

func TestToLocalNegativeCoordinates(t *testing.T) {
	d := Dims{W: 16, H: 16, D: 16}
	k, lx, ly, lz := d.ToLocal(-1, 5, -17)
	if k != (ChunkKey{CX: -1, CZ: -2}) {
		t.Fatalf("key: got %v", k)
	}
	if lx != 15 || ly != 5 || lz != 15 {
		t.Fatalf("local: got %d,%d,%d", lx, ly, lz)
	}
	x, y, z := d.ToWorld(k, lx, ly, lz)
	if x != -1 || y != 5 || z != -17 {
		t.Fatalf("round trip: got %d,%d,%d", x, y, z)
	}
}

func TestIndexUnindex(t *testing.T) {
	d := Dims{W: 4, H: 3, D: 5}
	seen := map[int]bool{}
	for y := 0; y < d.H; y++ {
		for z := 0; z < d.D; z++ {
			for x := 0; x < d.W; x++ {
				i := d.Index(x, y, z)
				if seen[i] {
					t.Fatalf("index %d reused", i)
				}
				seen[i] = true
				gx, gy, gz := d.Unindex(i)
				if gx != x || gy != y || gz != z {
					t.Fatalf("unindex(%d) = %d,%d,%d want %d,%d,%d", i, gx, gy, gz, x, y, z)
				}
			}
		}
	}
	if len(seen) != d.Volume() {
		t.Fatalf("expected %d indices, got %d", d.Volume(), len(seen))
	}
}

func TestLightChannelsAreIndependent(t *testing.T) {
	m := NewLightmap(Dims{W: 2, H: 2, D: 2})
	m.Set(1, 1, 1, ChannelR, 15)
	m.Set(1, 1, 1, ChannelS, 7)
	m.Set(1, 1, 1, ChannelG, 3)
	m.Set(1, 1, 1, ChannelR, 4)

	if got := m.Get(1, 1, 1, ChannelR); got != 4 {
		t.Fatalf("R: got %d", got)
	}
	if got := m.Get(1, 1, 1, ChannelG); got != 3 {
		t.Fatalf("G: got %d", got)
	}
	if got := m.Get(1, 1, 1, ChannelB); got != 0 {
		t.Fatalf("B: got %d", got)
	}
	if got := m.Get(1, 1, 1, ChannelS); got != 7 {
		t.Fatalf("S: got %d", got)
	}
	if got := m.Get(0, 1, 1, ChannelR); got != 0 {
		t.Fatalf("neighbour leaked: %d", got)
	}
	if l := Combine(1, 2, 3, 4); Extract(l, 0) != 1 || Extract(l, 1) != 2 || Extract(l, 2) != 3 || Extract(l, 3) != 4 {
		t.Fatalf("combine/extract mismatch: %04x", uint16(l))
	}
}

func TestChunkBlobs(t *testing.T) {
	d := Dims{W: 4, H: 4, D: 4}
	src := NewChunk(ChunkKey{CX: 2, CZ: -3}, d)
	src.Set(1, 2, 3, 700)
	src.Get(0, 0, 0).States = 9
	src.Lightmap.Set(3, 3, 3, ChannelB, 12)

	dst := NewChunk(src.Key, d)
	if err := dst.Decode(src.Encode()); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := dst.Lightmap.Decode(src.Lightmap.Encode()); err != nil {
		t.Fatalf("decode lights: %v", err)
	}
	if dst.Get(1, 2, 3).ID != 700 || dst.Get(0, 0, 0).States != 9 {
		t.Fatalf("voxels not restored")
	}
	if dst.Lightmap.Get(3, 3, 3, ChannelB) != 12 {
		t.Fatalf("lights not restored")
	}
	if err := dst.Decode([]byte{1, 2, 3}); !errors.Is(err, ErrBadBlob) {
		t.Fatalf("expected ErrBadBlob, got %v", err)
	}
}

func TestChunkUsesNeverNegative(t *testing.T) {
	c := NewChunk(ChunkKey{}, Dims{W: 1, H: 1, D: 1})
	c.Acquire()
	c.Release()
	if n := c.Release(); n != 0 {
		t.Fatalf("uses went to %d", n)
	}
	if c.Top() != -1 {
		t.Fatalf("empty chunk top: %d", c.Top())
	}
}

func TestSetLightsCopiesAndSetAtPacks(t *testing.T) {
	d := Dims{W: 2, H: 2, D: 2}
	src := make([]Light, d.Volume())
	src[d.Index(1, 0, 1)] = Combine(5, 0, 0, 15)
	m := NewLightmap(d)
	m.SetLights(src)
	src[d.Index(1, 0, 1)] = 0
	if got := m.Get(1, 0, 1, ChannelS); got != 15 {
		t.Fatalf("S after SetLights: got %d", got)
	}
	m.SetAt(d.Index(1, 0, 1), ChannelG, 9)
	if l := m.At(d.Index(1, 0, 1)); Extract(l, 0) != 5 || Extract(l, 1) != 9 || Extract(l, 3) != 15 {
		t.Fatalf("SetAt clobbered channels: %04x", uint16(l))
	}
}
