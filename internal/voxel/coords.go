package voxel

import "fmt"

type ChunkKey struct {
	CX int32
	CZ int32
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%dx%d", k.CX, k.CZ)
}

// Dims is the size of one chunk column. H spans the whole world height.
type Dims struct {
	W int
	H int
	D int
}

func DefaultDims() Dims {
	return Dims{W: 16, H: 256, D: 16}
}

func (d Dims) Volume() int {
	return d.W * d.H * d.D
}

func (d Dims) Valid() bool {
	return d.W > 0 && d.H > 0 && d.D > 0
}

// ToChunk maps world x/z to the chunk column containing them.
func (d Dims) ToChunk(x, z int) ChunkKey {
	return ChunkKey{CX: int32(FloorDiv(x, d.W)), CZ: int32(FloorDiv(z, d.D))}
}

// ToLocal is the one place world coordinates become chunk-local ones.
func (d Dims) ToLocal(x, y, z int) (k ChunkKey, lx, ly, lz int) {
	k = d.ToChunk(x, z)
	return k, x - int(k.CX)*d.W, y, z - int(k.CZ)*d.D
}

// ToWorld is the inverse of ToLocal.
func (d Dims) ToWorld(k ChunkKey, lx, ly, lz int) (x, y, z int) {
	return int(k.CX)*d.W + lx, ly, int(k.CZ)*d.D + lz
}

func (d Dims) InHeight(y int) bool {
	return y >= 0 && y < d.H
}

// Index linearizes local coordinates: x fastest, then z, then y.
func (d Dims) Index(lx, ly, lz int) int {
	return (ly*d.D+lz)*d.W + lx
}

// Unindex is the inverse of Index.
func (d Dims) Unindex(i int) (lx, ly, lz int) {
	lx = i % d.W
	lz = (i / d.W) % d.D
	ly = i / (d.W * d.D)
	return
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
