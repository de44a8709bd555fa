package voxel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

type BlockID uint16

const (
	BlockAir BlockID = 0
	// BlockVoid marks space that is not backed by a resident chunk.
	BlockVoid BlockID = math.MaxUint16
)

var ErrBadBlob = errors.New("voxel: bad blob")

type Voxel struct {
	ID     BlockID
	States uint8
}

type Slot struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type Inventory struct {
	ID    int64  `json:"id"`
	Slots []Slot `json:"slots"`
}

type Chunk struct {
	Key      ChunkKey
	Dims     Dims
	Voxels   []Voxel
	Lightmap *Lightmap

	// Inventories are keyed by local voxel index.
	Inventories map[uint32]*Inventory

	modified     bool
	loaded       bool
	loadedLights bool
	ready        bool

	uses atomic.Int32
}

func NewChunk(k ChunkKey, d Dims) *Chunk {
	return &Chunk{
		Key:      k,
		Dims:     d,
		Voxels:   make([]Voxel, d.Volume()),
		Lightmap: NewLightmap(d),
	}
}

func (c *Chunk) Get(lx, ly, lz int) *Voxel {
	return &c.Voxels[c.Dims.Index(lx, ly, lz)]
}

func (c *Chunk) Set(lx, ly, lz int, id BlockID) {
	v := &c.Voxels[c.Dims.Index(lx, ly, lz)]
	if v.ID == id {
		return
	}
	v.ID = id
	v.States = 0
	c.modified = true
}

func (c *Chunk) Modified() bool         { return c.modified }
func (c *Chunk) SetModified(v bool)     { c.modified = v }
func (c *Chunk) Loaded() bool           { return c.loaded }
func (c *Chunk) SetLoaded(v bool)       { c.loaded = v }
func (c *Chunk) LoadedLights() bool     { return c.loadedLights }
func (c *Chunk) SetLoadedLights(v bool) { c.loadedLights = v }
func (c *Chunk) Ready() bool            { return c.ready }
func (c *Chunk) SetReady(v bool)        { c.ready = v }

// Acquire marks the chunk as held by a subsystem outside the storage.
// Held chunks are never evicted.
func (c *Chunk) Acquire() int32 { return c.uses.Add(1) }

func (c *Chunk) Release() int32 {
	n := c.uses.Add(-1)
	if n < 0 {
		c.uses.Store(0)
		return 0
	}
	return n
}

func (c *Chunk) Uses() int32 { return c.uses.Load() }

// Top returns the highest y holding a non-air block, or -1 for an empty chunk.
func (c *Chunk) Top() int {
	area := c.Dims.W * c.Dims.D
	for i := len(c.Voxels) - 1; i >= 0; i-- {
		if c.Voxels[i].ID != BlockAir {
			return i / area
		}
	}
	return -1
}

// SetInventories attaches persisted block inventories.
func (c *Chunk) SetInventories(invs map[uint32]*Inventory) {
	c.Inventories = invs
}

const voxelBlobStride = 3

// Encode produces the voxel blob: u16 id + u8 states per voxel, little endian.
func (c *Chunk) Encode() []byte {
	out := make([]byte, len(c.Voxels)*voxelBlobStride)
	for i, v := range c.Voxels {
		binary.LittleEndian.PutUint16(out[i*voxelBlobStride:], uint16(v.ID))
		out[i*voxelBlobStride+2] = v.States
	}
	return out
}

func (c *Chunk) Decode(b []byte) error {
	if len(b) != len(c.Voxels)*voxelBlobStride {
		return fmt.Errorf("%w: chunk %s length %d want %d", ErrBadBlob, c.Key, len(b), len(c.Voxels)*voxelBlobStride)
	}
	for i := range c.Voxels {
		c.Voxels[i] = Voxel{
			ID:     BlockID(binary.LittleEndian.Uint16(b[i*voxelBlobStride:])),
			States: b[i*voxelBlobStride+2],
		}
	}
	return nil
}
