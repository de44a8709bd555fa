// Package engine drives chunk residency and lighting from a single loop.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/lighting"
	"voxelight.ai/internal/voxel"
)

// Generator fills a chunk that has nothing persisted.
type Generator interface {
	Fill(ch *voxel.Chunk)
}

type Config struct {
	Storage  *chunks.Storage
	Lighting *lighting.Lighting
	Gen      Generator
	Logger   *log.Logger

	Tick         time.Duration
	UnloadBudget time.Duration
}

// Engine is not safe for concurrent use. Run owns it once started.
type Engine struct {
	storage  *chunks.Storage
	lighting *lighting.Lighting
	gen      Generator
	log      *log.Logger

	tick   time.Duration
	budget time.Duration

	held map[voxel.ChunkKey]*voxel.Chunk
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 50 * time.Millisecond
	}
	if cfg.UnloadBudget <= 0 {
		cfg.UnloadBudget = time.Millisecond
	}
	return &Engine{
		storage:  cfg.Storage,
		lighting: cfg.Lighting,
		gen:      cfg.Gen,
		log:      cfg.Logger,
		tick:     cfg.Tick,
		budget:   cfg.UnloadBudget,
		held:     map[voxel.ChunkKey]*voxel.Chunk{},
	}
}

// Load makes the chunk resident and lit. Chunks without persisted voxels
// are generated; chunks without persisted lights get sky light built.
// Light is stitched across borders with every resident neighbour.
func (e *Engine) Load(cx, cz int32) *voxel.Chunk {
	if ch := e.storage.Chunk(cx, cz); ch != nil && ch.Ready() {
		return ch
	}
	ch := e.storage.Create(cx, cz)
	if !ch.Loaded() && e.gen != nil {
		e.gen.Fill(ch)
		ch.SetLoadedLights(false)
		ch.Lightmap.Clear()
	}
	if !ch.LoadedLights() {
		e.lighting.PrebuildSkyLight(ch)
		e.lighting.BuildSkyLight(cx, cz)
	}
	e.lighting.OnChunkLoaded(cx, cz, true)
	ch.SetReady(true)
	return ch
}

// Hold keeps every chunk within radius of the centre chunk resident and
// releases chunks held by a previous call that fell outside.
func (e *Engine) Hold(cx, cz int32, radius int) int {
	want := make(map[voxel.ChunkKey]bool, (2*radius+1)*(2*radius+1))
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			want[voxel.ChunkKey{CX: cx + int32(dx), CZ: cz + int32(dz)}] = true
		}
	}
	for k, ch := range e.held {
		if !want[k] {
			ch.Release()
			delete(e.held, k)
		}
	}
	loaded := 0
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			k := voxel.ChunkKey{CX: cx + int32(dx), CZ: cz + int32(dz)}
			if _, ok := e.held[k]; ok {
				continue
			}
			ch := e.Load(k.CX, k.CZ)
			ch.Acquire()
			e.held[k] = ch
			loaded++
		}
	}
	return loaded
}

func (e *Engine) SetBlock(x, y, z int, id voxel.BlockID) error {
	if !e.storage.SetVoxel(x, y, z, id) {
		return fmt.Errorf("set block %d,%d,%d: %w", x, y, z, lighting.ErrNoChunk)
	}
	e.lighting.OnBlockSet(x, y, z, id)
	return nil
}

// Step runs one budgeted eviction pass.
func (e *Engine) Step() int {
	n := e.storage.UnloadUnused(e.budget)
	if n > 0 {
		e.log.Printf("evicted %d chunks, %d resident", n, e.storage.Len())
	}
	return n
}

// Run steps every tick until ctx is done, then saves all resident chunks.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return e.storage.Save()
		case <-t.C:
			e.Step()
		}
	}
}
