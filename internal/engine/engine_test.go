package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/content"
	"voxelight.ai/internal/lighting"
	"voxelight.ai/internal/persistence/sqlitestore"
	"voxelight.ai/internal/voxel"
)

type flat struct{ stone voxel.BlockID }

func (f flat) Fill(ch *voxel.Chunk) {
	d := ch.Dims
	for i := range ch.Voxels {
		if _, y, _ := d.Unindex(i); y < 4 {
			ch.Voxels[i].ID = f.stone
		}
	}
	ch.SetModified(true)
}

func newEngine(t *testing.T) (*Engine, *chunks.Storage, *content.Registry) {
	t.Helper()
	reg := content.Default()
	s := chunks.New(chunks.Config{Dims: voxel.Dims{W: 8, H: 16, D: 8}, Content: reg})
	e := New(Config{
		Storage:      s,
		Lighting:     lighting.New(reg, s, nil),
		Gen:          flat{stone: reg.MustID("STONE")},
		Tick:         time.Millisecond,
		UnloadBudget: time.Second,
	})
	return e, s, reg
}

func TestHoldLoadsAndLightsArea(t *testing.T) {
	e, s, _ := newEngine(t)
	if n := e.Hold(0, 0, 1); n != 9 {
		t.Fatalf("loaded %d chunks, want 9", n)
	}
	for _, k := range s.LoadedChunkKeys() {
		ch := s.Chunk(k.CX, k.CZ)
		if !ch.Ready() || ch.Uses() != 1 {
			t.Fatalf("chunk %s: ready=%v uses=%d", k, ch.Ready(), ch.Uses())
		}
	}
	if got := s.Light(1, 10, 1, voxel.ChannelS); got != voxel.MaxLight {
		t.Fatalf("open sky: got %d", got)
	}
	if got := s.Light(1, 2, 1, voxel.ChannelS); got != 0 {
		t.Fatalf("inside stone: got %d", got)
	}
	if n := e.Hold(0, 0, 1); n != 0 {
		t.Fatalf("second hold loaded %d", n)
	}
}

func TestMovingHoldReleasesAndStepEvicts(t *testing.T) {
	e, s, _ := newEngine(t)
	e.Hold(0, 0, 1)
	e.Hold(10, 10, 1)
	if s.Len() != 18 {
		t.Fatalf("resident: got %d want 18", s.Len())
	}
	if n := e.Step(); n != 9 {
		t.Fatalf("evicted %d, want 9", n)
	}
	if s.Chunk(0, 0) != nil || s.Chunk(10, 10) == nil {
		t.Fatalf("wrong chunks evicted")
	}
}

func TestSetBlockRelights(t *testing.T) {
	e, s, reg := newEngine(t)
	e.Hold(0, 0, 0)
	glow := reg.MustID("GLOWSTONE")
	if err := e.SetBlock(3, 6, 3, glow); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	if got := s.Light(3, 6, 5, voxel.ChannelR); got != 13 {
		t.Fatalf("red near glowstone: got %d want 13", got)
	}
	if err := e.SetBlock(100, 6, 3, glow); !errors.Is(err, lighting.ErrNoChunk) {
		t.Fatalf("expected ErrNoChunk, got %v", err)
	}
}

func TestRunSavesOnCancel(t *testing.T) {
	e, _, _ := newEngine(t)
	e.Hold(0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestEvictedChunksReloadFromProvider(t *testing.T) {
	reg := content.Default()
	db, err := sqlitestore.Open(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	s := chunks.New(chunks.Config{Dims: voxel.Dims{W: 8, H: 16, D: 8}, Content: reg, Provider: db})
	e := New(Config{
		Storage:      s,
		Lighting:     lighting.New(reg, s, nil),
		Gen:          flat{stone: reg.MustID("STONE")},
		UnloadBudget: time.Second,
	})
	e.Hold(0, 0, 0)
	lamp := reg.MustID("RED_LAMP")
	if err := e.SetBlock(4, 8, 4, lamp); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}

	e.Hold(50, 50, 0)
	if n := e.Step(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if s.Chunk(0, 0) != nil {
		t.Fatalf("chunk still resident")
	}

	e.Hold(0, 0, 0)
	ch := s.Chunk(0, 0)
	if !ch.Loaded() || !ch.LoadedLights() {
		t.Fatalf("reloaded chunk: loaded=%v lights=%v", ch.Loaded(), ch.LoadedLights())
	}
	if got := ch.Get(4, 8, 4).ID; got != lamp {
		t.Fatalf("block not persisted: %d", got)
	}
	if got := s.Light(4, 8, 6, voxel.ChannelR); got != 13 {
		t.Fatalf("persisted light: got %d want 13", got)
	}
	if got := s.Light(1, 12, 1, voxel.ChannelS); got != voxel.MaxLight {
		t.Fatalf("persisted sky: got %d", got)
	}
}
