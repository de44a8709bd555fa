package events

import (
	"testing"

	"voxelight.ai/internal/voxel"
)

func TestBusDeliversInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Listen(ChunkLoaded, func(k Kind, ch *voxel.Chunk) { got = append(got, "a:"+k.String()+":"+ch.Key.String()) })
	b.ListenAll(func(k Kind, ch *voxel.Chunk) { got = append(got, "b:"+k.String()) })

	ch := voxel.NewChunk(voxel.ChunkKey{CX: 1, CZ: 2}, voxel.Dims{W: 1, H: 1, D: 1})
	b.Trigger(ChunkLoaded, ch)
	b.Trigger(ChunkHidden, ch)

	want := []string{"a:CHUNK_LOADED:1x2", "b:CHUNK_LOADED", "b:CHUNK_HIDDEN"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestNilBusIsSilent(t *testing.T) {
	var b *Bus
	b.Trigger(ChunkLoaded, nil)
}
