package events

import "voxelight.ai/internal/voxel"

type Kind int

const (
	ChunkLoaded Kind = iota + 1
	ChunkHidden
)

func (k Kind) String() string {
	switch k {
	case ChunkLoaded:
		return "CHUNK_LOADED"
	case ChunkHidden:
		return "CHUNK_HIDDEN"
	default:
		return "UNKNOWN"
	}
}

type Handler func(k Kind, ch *voxel.Chunk)

// Bus delivers chunk notifications synchronously, in registration order.
// Handlers must not block the caller's loop.
type Bus struct {
	handlers map[Kind][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: map[Kind][]Handler{}}
}

func (b *Bus) Listen(k Kind, h Handler) {
	b.handlers[k] = append(b.handlers[k], h)
}

// ListenAll registers h for every chunk event kind.
func (b *Bus) ListenAll(h Handler) {
	b.Listen(ChunkLoaded, h)
	b.Listen(ChunkHidden, h)
}

func (b *Bus) Trigger(k Kind, ch *voxel.Chunk) {
	if b == nil {
		return
	}
	for _, h := range b.handlers[k] {
		h(k, ch)
	}
}
