package voxel

import (
	"encoding/binary"
	"fmt"
)

// Light packs four 4-bit channels: R in the low nibble, then G, B and sky.
type Light uint16

const (
	ChannelR = 0
	ChannelG = 1
	ChannelB = 2
	ChannelS = 3

	Channels = 4
	MaxLight = 15
)

func Extract(l Light, ch int) int {
	return int(l>>(uint(ch)<<2)) & 0xF
}

func Combine(r, g, b, s int) Light {
	return Light(r&0xF) | Light(g&0xF)<<4 | Light(b&0xF)<<8 | Light(s&0xF)<<12
}

func (l Light) With(ch, v int) Light {
	shift := uint(ch) << 2
	return l&^(0xF<<shift) | Light(v&0xF)<<shift
}

type Lightmap struct {
	dims   Dims
	lights []Light

	// Highest is the topmost y that was touched by the sky prebuild.
	Highest int
}

func NewLightmap(d Dims) *Lightmap {
	return &Lightmap{dims: d, lights: make([]Light, d.Volume())}
}

func (m *Lightmap) Get(lx, ly, lz, ch int) int {
	return Extract(m.lights[m.dims.Index(lx, ly, lz)], ch)
}

func (m *Lightmap) Set(lx, ly, lz, ch, v int) {
	i := m.dims.Index(lx, ly, lz)
	m.lights[i] = m.lights[i].With(ch, v)
}

func (m *Lightmap) At(i int) Light {
	return m.lights[i]
}

func (m *Lightmap) SetAt(i, ch, v int) {
	m.lights[i] = m.lights[i].With(ch, v)
}

func (m *Lightmap) Lights() []Light {
	return m.lights
}

// SetLights copies src in; it must cover the whole chunk.
func (m *Lightmap) SetLights(src []Light) {
	copy(m.lights, src)
}

func (m *Lightmap) Clear() {
	for i := range m.lights {
		m.lights[i] = 0
	}
	m.Highest = 0
}

func (m *Lightmap) Encode() []byte {
	out := make([]byte, len(m.lights)*2)
	for i, l := range m.lights {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(l))
	}
	return out
}

func (m *Lightmap) Decode(b []byte) error {
	if len(b) != len(m.lights)*2 {
		return fmt.Errorf("%w: lightmap length %d want %d", ErrBadBlob, len(b), len(m.lights)*2)
	}
	for i := range m.lights {
		m.lights[i] = Light(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return nil
}
