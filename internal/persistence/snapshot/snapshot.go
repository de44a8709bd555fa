// Package snapshot writes resident chunks, with their lights, to a single
// zstd compressed file.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"voxelight.ai/internal/voxel"
)

const Version = 1

type Header struct {
	Version       int    `json:"version"`
	ChunkSize     [3]int `json:"chunk_size"`
	PaletteDigest string `json:"palette_digest"`
	Chunks        int    `json:"chunks"`
}

type ChunkV1 struct {
	CX, CZ int32
	Voxels []byte
	Lights []byte
}

type SnapshotV1 struct {
	Header Header
	Chunks []ChunkV1
}

func (s SnapshotV1) Dims() voxel.Dims {
	return voxel.Dims{W: s.Header.ChunkSize[0], H: s.Header.ChunkSize[1], D: s.Header.ChunkSize[2]}
}

// Capture encodes chunks in key order.
func Capture(d voxel.Dims, paletteDigest string, chunks []*voxel.Chunk) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:       Version,
			ChunkSize:     [3]int{d.W, d.H, d.D},
			PaletteDigest: paletteDigest,
			Chunks:        len(chunks),
		},
		Chunks: make([]ChunkV1, 0, len(chunks)),
	}
	for _, ch := range chunks {
		snap.Chunks = append(snap.Chunks, ChunkV1{
			CX:     ch.Key.CX,
			CZ:     ch.Key.CZ,
			Voxels: ch.Encode(),
			Lights: ch.Lightmap.Encode(),
		})
	}
	sort.Slice(snap.Chunks, func(i, j int) bool {
		a, b := snap.Chunks[i], snap.Chunks[j]
		if a.CX != b.CX {
			return a.CX < b.CX
		}
		return a.CZ < b.CZ
	})
	return snap
}

// Restore decodes every chunk. Decoded chunks are marked loaded.
func (s SnapshotV1) Restore() ([]*voxel.Chunk, error) {
	d := s.Dims()
	if !d.Valid() {
		return nil, fmt.Errorf("snapshot: bad chunk size %v", s.Header.ChunkSize)
	}
	out := make([]*voxel.Chunk, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		ch := voxel.NewChunk(voxel.ChunkKey{CX: c.CX, CZ: c.CZ}, d)
		if err := ch.Decode(c.Voxels); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.Key, err)
		}
		if err := ch.Lightmap.Decode(c.Lights); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.Key, err)
		}
		ch.SetLoaded(true)
		ch.SetLoadedLights(true)
		out = append(out, ch)
	}
	return out, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	// Header line first so tools can peek without decoding the body.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
