package main

import (
	"fmt"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/persistence/boltstore"
	"voxelight.ai/internal/persistence/sqlitestore"
	"voxelight.ai/internal/tuning"
	"voxelight.ai/internal/voxel"
)

type runtimeProvider interface {
	chunks.Provider
	Close() error
	// Usage reports persisted chunk count and stored bytes.
	Usage() (int, int64, error)
}

type sqliteProvider struct{ *sqlitestore.Store }

func (p sqliteProvider) Usage() (int, int64, error) {
	st, err := p.Stats()
	return st.Chunks, st.Bytes, err
}

type boltProvider struct{ *boltstore.Store }

func (p boltProvider) Usage() (int, int64, error) {
	var (
		n     int
		bytes int64
	)
	err := p.RangeChunks(func(_ voxel.ChunkKey, size int) {
		n++
		bytes += int64(size)
	})
	return n, bytes, err
}

// openProvider returns nil for the in-memory backend.
func openProvider(sc tuning.StorageSpec) (runtimeProvider, error) {
	switch sc.Backend {
	case tuning.BackendMemory:
		return nil, nil
	case tuning.BackendSQLite:
		s, err := sqlitestore.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		return sqliteProvider{s}, nil
	case tuning.BackendBolt:
		s, err := boltstore.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		return boltProvider{s}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}
