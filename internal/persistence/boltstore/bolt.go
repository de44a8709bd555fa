// Package boltstore is a bolt-backed chunk provider. Each blob kind lives in
// its own bucket keyed by the little-endian chunk coordinates.
package boltstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"voxelight.ai/internal/persistence/blob"
	"voxelight.ai/internal/voxel"
)

var (
	chunkBucket     = []byte("chunk")
	lightBucket     = []byte("light")
	inventoryBucket = []byte("inventory")
)

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{chunkBucket, lightBucket, inventoryBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func encodeKey(k voxel.ChunkKey) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, [...]int32{k.CX, k.CZ})
	return buf.Bytes()
}

func decodeKey(b []byte) voxel.ChunkKey {
	var v [2]int32
	binary.Read(bytes.NewReader(b), binary.LittleEndian, &v)
	return voxel.ChunkKey{CX: v[0], CZ: v[1]}
}

// get copies the value out; bolt memory is only valid inside the tx.
func (s *Store) get(bucket []byte, k voxel.ChunkKey) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(encodeKey(k)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) put(bucket []byte, k voxel.ChunkKey, v []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(encodeKey(k), v)
	})
}

func (s *Store) ChunkBlob(k voxel.ChunkKey) ([]byte, error) {
	b, err := s.get(chunkBucket, k)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", k, err)
	}
	return blob.Decompress(b)
}

func (s *Store) LightBlob(k voxel.ChunkKey) ([]byte, error) {
	b, err := s.get(lightBucket, k)
	if err != nil {
		return nil, fmt.Errorf("light %s: %w", k, err)
	}
	return blob.Decompress(b)
}

func (s *Store) PutChunkBlob(k voxel.ChunkKey, b []byte) error {
	c, err := blob.Compress(b)
	if err != nil {
		return err
	}
	return s.put(chunkBucket, k, c)
}

func (s *Store) PutLightBlob(k voxel.ChunkKey, b []byte) error {
	c, err := blob.Compress(b)
	if err != nil {
		return err
	}
	return s.put(lightBucket, k, c)
}

func (s *Store) FetchInventories(k voxel.ChunkKey) (map[uint32]*voxel.Inventory, error) {
	b, err := s.get(inventoryBucket, k)
	if err != nil || b == nil {
		return nil, err
	}
	var invs map[uint32]*voxel.Inventory
	if err := json.Unmarshal(b, &invs); err != nil {
		return nil, fmt.Errorf("inventories %s: %w", k, err)
	}
	return invs, nil
}

func (s *Store) StoreInventories(k voxel.ChunkKey, invs map[uint32]*voxel.Inventory) error {
	if len(invs) == 0 {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(inventoryBucket).Delete(encodeKey(k))
		})
	}
	b, err := json.Marshal(invs)
	if err != nil {
		return err
	}
	return s.put(inventoryBucket, k, b)
}

// RangeChunks calls f for every persisted chunk key in storage order.
func (s *Store) RangeChunks(f func(k voxel.ChunkKey, size int)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(chunkBucket).ForEach(func(k, v []byte) error {
			f(decodeKey(k), len(v))
			return nil
		})
	})
}
