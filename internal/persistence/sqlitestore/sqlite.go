// Package sqlitestore keeps chunk, light and inventory blobs in a single
// SQLite file.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"voxelight.ai/internal/persistence/blob"
	"voxelight.ai/internal/voxel"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS lights (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS inventories (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ChunkBlob(k voxel.ChunkKey) ([]byte, error) { return s.readBlob("chunks", k) }
func (s *Store) LightBlob(k voxel.ChunkKey) ([]byte, error) { return s.readBlob("lights", k) }

func (s *Store) PutChunkBlob(k voxel.ChunkKey, b []byte) error { return s.writeBlob("chunks", k, b) }
func (s *Store) PutLightBlob(k voxel.ChunkKey, b []byte) error { return s.writeBlob("lights", k, b) }

func (s *Store) readBlob(table string, k voxel.ChunkKey) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM `+table+` WHERE cx=? AND cz=?`, k.CX, k.CZ).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", table, k, err)
	}
	return blob.Decompress(data)
}

func (s *Store) writeBlob(table string, k voxel.ChunkKey, b []byte) error {
	data, err := blob.Compress(b)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO `+table+`(cx,cz,data) VALUES(?,?,?)
		 ON CONFLICT(cx,cz) DO UPDATE SET data=excluded.data`,
		k.CX, k.CZ, data,
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", table, k, err)
	}
	return nil
}

func (s *Store) FetchInventories(k voxel.ChunkKey) (map[uint32]*voxel.Inventory, error) {
	var raw string
	err := s.db.QueryRow(`SELECT json FROM inventories WHERE cx=? AND cz=?`, k.CX, k.CZ).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventories %s: %w", k, err)
	}
	var invs map[uint32]*voxel.Inventory
	if err := json.Unmarshal([]byte(raw), &invs); err != nil {
		return nil, fmt.Errorf("inventories %s: %w", k, err)
	}
	return invs, nil
}

// StoreInventories deletes the row when the chunk holds no inventories.
func (s *Store) StoreInventories(k voxel.ChunkKey, invs map[uint32]*voxel.Inventory) error {
	if len(invs) == 0 {
		_, err := s.db.Exec(`DELETE FROM inventories WHERE cx=? AND cz=?`, k.CX, k.CZ)
		return err
	}
	b, err := json.Marshal(invs)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO inventories(cx,cz,json) VALUES(?,?,?)
		 ON CONFLICT(cx,cz) DO UPDATE SET json=excluded.json`,
		k.CX, k.CZ, string(b),
	)
	if err != nil {
		return fmt.Errorf("inventories %s: %w", k, err)
	}
	return nil
}

// Stats reports row counts and stored (compressed) bytes.
type Stats struct {
	Chunks int
	Bytes  int64
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(data)),0) FROM chunks`)
	if err := row.Scan(&st.Chunks, &st.Bytes); err != nil {
		return Stats{}, err
	}
	var lb int64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(data)),0) FROM lights`).Scan(&lb); err != nil {
		return Stats{}, err
	}
	st.Bytes += lb
	return st, nil
}
