// Package log journals chunk lifecycle events and block repairs as
// compressed JSON lines.
package log

import (
	stdlog "log"
	"path/filepath"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/events"
	"voxelight.ai/internal/voxel"
)

type Entry struct {
	Kind     string         `json:"kind"`
	Chunk    voxel.ChunkKey `json:"chunk"`
	Modified bool           `json:"modified,omitempty"`
	Repair   *chunks.Repair `json:"repair,omitempty"`
}

// Journal writes to <dir>/journal/journal-<hour>.jsonl.zst. Write failures
// are reported to the logger and otherwise ignored.
type Journal struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger
}

func NewJournal(dir string, logger *stdlog.Logger) *Journal {
	return &Journal{
		w:   NewJSONLZstdWriter(filepath.Join(dir, "journal"), "journal"),
		log: logger,
	}
}

// Attach subscribes the journal to every chunk event on bus.
func (j *Journal) Attach(bus *events.Bus) {
	bus.ListenAll(func(k events.Kind, ch *voxel.Chunk) {
		j.write(Entry{Kind: k.String(), Chunk: ch.Key, Modified: ch.Modified()})
	})
}

func (j *Journal) RecordRepair(r chunks.Repair) {
	j.write(Entry{Kind: "BLOCK_REPAIRED", Chunk: r.Chunk, Repair: &r})
}

func (j *Journal) write(e Entry) {
	if err := j.w.Write(e); err != nil && j.log != nil {
		j.log.Printf("journal: %v", err)
	}
}

func (j *Journal) Close() error { return j.w.Close() }
