package chunks

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"voxelight.ai/internal/events"
	"voxelight.ai/internal/voxel"
)

// Provider persists chunk blobs. Missing data is reported as (nil, nil).
type Provider interface {
	ChunkBlob(k voxel.ChunkKey) ([]byte, error)
	PutChunkBlob(k voxel.ChunkKey, b []byte) error
	LightBlob(k voxel.ChunkKey) ([]byte, error)
	PutLightBlob(k voxel.ChunkKey, b []byte) error
	FetchInventories(k voxel.ChunkKey) (map[uint32]*voxel.Inventory, error)
	StoreInventories(k voxel.ChunkKey, invs map[uint32]*voxel.Inventory) error
}

type Content interface {
	Known(id voxel.BlockID) bool
	LightPassing(id voxel.BlockID) bool
	Fallback() voxel.BlockID
}

// InventoryIndex receives inventories attached to freshly loaded chunks.
type InventoryIndex interface {
	Store(inv *voxel.Inventory)
}

type Repair struct {
	Chunk voxel.ChunkKey `json:"chunk"`
	Index int            `json:"index"`
	From  voxel.BlockID  `json:"from"`
	To    voxel.BlockID  `json:"to"`
}

type RepairSink interface {
	RecordRepair(r Repair)
}

type Config struct {
	Dims    voxel.Dims
	Content Content

	// Optional collaborators.
	Provider    Provider
	Events      *events.Bus
	Inventories InventoryIndex
	Repairs     RepairSink
	Logger      *log.Logger
	Now         func() time.Time
}

// Storage is the authoritative index of resident chunks.
// It is not safe for concurrent use; the owning loop serializes access.
type Storage struct {
	dims        voxel.Dims
	content     Content
	provider    Provider
	events      *events.Bus
	inventories InventoryIndex
	repairs     RepairSink
	log         *log.Logger
	now         func() time.Time

	chunks map[voxel.ChunkKey]*voxel.Chunk

	// Eviction resumes after the last key it visited.
	cursor    voxel.ChunkKey
	hasCursor bool
}

func New(cfg Config) *Storage {
	if !cfg.Dims.Valid() {
		cfg.Dims = voxel.DefaultDims()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Storage{
		dims:        cfg.Dims,
		content:     cfg.Content,
		provider:    cfg.Provider,
		events:      cfg.Events,
		inventories: cfg.Inventories,
		repairs:     cfg.Repairs,
		log:         cfg.Logger,
		now:         cfg.Now,
		chunks:      map[voxel.ChunkKey]*voxel.Chunk{},
	}
}

func (s *Storage) Dims() voxel.Dims { return s.dims }
func (s *Storage) Len() int         { return len(s.chunks) }

func (s *Storage) LoadedChunkKeys() []voxel.ChunkKey {
	keys := make([]voxel.ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

func keyLess(a, b voxel.ChunkKey) bool {
	if a.CX != b.CX {
		return a.CX < b.CX
	}
	return a.CZ < b.CZ
}

// Store inserts or replaces the chunk at its key and publishes ChunkLoaded.
func (s *Storage) Store(ch *voxel.Chunk) {
	s.chunks[ch.Key] = ch
	s.events.Trigger(events.ChunkLoaded, ch)
}

// Remove drops the map entry only; it neither persists nor publishes.
func (s *Storage) Remove(cx, cz int32) {
	delete(s.chunks, voxel.ChunkKey{CX: cx, CZ: cz})
}

func (s *Storage) Chunk(cx, cz int32) *voxel.Chunk {
	return s.chunks[voxel.ChunkKey{CX: cx, CZ: cz}]
}

// ChunkByVoxel returns nil when y is outside the world height or the
// covering chunk is not resident.
func (s *Storage) ChunkByVoxel(x, y, z int) *voxel.Chunk {
	if !s.dims.InHeight(y) {
		return nil
	}
	return s.chunks[s.dims.ToChunk(x, z)]
}

func (s *Storage) Voxel(x, y, z int) *voxel.Voxel {
	ch := s.ChunkByVoxel(x, y, z)
	if ch == nil {
		return nil
	}
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	return ch.Get(lx, ly, lz)
}

// SetVoxel reports false when no resident chunk covers the position.
func (s *Storage) SetVoxel(x, y, z int, id voxel.BlockID) bool {
	ch := s.ChunkByVoxel(x, y, z)
	if ch == nil {
		return false
	}
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	ch.Set(lx, ly, lz, id)
	return true
}

func (s *Storage) Light(x, y, z, channel int) int {
	ch := s.ChunkByVoxel(x, y, z)
	if ch == nil {
		return 0
	}
	_, lx, ly, lz := s.dims.ToLocal(x, y, z)
	return ch.Lightmap.Get(lx, ly, lz, channel)
}

// Create returns the resident chunk or builds one from persisted data.
// A chunk with nothing persisted stays empty and unloaded for the generator.
func (s *Storage) Create(cx, cz int32) *voxel.Chunk {
	k := voxel.ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}

	ch := voxel.NewChunk(k, s.dims)
	s.Store(ch)
	if s.provider == nil {
		return ch
	}

	data, err := s.provider.ChunkBlob(k)
	switch {
	case err != nil:
		s.log.Printf("chunk %s: read voxels: %v", k, err)
	case data != nil:
		if err := ch.Decode(data); err != nil {
			s.log.Printf("chunk %s: %v", k, err)
			break
		}
		invs, err := s.provider.FetchInventories(k)
		if err != nil {
			s.log.Printf("chunk %s: read inventories: %v", k, err)
		}
		ch.SetInventories(invs)
		ch.SetLoaded(true)
		if s.inventories != nil {
			for _, inv := range invs {
				s.inventories.Store(inv)
			}
		}
		s.verify(ch)
	}

	lights, err := s.provider.LightBlob(k)
	switch {
	case err != nil:
		s.log.Printf("chunk %s: read lights: %v", k, err)
	case lights != nil:
		if err := ch.Lightmap.Decode(lights); err != nil {
			s.log.Printf("chunk %s: %v", k, err)
			break
		}
		ch.SetLoadedLights(true)
	}
	return ch
}

// verify replaces ids unknown to the content registry.
func (s *Storage) verify(ch *voxel.Chunk) {
	if s.content == nil {
		return
	}
	fallback := s.content.Fallback()
	for i := range ch.Voxels {
		id := ch.Voxels[i].ID
		if s.content.Known(id) {
			continue
		}
		s.log.Printf("corrupted block detected at %d of chunk %s -> %d", i, ch.Key, id)
		ch.Voxels[i].ID = fallback
		ch.SetModified(true)
		if s.repairs != nil {
			s.repairs.RecordRepair(Repair{Chunk: ch.Key, Index: i, From: id, To: fallback})
		}
	}
}

// GetVoxels fills vol from resident chunks. Space without a resident chunk,
// or outside the world height, reads as BlockVoid with no light.
// With backlight, colour channels of light-passing blocks are raised by one.
func (s *Storage) GetVoxels(vol *voxel.Volume, backlight bool) {
	x, y, z := vol.X, vol.Y, vol.Z
	w, h, d := vol.W, vol.H, vol.D
	cw, cd := s.dims.W, s.dims.D

	scx := voxel.FloorDiv(x, cw)
	scz := voxel.FloorDiv(z, cd)
	ecx := voxel.FloorDiv(x+w-1, cw)
	ecz := voxel.FloorDiv(z+d-1, cd)

	for cz := scz; cz <= ecz; cz++ {
		z0, z1 := max(z, cz*cd), min(z+d, (cz+1)*cd)
		for cx := scx; cx <= ecx; cx++ {
			x0, x1 := max(x, cx*cw), min(x+w, (cx+1)*cw)
			ch := s.chunks[voxel.ChunkKey{CX: int32(cx), CZ: int32(cz)}]
			for ly := y; ly < y+h; ly++ {
				for lz := z0; lz < z1; lz++ {
					for lx := x0; lx < x1; lx++ {
						vi := vol.Index(lx-x, ly-y, lz-z)
						if ch == nil || !s.dims.InHeight(ly) {
							vol.Voxels[vi] = voxel.Voxel{ID: voxel.BlockVoid}
							vol.Lights[vi] = 0
							continue
						}
						ci := s.dims.Index(lx-cx*cw, ly, lz-cz*cd)
						v := ch.Voxels[ci]
						vol.Voxels[vi] = v
						light := ch.Lightmap.At(ci)
						if backlight && s.content != nil && s.content.LightPassing(v.ID) {
							light = voxel.Combine(
								min(voxel.MaxLight, voxel.Extract(light, 0)+1),
								min(voxel.MaxLight, voxel.Extract(light, 1)+1),
								min(voxel.MaxLight, voxel.Extract(light, 2)+1),
								voxel.Extract(light, 3),
							)
						}
						vol.Lights[vi] = light
					}
				}
			}
		}
	}
}

// Save persists every resident chunk. It keeps going past failures and
// returns them joined.
func (s *Storage) Save() error {
	var errs []error
	for _, k := range s.LoadedChunkKeys() {
		if err := s.persist(s.chunks[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnloadUnused evicts chunks nobody holds, persisting each first. The scan
// runs in key order from where the previous call stopped and ends once the
// time spent would exceed budget. Returns the number of evicted chunks.
func (s *Storage) UnloadUnused(budget time.Duration) int {
	keys := s.LoadedChunkKeys()
	if len(keys) == 0 {
		return 0
	}
	start := 0
	if s.hasCursor {
		start = sort.Search(len(keys), func(i int) bool { return keyLess(s.cursor, keys[i]) })
	}

	var total time.Duration
	evicted := 0
	for n := 0; n < len(keys); n++ {
		k := keys[(start+n)%len(keys)]
		began := s.now()
		if ch := s.chunks[k]; ch.Uses() == 0 {
			if err := s.persist(ch); err != nil {
				s.log.Printf("chunk %s: keep resident: %v", k, err)
			} else {
				s.events.Trigger(events.ChunkHidden, ch)
				delete(s.chunks, k)
				evicted++
			}
		}
		s.cursor, s.hasCursor = k, true

		spent := s.now().Sub(began)
		if total+spent > budget {
			break
		}
		total += spent
	}
	return evicted
}

func (s *Storage) persist(ch *voxel.Chunk) error {
	if s.provider == nil || (!ch.Loaded() && !ch.Modified()) {
		return nil
	}
	if err := s.provider.PutChunkBlob(ch.Key, ch.Encode()); err != nil {
		return fmt.Errorf("chunk %s: write voxels: %w", ch.Key, err)
	}
	if err := s.provider.PutLightBlob(ch.Key, ch.Lightmap.Encode()); err != nil {
		return fmt.Errorf("chunk %s: write lights: %w", ch.Key, err)
	}
	if err := s.provider.StoreInventories(ch.Key, ch.Inventories); err != nil {
		return fmt.Errorf("chunk %s: write inventories: %w", ch.Key, err)
	}
	return nil
}
