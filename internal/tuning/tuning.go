package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxelight.ai/internal/voxel"
)

type Tuning struct {
	ChunkSize      []int `yaml:"chunk_size"`
	TickMs         int   `yaml:"tick_ms"`
	UnloadBudgetUs int   `yaml:"unload_budget_us"`
	LoadRadius     int   `yaml:"load_radius"`
	Seed           int64 `yaml:"seed"`

	Storage StorageSpec `yaml:"storage"`

	ContentPath  string `yaml:"content_path,omitempty"`
	JournalDir   string `yaml:"journal_dir,omitempty"`
	ObserverAddr string `yaml:"observer_addr,omitempty"`
}

type StorageSpec struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "none"
)

func Defaults() Tuning {
	return Tuning{
		ChunkSize:      []int{16, 256, 16},
		TickMs:         50,
		UnloadBudgetUs: 1000,
		LoadRadius:     4,
		Seed:           1337,
		Storage:        StorageSpec{Backend: BackendSQLite, Path: "data/chunks.db"},
		JournalDir:     "data",
		ObserverAddr:   "127.0.0.1:8090",
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Storage.Backend = strings.ToLower(strings.TrimSpace(t.Storage.Backend))
	if t.Storage.Backend == "" {
		t.Storage.Backend = BackendSQLite
	}
	if t.TickMs <= 0 {
		t.TickMs = 50
	}
	if t.LoadRadius < 0 {
		t.LoadRadius = 0
	}
}

func (t Tuning) Validate() error {
	if len(t.ChunkSize) != 3 {
		return fmt.Errorf("chunk_size must have 3 entries, got %d", len(t.ChunkSize))
	}
	if !t.Dims().Valid() {
		return fmt.Errorf("chunk_size entries must be > 0")
	}
	if t.UnloadBudgetUs <= 0 {
		return fmt.Errorf("unload_budget_us must be > 0")
	}
	switch t.Storage.Backend {
	case BackendSQLite, BackendBolt:
		if strings.TrimSpace(t.Storage.Path) == "" {
			return fmt.Errorf("storage.path must be set for backend %s", t.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend: %s", t.Storage.Backend)
	}
	return nil
}

func (t Tuning) Dims() voxel.Dims {
	if len(t.ChunkSize) != 3 {
		return voxel.Dims{}
	}
	return voxel.Dims{W: t.ChunkSize[0], H: t.ChunkSize[1], D: t.ChunkSize[2]}
}

func (t Tuning) UnloadBudget() time.Duration {
	return time.Duration(t.UnloadBudgetUs) * time.Microsecond
}

func (t Tuning) Tick() time.Duration {
	return time.Duration(t.TickMs) * time.Millisecond
}
