package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/content"
	"voxelight.ai/internal/engine"
	"voxelight.ai/internal/events"
	"voxelight.ai/internal/lighting"
	persistlog "voxelight.ai/internal/persistence/log"
	"voxelight.ai/internal/persistence/snapshot"
	"voxelight.ai/internal/transport/observer"
	"voxelight.ai/internal/tuning"
	"voxelight.ai/internal/voxel"
	"voxelight.ai/internal/worldgen"
)

func main() {
	var (
		tuningPath  = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		contentPath = flag.String("blocks", "", "path to blocks.json (default: built-in block set, or content_path from tuning)")
		centerX     = flag.Int("cx", 0, "chunk x to hold around")
		centerZ     = flag.Int("cz", 0, "chunk z to hold around")
		noObserver  = flag.Bool("no_observer", false, "disable the websocket event stream")
		snapOut     = flag.String("snapshot_out", "", "write resident chunks to this .snap.zst on shutdown (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[lightd] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	reg := content.Default()
	cp := strings.TrimSpace(*contentPath)
	if cp == "" {
		cp = tune.ContentPath
	}
	if cp != "" {
		if reg, err = content.Load(cp); err != nil {
			logger.Fatalf("load blocks: %v", err)
		}
	}
	logger.Printf("blocks=%d palette=%s", len(reg.Palette), reg.PaletteDigest[:12])

	prov, err := openProvider(tune.Storage)
	if err != nil {
		logger.Fatalf("open storage: %v", err)
	}
	if prov != nil {
		defer prov.Close()
	}

	bus := events.NewBus()
	cfg := chunks.Config{
		Dims:    tune.Dims(),
		Content: reg,
		Events:  bus,
		Logger:  log.New(os.Stdout, "[chunks] ", log.LstdFlags|log.Lmicroseconds),
	}
	if prov != nil {
		cfg.Provider = prov
	}
	if dir := strings.TrimSpace(tune.JournalDir); dir != "" {
		journal := persistlog.NewJournal(dir, logger)
		defer journal.Close()
		journal.Attach(bus)
		cfg.Repairs = journal
	}
	storage := chunks.New(cfg)
	light := lighting.New(reg, storage, log.New(os.Stdout, "[lighting] ", log.LstdFlags|log.Lmicroseconds))

	ctx, cancel := signalContext()
	defer cancel()

	if addr := strings.TrimSpace(tune.ObserverAddr); addr != "" && !*noObserver {
		obs := observer.NewServer(observer.Info{Dims: storage.Dims(), Palette: reg.Palette}, logger)
		obs.Attach(bus)
		srv := &http.Server{Addr: addr, Handler: obs.Handler()}
		go func() {
			logger.Printf("observer listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer: %v", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	eng := engine.New(engine.Config{
		Storage:      storage,
		Lighting:     light,
		Gen:          worldgen.New(tune.Seed, worldgen.BlocksFrom(reg)),
		Logger:       logger,
		Tick:         tune.Tick(),
		UnloadBudget: tune.UnloadBudget(),
	})

	start := time.Now()
	n := eng.Hold(int32(*centerX), int32(*centerZ), tune.LoadRadius)
	logger.Printf("holding %d chunks around %d,%d (lit in %s)", n, *centerX, *centerZ, time.Since(start).Round(time.Millisecond))

	if err := eng.Run(ctx); err != nil {
		logger.Printf("save: %v", err)
	}
	if path := strings.TrimSpace(*snapOut); path != "" {
		resident := make([]*voxel.Chunk, 0, storage.Len())
		for _, k := range storage.LoadedChunkKeys() {
			resident = append(resident, storage.Chunk(k.CX, k.CZ))
		}
		if err := snapshot.WriteSnapshot(path, snapshot.Capture(storage.Dims(), reg.PaletteDigest, resident)); err != nil {
			logger.Printf("snapshot write: %v", err)
		} else {
			logger.Printf("snapshot=%s chunks=%d", path, len(resident))
		}
	}
	if prov != nil {
		if count, bytes, err := prov.Usage(); err != nil {
			logger.Printf("storage usage: %v", err)
		} else {
			logger.Printf("persisted %s chunks, %s", humanize.Comma(int64(count)), humanize.Bytes(uint64(bytes)))
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
