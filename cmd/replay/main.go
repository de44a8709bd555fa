package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"voxelight.ai/internal/chunks"
	"voxelight.ai/internal/content"
	"voxelight.ai/internal/lighting"
	persistlog "voxelight.ai/internal/persistence/log"
	"voxelight.ai/internal/persistence/snapshot"
	"voxelight.ai/internal/voxel"
)

func main() {
	var (
		snapPath    = flag.String("snapshot", "", "path to .snap.zst")
		journalDir  = flag.String("journal", "", "journal dir containing journal-*.jsonl.zst (optional)")
		contentPath = flag.String("blocks", "", "path to blocks.json (default: built-in block set)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d chunk_size=%v chunks=%d palette=%s\n",
		snap.Header.Version, snap.Header.ChunkSize, len(snap.Chunks), snap.Header.PaletteDigest)

	reg := content.Default()
	if *contentPath != "" {
		if reg, err = content.Load(*contentPath); err != nil {
			fmt.Fprintln(os.Stderr, "load blocks:", err)
			os.Exit(1)
		}
	}
	if snap.Header.PaletteDigest != "" && snap.Header.PaletteDigest != reg.PaletteDigest {
		fmt.Fprintln(os.Stderr, "warning: palette digest differs from the loaded block set")
	}

	if *journalDir != "" {
		if err := summarizeJournal(*journalDir); err != nil {
			fmt.Fprintln(os.Stderr, "journal:", err)
			os.Exit(1)
		}
	}

	diffs, err := verifyLights(snap, reg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	total := 0
	for c, n := range diffs {
		if n > 0 {
			fmt.Printf("channel %d: %d voxels differ\n", c, n)
		}
		total += n
	}
	if total > 0 {
		os.Exit(1)
	}
	fmt.Println("lights ok")
}

// verifyLights relights the snapshot from its blocks and counts voxels
// whose stored value differs, per channel.
func verifyLights(snap snapshot.SnapshotV1, reg *content.Registry) ([voxel.Channels]int, error) {
	var diffs [voxel.Channels]int
	chs, err := snap.Restore()
	if err != nil {
		return diffs, err
	}
	storage := chunks.New(chunks.Config{Dims: snap.Dims(), Content: reg})
	stored := make(map[voxel.ChunkKey][]voxel.Light, len(chs))
	for _, ch := range chs {
		stored[ch.Key] = append([]voxel.Light(nil), ch.Lightmap.Lights()...)
		storage.Store(ch)
	}

	lighting.New(reg, storage, nil).Relight()

	for _, ch := range chs {
		want := stored[ch.Key]
		for i, got := range ch.Lightmap.Lights() {
			for c := 0; c < voxel.Channels; c++ {
				if voxel.Extract(got, c) != voxel.Extract(want[i], c) {
					diffs[c]++
				}
			}
		}
	}
	return diffs, nil
}

func summarizeJournal(dir string) error {
	files, err := persistlog.ListFiles(dir, "journal")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no journal files found in %s", dir)
	}
	counts := map[string]int{}
	for _, path := range files {
		if err := persistlog.ReadJournal(path, func(e persistlog.Entry) error {
			counts[e.Kind]++
			return nil
		}); err != nil {
			return err
		}
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("journal %s=%d\n", k, counts[k])
	}
	return nil
}
