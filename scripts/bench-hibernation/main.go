// bench-hibernation measures heap memory before and after Allocator.Hibernate
// while a tree grows in rounds of random inserts and deletes.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --keys 2000000 --rounds 4 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
}

type bench struct {
	profileDir string
	snapshots  []heapSnapshot
}

func main() {
	keys := flag.Int("keys", 1_000_000, "Operations per round")
	rounds := flag.Int("rounds", 3, "Number of grow/hibernate rounds")
	deleteRatio := flag.Float64("delete-ratio", 0.3, "Share of operations that are deletes")
	seed := flag.Uint64("seed", 1, "Random seed")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	if *profileDir != "" {
		err := os.MkdirAll(*profileDir, 0o755)
		if err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed)) //nolint:gosec // benchmark input.
	allocator := rbtree.NewAllocator()
	tree := rbtree.NewTree(allocator)
	run := &bench{profileDir: *profileDir}

	run.takeSnapshot("before_processing")

	for round := 1; round <= *rounds; round++ {
		for range *keys {
			key := rng.IntN(*keys * *rounds)
			if rng.Float64() < *deleteRatio {
				tree.DeleteNode(key)
			} else {
				tree.InsertNode(key)
			}
		}

		log.Printf("round %d/%d: %s keys, %s slots", round, *rounds,
			humanize.Comma(int64(tree.Len())), humanize.Comma(int64(allocator.Size())))

		run.takeSnapshot(fmt.Sprintf("round_%d_before_hibernate", round))
		run.writeHeapProfile(fmt.Sprintf("heap_round_%d_before_hibernate.prof", round))

		awake := allocator.MemoryBytes()

		allocator.Hibernate()
		log.Printf("  hibernated %s into %s", humanize.IBytes(awake), humanize.IBytes(uint64(allocator.HibernatedBytes())))

		run.takeSnapshot(fmt.Sprintf("round_%d_after_hibernate", round))
		run.writeHeapProfile(fmt.Sprintf("heap_round_%d_after_hibernate.prof", round))

		err := allocator.Boot()
		if err != nil {
			log.Fatalf("boot: %v", err)
		}

		run.takeSnapshot(fmt.Sprintf("round_%d_after_boot", round))

		err = tree.Verify()
		if err != nil {
			log.Fatalf("verify after boot: %v", err)
		}
	}

	run.printSummary()
}

func (b *bench) takeSnapshot(label string) {
	runtime.GC()
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	b.snapshots = append(b.snapshots, heapSnapshot{
		label:     label,
		heapInUse: m.HeapInuse,
		heapSys:   m.HeapSys,
		heapIdle:  m.HeapIdle,
	})
	log.Printf("  [heap] %-32s inuse=%9s  sys=%9s  idle=%9s",
		label, humanize.IBytes(m.HeapInuse), humanize.IBytes(m.HeapSys), humanize.IBytes(m.HeapIdle))
}

func (b *bench) writeHeapProfile(name string) {
	if b.profileDir == "" {
		return
	}

	runtime.GC()

	path := filepath.Join(b.profileDir, name)

	file, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer file.Close()

	err = pprof.WriteHeapProfile(file)
	if err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}

func (b *bench) printSummary() {
	timeline := table.NewWriter()
	timeline.SetOutputMirror(os.Stdout)
	timeline.SetStyle(table.StyleLight)
	timeline.SetTitle("Heap Memory Timeline")
	timeline.AppendHeader(table.Row{"Phase", "InUse", "Sys", "Idle"})

	for _, snap := range b.snapshots {
		timeline.AppendRow(table.Row{
			snap.label, humanize.IBytes(snap.heapInUse), humanize.IBytes(snap.heapSys), humanize.IBytes(snap.heapIdle),
		})
	}

	timeline.Render()

	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for idx := 0; idx+1 < len(b.snapshots); idx++ {
		curr, next := b.snapshots[idx], b.snapshots[idx+1]
		if !strings.HasSuffix(curr.label, "before_hibernate") || !strings.HasSuffix(next.label, "after_hibernate") {
			continue
		}

		freed := float64(curr.heapInUse) - float64(next.heapInUse)
		fmt.Printf("  %s -> %s: %s freed (%.1f%%)\n", curr.label, next.label,
			humanize.IBytes(uint64(max(freed, 0))), freed/float64(curr.heapInUse)*100) //nolint:mnd // percent.
	}
}
