// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptrscan runs the full pointer-graph discovery pipeline (spec.md
// §2: C7 ingest → C2 → C4 (via C3) → C5 → C6 → C7 emit) against a
// directory of batch CSV files and a system tag, printing encoded
// findings to stdout or a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ptrscan/ptrscan/catalogue"
	"github.com/ptrscan/ptrscan/ingest"
	"github.com/ptrscan/ptrscan/pipeline"
	"github.com/ptrscan/ptrscan/preprocess"
)

func main() {
	log.SetPrefix("ptrscan: ")
	log.SetFlags(0)

	system := flag.String("system", "", "system tag from the catalogue (see -list-systems)")
	batchDir := flag.String("batches", "", "directory of batch CSV files, read in sorted filename order")
	out := flag.String("out", "", "output path for encoded findings (default stdout)")
	verbose := flag.Bool("v", false, "enable the preprocess stage's debug logging")
	listSystems := flag.Bool("list-systems", false, "print registered system tags and exit")
	maxBreadth := flag.String("max-breadth", "0xFFC", "forward-scan breadth budget, hex or decimal")
	maxDepth := flag.Int("max-depth", 12, "forward-scan depth budget (1..20)")
	minChainLength := flag.Int("min-chain-length", 5, "dynamic-pass chain acceptance threshold")
	skipSticky := flag.Bool("skip-sticky", true, "discard unconsumed StaticStatics after the static pass")
	enabledRanges := flag.String("enabled-ranges", "0", "comma-separated catalogue range indices to scan from")
	targets := flag.String("targets", "", "comma-separated hex addresses to inject as targets")
	debugSnapshot := flag.String("debug-snapshot", "", "optional zstd-compressed stage-count snapshot path")
	earlyOutTarget := flag.Bool("early-out-target", false, "stop the scan at the first target-path hit")

	flag.Parse()

	if *listSystems {
		names := catalogue.Names()
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if *system == "" || *batchDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	preprocess.PrintDebugInfo = *verbose

	sys, err := catalogue.Get(*system)
	if err != nil {
		log.Fatalf("%v", err)
	}

	breadth, err := pipeline.ParseMaxBreadth(*maxBreadth)
	if err != nil {
		log.Fatalf("parsing -max-breadth: %v", err)
	}

	ranges, err := parseIntSet(*enabledRanges)
	if err != nil {
		log.Fatalf("parsing -enabled-ranges: %v", err)
	}

	injected, err := parseHexAddrs(*targets)
	if err != nil {
		log.Fatalf("parsing -targets: %v", err)
	}

	batches, err := loadBatchDir(*batchDir, sys)
	if err != nil {
		log.Fatalf("loading batches: %v", err)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("creating -out: %v", err)
		}
		defer f.Close()
		w = f
	}

	cfg := pipeline.DefaultConfig()
	cfg.MaxBreadth = breadth
	cfg.MaxDepth = *maxDepth
	cfg.MinChainLength = *minChainLength
	cfg.SkipStickyPointers = *skipSticky
	cfg.EnabledRanges = ranges
	cfg.InjectedTargets = injected
	cfg.EarlyOutTarget = *earlyOutTarget
	cfg.DebugSnapshotPath = *debugSnapshot

	sink := ingest.LogSink{L: log.New(os.Stderr, "ptrscan: ", 0)}
	enc := ingest.LineEncoder{W: w}

	result, err := pipeline.Run(context.Background(), sys, batches, cfg, sink, enc)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	if cfg.DebugSnapshotPath != "" {
		if err := pipeline.WriteDebugSnapshot(cfg.DebugSnapshotPath, result); err != nil {
			log.Printf("writing debug snapshot: %v", err)
		}
	}

	log.Printf("done: %d static, %d dynamic, %d entry points, %d target paths over %d base pointers",
		result.StaticCount, result.DynamicCount, result.EntryPointCount, result.TargetPathCount, result.BasePointerCount)
	if result.Warning != "" {
		log.Printf("warning: %s", result.Warning)
	}
}

func loadBatchDir(dir string, sys *catalogue.System) ([]preprocess.Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	validate := rangeValidator(sys)

	var batches []preprocess.Batch
	for _, name := range names {
		b, err := ingest.LoadBatch(filepath.Join(dir, name), validate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(b.Addresses) == 0 {
			continue
		}
		batches = append(batches, preprocess.Batch{Addresses: b.Addresses, Values: b.Values})
	}
	return batches, nil
}

// rangeValidator builds the ingest.ValidateRange predicate for sys,
// honoring the dual-region bit-31/bit-28 constraint spec.md §6 describes.
func rangeValidator(sys *catalogue.System) func(addr, value uint32) bool {
	min, max := uint32(sys.Region.Min), uint32(sys.Region.Max)
	if sys.RangeMode != catalogue.ModeDual {
		return ingest.ValidateRange(min, max, nil)
	}
	min2, max2 := uint32(sys.Region2.Min), uint32(sys.Region2.Max)
	return func(addr, value uint32) bool {
		if value&3 != 0 || value&0x80000000 == 0 {
			return false
		}
		if value&0x10000000 == 0 {
			return value >= min && value <= max
		}
		return value >= min2 && value <= max2
	}
}

func parseIntSet(s string) (map[int]bool, error) {
	out := map[int]bool{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, p := range strings.Split(s, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &n); err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, nil
}

func parseHexAddrs(s string) ([]uint32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []uint32
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "0x"))
		var v uint32
		if _, err := fmt.Sscanf(p, "%x", &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
