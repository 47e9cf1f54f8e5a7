// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptrscan-report renders the per-stage finding counts from a
// pipeline debug snapshot (see pipeline.WriteDebugSnapshot) as a small
// SVG chart, for a quick visual sanity check of a run without
// re-reading the encoded findings themselves.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/aclements/go-gg/gg"
	"github.com/aclements/go-gg/table"

	"github.com/ptrscan/ptrscan/pipeline"
)

func main() {
	log.SetPrefix("ptrscan-report: ")
	log.SetFlags(0)

	snapshot := flag.String("snapshot", "", "path to a pipeline debug snapshot (required)")
	out := flag.String("out", "", "output SVG path (default stdout)")
	width := flag.Int("width", 480, "chart width in pixels")
	height := flag.Int("height", 320, "chart height in pixels")
	flag.Parse()

	if *snapshot == "" {
		flag.Usage()
		os.Exit(1)
	}

	result, err := pipeline.ReadDebugSnapshot(*snapshot)
	if err != nil {
		log.Fatalf("reading snapshot: %v", err)
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

	if err := render(result, w, *width, *height); err != nil {
		log.Fatalf("render: %v", err)
	}
}

// render builds the stage/count table and draws it as a grid of
// filled tiles, one per stage, following the same table.Builder →
// gg.Plot → WriteSVG pipeline benchplot uses to chart benchmark
// results: there's no dedicated bar layer in this grammar, so a
// LayerTiles with no explicit width/height (letting the scale derive
// one rectangle per category) is the closest stand-in for a bar.
func render(r pipeline.Result, w io.Writer, width, height int) error {
	stages := []string{"static", "dynamic", "entry points", "target paths", "base pointers"}
	counts := []int{r.StaticCount, r.DynamicCount, r.EntryPointCount, r.TargetPathCount, r.BasePointerCount}

	tab := new(table.Builder).Add("stage", stages).Add("count", counts).Done()

	plot := gg.NewPlot(tab)
	plot.SetScale("x", gg.NewOrdinalScale())
	plot.SetScale("y", gg.NewLinearScaler().Include(0))
	plot.Add(gg.LayerTiles{
		X:    "stage",
		Y:    "count",
		Fill: plot.Const(color.RGBA{R: 0x2f, G: 0x6f, B: 0xb3, A: 0xff}),
	})

	if err := plot.WriteSVG(w, width, height); err != nil {
		return fmt.Errorf("writing svg: %w", err)
	}
	return nil
}
