// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import "strconv"

// Config holds every runtime configuration key spec.md §6 lists, read
// once at stage start.
type Config struct {
	// MinChainLength is the dynamic pass's chain-acceptance threshold
	// (spec.md §6 default: 5).
	MinChainLength int
	// StaticMinChainLength is the static pass's own threshold, tightened
	// from MinChainLength per spec.md §6 ("tightened to 15 for static
	// list detection").
	StaticMinChainLength int
	// MaxGhostNodes bounds ghost bridging in the static pass (default
	// 10); the dynamic pass always forces this to 0.
	MaxGhostNodes int
	// MaxBreadth bounds the forward scanner's offset space [0, MaxBreadth]
	// (default 0xFFC), masked with &^ 3.
	MaxBreadth uint32
	// MaxDepth bounds DFS depth (default 12, accepted range 1..20).
	MaxDepth int
	// SkipStickyPointers controls whether unconsumed StaticStatics are
	// discarded or promoted after the static pass (default true).
	SkipStickyPointers bool
	// EarlyOutBasePointer and EarlyOutTarget request early pipeline stop
	// (spec.md §5, "Cancellation").
	EarlyOutBasePointer bool
	EarlyOutTarget      bool
	// EnabledRanges gates which catalogue range indices the scanner
	// starts base pointers from (default {0}).
	EnabledRanges map[int]bool
	// InjectedTargets seeds the target-node pools with user-supplied
	// addresses of interest (spec.md §3, "Target-node pools").
	InjectedTargets []uint32
	// WarnBasePointerThreshold is preprocess.Config's soft-recommendation
	// threshold (default 50000).
	WarnBasePointerThreshold int
	// MajorityBatchFraction and ModalOffsetFraction tune the scan-phase
	// moving-entry-point detection (spec.md §9, Open Question 3); kept as
	// named fields rather than literals since the exact tuning is a
	// design choice, not a derived constant.
	MajorityBatchFraction float64
	ModalOffsetFraction   float64
	// RichRangeCascade is reserved for a future half/quarter-aware
	// recommendation cascade (spec.md §9, Open Question 2); the
	// implemented behavior always uses the flattened range-0 check this
	// spec documents regardless of this flag's value.
	RichRangeCascade bool
	// DebugSnapshotPath, if non-empty, writes a zstd-compressed dump of
	// per-stage finding counts after the run for cmd/ptrscan-report to
	// render. This is a diagnostic artifact, never reloaded by a later
	// run (spec.md §6, "Persisted state: none").
	DebugSnapshotPath string
}

// DefaultConfig returns the documented defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		MinChainLength:           5,
		StaticMinChainLength:     15,
		MaxGhostNodes:            10,
		MaxBreadth:               0xFFC,
		MaxDepth:                 12,
		SkipStickyPointers:       true,
		EnabledRanges:            map[int]bool{0: true},
		WarnBasePointerThreshold: 50_000,
		MajorityBatchFraction:    0.66,
		ModalOffsetFraction:      0.5,
	}
}

// ParseMaxBreadth parses the hex-string maxBreadth runtime key (spec.md
// §6: "hex string, default 0xFFC") and masks it 4-byte aligned.
func ParseMaxBreadth(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n) &^ 3, nil
}
