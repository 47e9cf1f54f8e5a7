// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/json"
	"os"

	"github.com/klauspost/compress/zstd"
)

// snapshot is the diagnostic, post-run-only dump cmd/ptrscan-report reads
// to render its per-stage bar chart. It is never reloaded into a later
// Run (spec.md §6, "Persisted state: none" governs the pipeline's own
// state, not an opt-in external debug artifact).
type snapshot struct {
	Static      int `json:"static"`
	Dynamic     int `json:"dynamic"`
	EntryPoints int `json:"entry_points"`
	TargetPaths int `json:"target_paths"`
	BasePointers int `json:"base_pointers"`
}

// WriteDebugSnapshot compresses and writes r's per-stage counts to path
// using zstd, the compression library the rest of the retrieval pack
// (grailbio-bio) uses for its own bulk scratch output.
func WriteDebugSnapshot(path string, r Result) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	defer zw.Close()

	enc := json.NewEncoder(zw)
	return enc.Encode(snapshot{
		Static:       r.StaticCount,
		Dynamic:      r.DynamicCount,
		EntryPoints:  r.EntryPointCount,
		TargetPaths:  r.TargetPathCount,
		BasePointers: r.BasePointerCount,
	})
}

// ReadDebugSnapshot decompresses and parses a snapshot written by
// WriteDebugSnapshot, for cmd/ptrscan-report.
func ReadDebugSnapshot(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return Result{}, err
	}
	defer zr.Close()

	var s snapshot
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return Result{}, err
	}
	return Result{
		StaticCount:      s.Static,
		DynamicCount:     s.Dynamic,
		EntryPointCount:  s.EntryPoints,
		TargetPathCount:  s.TargetPaths,
		BasePointerCount: s.BasePointers,
	}, nil
}
