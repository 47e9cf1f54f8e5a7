// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scan implements the forward bitmap-intersection scanner
// (spec.md §4.5): it precomputes per-node offset bitmaps, walks a chunked
// depth-first search from every base pointer under a breadth/depth
// budget, and emits target paths and entry-point hits.
package scan

// BasePointer is one StaticNode promoted to a scan root: its address plus
// its per-batch pointer values (spec.md §4.5, "base pointer set").
type BasePointer struct {
	Addr   uint32
	Values []uint32
}

// BatchIndex is one batch's address→value row index (spec.md §4.5,
// "per-batch index"), giving O(1) membership and value lookups during
// both bitmap precompute and DFS traversal. It satisfies
// internal/bitmap.Lookup directly.
type BatchIndex struct {
	rows map[uint32]uint32
}

// NewBatchIndex builds a row index from one batch's raw (address, value)
// arrays, as handed over by the CSV parser (spec.md §6).
func NewBatchIndex(addrs, values []uint32) BatchIndex {
	rows := make(map[uint32]uint32, len(addrs))
	for i, a := range addrs {
		rows[a] = values[i]
	}
	return BatchIndex{rows: rows}
}

// Has reports whether addr is present in this batch.
func (b BatchIndex) Has(addr uint32) bool {
	_, ok := b.rows[addr]
	return ok
}

// Value returns the pointer value stored at addr in this batch.
func (b BatchIndex) Value(addr uint32) (uint32, bool) {
	v, ok := b.rows[addr]
	return v, ok
}

// Addrs returns every address this batch holds, in no particular order.
func (b BatchIndex) Addrs() []uint32 {
	out := make([]uint32, 0, len(b.rows))
	for a := range b.rows {
		out = append(out, a)
	}
	return out
}

// EntryPointNode names the structure (or prior entry point) an address
// belongs to, for majority-vote entry detection in the DFS (spec.md
// §4.5, step 5).
type EntryPointNode struct {
	StructureID int
	BuildOffset int32
}

// KnownNodes maps address to the structure/entry-point membership
// information the scanner consults while walking. It is built once from
// every accepted structure and entry point before scanning begins.
type KnownNodes map[uint32]EntryPointNode

// TargetPath is a DFS hit against the user-supplied injected target set
// (spec.md §4.5, step 1).
type TargetPath struct {
	BasePointer  uint32
	Path         []int32
	TargetAddr   uint32
}

// EntryHit is a DFS hit against a known structure or a prior entry point
// (spec.md §4.5, steps 2 and 5).
type EntryHit struct {
	BasePointer      uint32
	Path             []int32
	StructureID      int
	BuildOffset      int32
	MovingEntryPoint bool
}

// Result accumulates one driver pass's findings, streamed out in bounded
// batches by the caller (spec.md §4.5, "driver loop").
type Result struct {
	TargetPaths []TargetPath
	EntryHits   []EntryHit
}
