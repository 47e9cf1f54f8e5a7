// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package listdetect implements the static and dynamic list-detection
// passes (spec.md §4.4): it consumes the classified StaticStatic and
// StaticNode pools preprocess.Collapse produces and turns offset chains
// into structure and entry-point findings, seeding the target-node pools
// the forward scanner later terminates against.
package listdetect

// Header is the common identity and path carried by every finding kind,
// matching the shared-header design note in spec.md §9 for the source's
// loose "structure"/"entryPoint" records: every finding lives in a flat
// arena and is referenced by its ID, never by a graph edge.
type Header struct {
	ID          int
	Root        uint32
	Addresses   []uint32
	Path        []int32
	BuildOffset int32
}

// Finding is implemented by every list-detection and entry-point record.
type Finding interface {
	Kind() string
	header() Header
}

// StaticList is a chain found over the StaticStatic pool: one value per
// address, identical across every batch.
type StaticList struct {
	Header
	Stride int32
	Ghosts []uint32
}

func (s StaticList) Kind() string   { return "static_list" }
func (s StaticList) header() Header { return s.Header }

// DynamicList is a chain found over one batch's StaticNode working set.
type DynamicList struct {
	Header
	Stride   int32
	BatchIdx int
}

func (d DynamicList) Kind() string   { return "dynamic_list" }
func (d DynamicList) header() Header { return d.Header }

// EntryPointRecord is a chain that terminated inside a batch's
// target-node pool or a prior structure's node set.
type EntryPointRecord struct {
	Header
	BatchIdx         int
	Claimed          bool
	MovingEntryPoint bool
}

func (e EntryPointRecord) Kind() string   { return "entry_point" }
func (e EntryPointRecord) header() Header { return e.Header }

// PromotedNode is a StaticStatic address left unconsumed after the static
// pass, carried forward as a StaticNode candidate when skipSticky is
// false (spec.md §4.4).
type PromotedNode struct {
	Addr  uint32
	Value uint32
}

// IDGen hands out unique finding IDs across both detection passes, so
// every detected structure and entry point in a run has a stable,
// process-wide identity. Scan-phase entry-point upgrades do not draw
// from it.
type IDGen struct{ n int }

// NewIDGen returns an IDGen starting at 1.
func NewIDGen() *IDGen { return &IDGen{} }

// Next returns the next unused ID.
func (g *IDGen) Next() int {
	g.n++
	return g.n
}
