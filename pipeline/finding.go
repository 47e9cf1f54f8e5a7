// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/listdetect"
	"github.com/ptrscan/ptrscan/scan"
)

// Finding is the flat record handed to the Encoder (spec.md §6, "Encoder
// interface"): {id, type, root, nodeCount, addresses, ghosts?, stride?,
// path?, buildOffset?, targetAddress?, isTarget}.
type Finding struct {
	ID            int
	Type          string
	Root          uint32
	NodeCount     int
	Addresses     []uint32
	Ghosts        []uint32
	Stride        *int32
	Path          []int32
	BuildOffset   *int32
	TargetAddress *uint32
	IsTarget      bool
}

// Finding type tags (spec.md §3, plus the scan-phase "target_path" kind
// spec.md §1 item 4 calls out as a distinct output from the three
// Structure types).
const (
	FindingStaticList  = "static_list"
	FindingDynamicList = "dynamic_list"
	FindingEntryPoint  = "entry_point"
	FindingTargetPath  = "target_path"
)

// idAllocator hands out encoder-facing IDs from the three namespaces
// spec.md §6 specifies: static-list findings from 100000, target-covering
// findings from 1000, everything else from 10000. This is deliberately a
// separate counter space from listdetect.IDGen, which only needs
// process-internal identity for structure/entry-point cross references
// (scan.KnownNodes, moving-entry-point lookups) and is assigned long
// before a finding is known to be target-covering.
type idAllocator struct {
	nextStatic int
	nextTarget int
	nextOther  int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{nextStatic: 100000, nextTarget: 1000, nextOther: 10000}
}

func (a *idAllocator) assign(kind string, isTarget bool) int {
	switch {
	case kind == FindingStaticList:
		id := a.nextStatic
		a.nextStatic++
		return id
	case isTarget:
		id := a.nextTarget
		a.nextTarget++
		return id
	default:
		id := a.nextOther
		a.nextOther++
		return id
	}
}

// isTargetCovering reports whether any address or ghost in the finding
// intersects the user-supplied injected target set (spec.md §6: "A
// finding is target-covering iff any of its addresses ... intersects the
// user-supplied target set").
func isTargetCovering(addrs, ghosts []uint32, injected *addrset.Set) bool {
	if injected == nil {
		return false
	}
	for _, a := range addrs {
		if injected.Has(a) {
			return true
		}
	}
	for _, g := range ghosts {
		if injected.Has(g) {
			return true
		}
	}
	return false
}

func int32ptr(v int32) *int32   { return &v }
func uint32ptr(v uint32) *uint32 { return &v }

func findingFromStaticList(s listdetect.StaticList, ids *idAllocator, injected *addrset.Set) Finding {
	isTarget := isTargetCovering(s.Addresses, s.Ghosts, injected)
	return Finding{
		ID:          ids.assign(FindingStaticList, isTarget),
		Type:        FindingStaticList,
		Root:        s.Root,
		NodeCount:   len(s.Addresses),
		Addresses:   s.Addresses,
		Ghosts:      s.Ghosts,
		Stride:      int32ptr(s.Stride),
		BuildOffset: int32ptr(s.BuildOffset),
		IsTarget:    isTarget,
	}
}

func findingFromDynamicList(d listdetect.DynamicList, ids *idAllocator, injected *addrset.Set) Finding {
	isTarget := isTargetCovering(d.Addresses, nil, injected)
	return Finding{
		ID:          ids.assign(FindingDynamicList, isTarget),
		Type:        FindingDynamicList,
		Root:        d.Root,
		NodeCount:   len(d.Addresses),
		Addresses:   d.Addresses,
		Stride:      int32ptr(d.Stride),
		BuildOffset: int32ptr(d.BuildOffset),
		IsTarget:    isTarget,
	}
}

func findingFromEntryPointRecord(e listdetect.EntryPointRecord, ids *idAllocator, injected *addrset.Set) Finding {
	isTarget := isTargetCovering(e.Addresses, nil, injected)
	var buildOffset *int32
	if e.BuildOffset != 0 || len(e.Path) > 0 {
		buildOffset = int32ptr(e.BuildOffset)
	}
	return Finding{
		ID:          ids.assign(FindingEntryPoint, isTarget),
		Type:        FindingEntryPoint,
		Root:        e.Root,
		NodeCount:   len(e.Addresses),
		Addresses:   e.Addresses,
		Path:        e.Path,
		BuildOffset: buildOffset,
		IsTarget:    isTarget,
	}
}

func findingFromTargetPath(t scan.TargetPath, ids *idAllocator) Finding {
	return Finding{
		ID:            ids.assign(FindingTargetPath, true),
		Type:          FindingTargetPath,
		Root:          t.BasePointer,
		NodeCount:     len(t.Path) + 1,
		Addresses:     []uint32{t.BasePointer},
		Path:          t.Path,
		TargetAddress: uint32ptr(t.TargetAddr),
		IsTarget:      true,
	}
}

// findingFromEntryHit converts a scan-phase hit into an entry-point
// finding (spec.md §4.5, "Entry-point upgrades"). structureAddrs looks up
// the addresses of the structure (or prior entry point) the hit merged
// into, so isTargetCovering can be evaluated the same way as any other
// finding.
func findingFromEntryHit(h scan.EntryHit, ids *idAllocator, injected *addrset.Set, structureAddrs map[int][]uint32) Finding {
	addrs := append([]uint32{h.BasePointer}, structureAddrs[h.StructureID]...)
	isTarget := isTargetCovering(addrs, nil, injected)
	var buildOffset *int32
	if h.BuildOffset != 0 || h.MovingEntryPoint {
		buildOffset = int32ptr(h.BuildOffset)
	}
	return Finding{
		ID:          ids.assign(FindingEntryPoint, isTarget),
		Type:        FindingEntryPoint,
		Root:        h.BasePointer,
		NodeCount:   len(h.Path) + 1,
		Addresses:   []uint32{h.BasePointer},
		Path:        h.Path,
		BuildOffset: buildOffset,
		IsTarget:    isTarget,
	}
}
