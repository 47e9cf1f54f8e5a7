// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalogue

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// Range is a single, contiguous, 4-byte-aligned subdivision of a system's
// memory space.
type Range struct {
	Label    string
	Min, Max Address
}

// rangeNode adapts a Range to biogo/store/interval's IntInterface so the
// RangeList can be queried by address with the same interval-tree idiom
// kortschak-ins uses to look up BLAST hits by genomic coordinate — here
// the tree rarely holds more than four entries, so this is an idiom match
// rather than an asymptotic necessity.
type rangeNode struct {
	idx int
	Range
}

func (n rangeNode) Overlap(b interval.IntRange) bool {
	return int(n.Min) < b.End && int(n.Max)+1 > b.Start
}

func (n rangeNode) ID() uintptr { return uintptr(n.idx) }

func (n rangeNode) Range() interval.IntRange {
	return interval.IntRange{Start: int(n.Min), End: int(n.Max) + 1}
}

// RangeList is a system's derived, non-overlapping, gap-free, 4-byte
// aligned memory subdivision (spec.md §4.1).
type RangeList struct {
	ranges []Range
	tree   *interval.IntTree
}

// NoRangeIndex is returned by Index when an address falls outside every
// range in the list.
const NoRangeIndex = -1

// Ranges returns the list's ranges in index order.
func (rl RangeList) Ranges() []Range { return rl.ranges }

// Index returns the 0-based range index containing addr, or NoRangeIndex.
func (rl RangeList) Index(addr Address) int {
	if rl.tree == nil {
		return NoRangeIndex
	}
	hits := rl.tree.Get(rangeNode{Range: Range{Min: addr, Max: addr}})
	if len(hits) == 0 {
		return NoRangeIndex
	}
	return hits[0].(rangeNode).idx
}

// align4 rounds n down to the nearest multiple of 4.
func align4(n uint64) uint64 { return n &^ 3 }

func deriveRanges(s *System) (RangeList, error) {
	var ranges []Range
	switch s.RangeMode {
	case ModeFull:
		ranges = []Range{{Label: "full", Min: s.Region.Min, Max: s.Region.Max}}

	case ModeHalf:
		size := uint64(s.Region.Max) - uint64(s.Region.Min) + 1
		mid := uint64(s.Region.Min) + align4(size/2)
		ranges = []Range{
			{Label: "low", Min: s.Region.Min, Max: Address(mid - 4)},
			{Label: "high", Min: Address(mid), Max: s.Region.Max},
		}

	case ModeQuarter:
		size := uint64(s.Region.Max) - uint64(s.Region.Min) + 1
		quarter := align4(size / 4)
		min0 := uint64(s.Region.Min)
		ranges = []Range{
			{Label: "q0", Min: Address(min0), Max: Address(min0 + quarter - 4)},
			{Label: "q1", Min: Address(min0 + quarter), Max: Address(min0 + 2*quarter - 4)},
			{Label: "q2", Min: Address(min0 + 2*quarter), Max: Address(min0 + 3*quarter - 4)},
			// The last range absorbs the remainder from integer division.
			{Label: "q3", Min: Address(min0 + 3*quarter), Max: s.Region.Max},
		}

	case ModeDual:
		if s.Region2 == nil {
			return RangeList{}, fmt.Errorf("catalogue: dual range mode requires Region2")
		}
		halves := func(r MemoryRange, loLabel, hiLabel string) []Range {
			size := uint64(r.Max) - uint64(r.Min) + 1
			mid := uint64(r.Min) + align4(size/2)
			return []Range{
				{Label: loLabel, Min: r.Min, Max: Address(mid - 4)},
				{Label: hiLabel, Min: Address(mid), Max: r.Max},
			}
		}
		ranges = append(halves(s.Region, "a-low", "a-high"), halves(*s.Region2, "b-low", "b-high")...)

	default:
		return RangeList{}, fmt.Errorf("%w: %q", ErrUnknownRangeMode, s.RangeMode)
	}

	tree := &interval.IntTree{}
	for i, r := range ranges {
		if err := tree.Insert(rangeNode{idx: i, Range: r}, true); err != nil {
			return RangeList{}, fmt.Errorf("catalogue: building range tree: %w", err)
		}
	}
	tree.AdjustRanges()

	return RangeList{ranges: ranges, tree: tree}, nil
}
