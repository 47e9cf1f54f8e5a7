// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptrscan/ptrscan/internal/addrset"
)

// TestWalkFindsInjectedTarget builds a single-batch base pointer whose
// value chain (+0, +0, +0) lands on an injected target three hops out.
// 0x2000 carries its own (irrelevant) row so the bitmap intersection
// sees it as a live traversal step, matching a real snapshot where the
// target address is itself part of the scanned memory.
func TestWalkFindsInjectedTarget(t *testing.T) {
	idx := NewBatchIndex(
		[]uint32{0x1000, 0x1004, 0x1008, 0x2000},
		[]uint32{0x1004, 0x1008, 0x2000, 0xABCDEF00},
	)
	injected := addrset.New(1)
	injected.Add(0x2000)

	w := &Walker{
		Indexes:  []BatchIndex{idx},
		Bitmaps:  Precompute([]uint32{0x1000, 0x1004, 0x1008, 0x2000}, []BatchIndex{idx}, 0xFFC),
		Injected: injected,
		Cfg:      DefaultDFSConfig(),
	}

	bp := BasePointer{Addr: 0x500, Values: []uint32{0x1000}}
	target, hit := w.Walk(bp)

	require.Nil(t, hit)
	require.NotNil(t, target)
	assert.Equal(t, uint32(0x500), target.BasePointer)
	assert.Equal(t, uint32(0x2000), target.TargetAddr)
	assert.Equal(t, []int32{0, 0, 0}, target.Path)
}

// TestWalkZeroMaxBreadthEmitsNothing is spec.md §8's boundary case:
// maxBreadth=0 leaves no offset space to explore, so even a base pointer
// that would otherwise reach an injected target emits no finding.
func TestWalkZeroMaxBreadthEmitsNothing(t *testing.T) {
	idx := NewBatchIndex([]uint32{0x1000}, []uint32{0x1000})
	injected := addrset.New(1)
	injected.Add(0x1004)

	cfg := DefaultDFSConfig()
	cfg.MaxBreadth = 0
	w := &Walker{
		Indexes:  []BatchIndex{idx},
		Bitmaps:  Precompute([]uint32{0x1000}, []BatchIndex{idx}, 0),
		Injected: injected,
		Cfg:      cfg,
	}

	target, hit := w.Walk(BasePointer{Addr: 0x10, Values: []uint32{0x1000}})
	assert.Nil(t, target)
	assert.Nil(t, hit)
}

// TestWalkStopsWhenBitmapEmpty confirms a base pointer whose value never
// leads anywhere in any batch index terminates without a finding.
func TestWalkStopsWhenBitmapEmpty(t *testing.T) {
	idx := NewBatchIndex([]uint32{0x3000}, []uint32{0xDEAD0000})
	w := &Walker{
		Indexes: []BatchIndex{idx},
		Bitmaps: Precompute(nil, []BatchIndex{idx}, 0xFFC),
		Cfg:     DefaultDFSConfig(),
	}
	target, hit := w.Walk(BasePointer{Addr: 0x10, Values: []uint32{0x3000}})
	assert.Nil(t, target)
	assert.Nil(t, hit)
}

// TestWalkMajorityVoteEntryHit exercises the two-batch majority-vote
// path: both batches' next address lands in batch 0's claimed target
// pool at the same buildOffset, so the walk should report an entry hit
// rather than advancing further.
func TestWalkMajorityVoteEntryHit(t *testing.T) {
	// 0x5000 carries its own row (the structure node is itself part of
	// the scanned memory) so the bitmap intersection sees +0 as a live
	// step before the majority-vote check fires on the candidate.
	idxA := NewBatchIndex([]uint32{0x4000, 0x5000}, []uint32{0x5000, 0x1})
	idxB := NewBatchIndex([]uint32{0x4000, 0x5000}, []uint32{0x5000, 0x1})

	targetsA := addrset.New(1)
	targetsA.Add(0x5000)
	targetsB := addrset.New(1)
	targetsB.Add(0x5000)

	w := &Walker{
		Indexes: []BatchIndex{idxA, idxB},
		Bitmaps: Precompute([]uint32{0x4000, 0x5000}, []BatchIndex{idxA, idxB}, 0xFFC),
		Targets: []*addrset.Set{targetsA, targetsB},
		Known: KnownNodes{
			0x5000: EntryPointNode{StructureID: 7, BuildOffset: 0},
		},
		Cfg: DefaultDFSConfig(),
	}

	bp := BasePointer{Addr: 0x20, Values: []uint32{0x4000, 0x4000}}
	target, hit := w.Walk(bp)

	require.Nil(t, target)
	require.NotNil(t, hit)
	assert.Equal(t, 7, hit.StructureID)
	assert.Equal(t, []int32{0}, hit.Path)
}
