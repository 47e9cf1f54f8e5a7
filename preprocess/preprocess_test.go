// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptrscan/ptrscan/catalogue"
)

// testSystem uses generic32-halved rather than generic32: its region
// ([0x80000000, 0x81FFFFFF]) covers the 0x80000xxx-style addresses these
// tests use, so GetCounts' range-indexed tallies (and the warning
// threshold check) see them, unlike generic32's [0, 0x01FFFFFF].
func testSystem(t *testing.T) *catalogue.System {
	t.Helper()
	sys, err := catalogue.Get("generic32-halved")
	require.NoError(t, err)
	return sys
}

// TestVTableFilter is spec.md §8 end-to-end scenario 4: eleven addresses
// all pointing to the same value are all discarded.
func TestVTableFilter(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())

	addrs := make([]uint32, 11)
	vals := make([]uint32, 11)
	for i := range addrs {
		addrs[i] = 0x80010000 + uint32(i*4)
		vals[i] = 0x80020000
	}

	_, err := p.AddBatch(Batch{Addresses: addrs, Values: vals})
	require.NoError(t, err)

	assert.Equal(t, 0, len(p.pool), "all eleven rows sharing one value must be discarded as a VTable anchor")
}

// TestSelfReferenceFilter exercises the address-minus-maskedValue window
// from spec.md §4.2: rows with diff in [-44,4] are discarded.
func TestSelfReferenceFilter(t *testing.T) {
	cases := []struct {
		name  string
		addr  uint32
		value uint32
		kept  bool
	}{
		{"exact self-loop, diff 0, rejected", 0x80001000, 0x80001000, false},
		{"diff at upper bound 4, rejected", 0x80001004, 0x80001000, false},
		{"diff just past upper bound, kept", 0x80001008, 0x80001000, true},
		{"diff at lower bound -44, rejected", 0x80000FD4, 0x80001000, false},
		{"diff just past lower bound, kept", 0x80000FD0, 0x80001000, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := New(testSystem(t), DefaultConfig())
			_, err := p.AddBatch(Batch{Addresses: []uint32{c.addr}, Values: []uint32{c.value}})
			require.NoError(t, err)
			_, present := p.pool[c.addr]
			assert.Equal(t, c.kept, present)
		})
	}
}

func TestSingleBatchClassifiesStaticStatic(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	_, err := p.AddBatch(Batch{
		Addresses: []uint32{0x80000100, 0x80000200},
		Values:    []uint32{0x80000300, 0x80000400},
	})
	require.NoError(t, err)

	collapsed, err := p.Collapse()
	require.NoError(t, err)

	assert.Len(t, collapsed.StaticStatics, 2)
	assert.Empty(t, collapsed.StaticNodes)
	assert.Empty(t, collapsed.DynamicNodes)
}

func TestTwoIdenticalBatchesAreStaticStatic(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	b := Batch{
		Addresses: []uint32{0x80000100, 0x80000200},
		Values:    []uint32{0x80000300, 0x80000400},
	}
	_, err := p.AddBatch(b)
	require.NoError(t, err)
	_, err = p.AddBatch(b)
	require.NoError(t, err)

	collapsed, err := p.Collapse()
	require.NoError(t, err)

	assert.Len(t, collapsed.StaticStatics, 2)
	assert.Empty(t, collapsed.DynamicNodes)
}

func TestStaticNodeWhenValueVaries(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	_, err := p.AddBatch(Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000300}})
	require.NoError(t, err)
	_, err = p.AddBatch(Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000304}})
	require.NoError(t, err)

	collapsed, err := p.Collapse()
	require.NoError(t, err)
	// Values differ across batches but neither slot is absent, so this is
	// a StaticNode, not a DynamicNode (spec.md §3).
	assert.Len(t, collapsed.StaticNodes, 1)
	assert.Empty(t, collapsed.DynamicNodes)
}

func TestDynamicNodeWhenAbsentInABatch(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	_, err := p.AddBatch(Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000300}})
	require.NoError(t, err)
	_, err = p.AddBatch(Batch{Addresses: []uint32{}, Values: []uint32{}})
	require.NoError(t, err)

	collapsed, err := p.Collapse()
	require.NoError(t, err)
	assert.Len(t, collapsed.DynamicNodes, 1)
	assert.Equal(t, uint32(0), collapsed.DynamicNodes[0].Values[1])
}

// TestBatchLimitExceeded covers the BatchLimitExceeded error kind
// (spec.md §7).
func TestBatchLimitExceeded(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	for i := 0; i < MaxBatches; i++ {
		_, err := p.AddBatch(Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000300}})
		require.NoError(t, err)
	}
	_, err := p.AddBatch(Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000300}})
	assert.ErrorIs(t, err, ErrBatchLimitExceeded)
}

func TestInvalidBatchIndex(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	assert.ErrorIs(t, p.RemoveBatch(0), ErrInvalidBatchIndex)
}

// TestRemoveBatchCommutes is property P8: removing batch i and re-adding
// the original batch i at the end yields the same classification counts
// as never removing it.
func TestRemoveBatchCommutes(t *testing.T) {
	b0 := Batch{Addresses: []uint32{0x80000100, 0x80000200}, Values: []uint32{0x80000300, 0x80000400}}
	b1 := Batch{Addresses: []uint32{0x80000100}, Values: []uint32{0x80000500}}
	b2 := Batch{Addresses: []uint32{0x80000100, 0x80000200}, Values: []uint32{0x80000600, 0x80000700}}

	baseline := New(testSystem(t), DefaultConfig())
	for _, b := range []Batch{b0, b1, b2} {
		_, err := baseline.AddBatch(b)
		require.NoError(t, err)
	}
	baselineCounts := baseline.GetCounts()

	reordered := New(testSystem(t), DefaultConfig())
	for _, b := range []Batch{b0, b1, b2} {
		_, err := reordered.AddBatch(b)
		require.NoError(t, err)
	}
	require.NoError(t, reordered.RemoveBatch(1))
	_, err := reordered.AddBatch(b1)
	require.NoError(t, err)
	reorderedCounts := reordered.GetCounts()

	assert.Equal(t, baselineCounts.PerRange, reorderedCounts.PerRange)
	assert.Equal(t, baselineCounts.DynamicNodeTotal, reorderedCounts.DynamicNodeTotal)
}

// TestCollapseMatchesGetCounts is property P1/round-trip R1: the tallies
// GetCounts reports before Collapse must match Collapse's own partition.
func TestCollapseMatchesGetCounts(t *testing.T) {
	p := New(testSystem(t), DefaultConfig())
	_, err := p.AddBatch(Batch{
		Addresses: []uint32{0x80000100, 0x80000200, 0x80000300},
		Values:    []uint32{0x80000400, 0x80000500, 0x80000600},
	})
	require.NoError(t, err)
	_, err = p.AddBatch(Batch{
		Addresses: []uint32{0x80000100, 0x80000200},
		Values:    []uint32{0x80000401, 0x80000500},
	})
	require.NoError(t, err)

	before := p.GetCounts()
	collapsed, err := p.Collapse()
	require.NoError(t, err)

	total := len(collapsed.StaticStatics) + len(collapsed.StaticNodes) + len(collapsed.DynamicNodes)
	var preTotal int
	for _, rc := range before.PerRange {
		preTotal += rc.StaticStatics + rc.StaticNodes
	}
	preTotal += before.DynamicNodeTotal
	assert.Equal(t, preTotal, total)
}

func TestWarnBasePointerThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarnBasePointerThreshold = 2
	p := New(testSystem(t), cfg)
	_, err := p.AddBatch(Batch{
		Addresses: []uint32{0x80000100, 0x80000200, 0x80000300},
		Values:    []uint32{0x80000400, 0x80000500, 0x80000600},
	})
	require.NoError(t, err)

	counts := p.GetCounts()
	assert.NotEmpty(t, counts.Warning)
	assert.True(t, counts.SkipStickyAdvised)
}
