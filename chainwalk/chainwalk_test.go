// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chainwalk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ptrscan/ptrscan/internal/addrset"
)

func poolOf(addrs ...uint32) *addrset.Set {
	s := addrset.New(len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// TestWalkSimpleChain is spec.md §8 scenario 1: a four-node chain at
// uniform stride 0x10 surfaces as a single head chain with no ghosts.
// Since Walk computes a node's successor as addr32(getValue(node),
// offset), each node here stores its own address as its value: with
// offset equal to the stride, that steps exactly onto the next node.
func TestWalkSimpleChain(t *testing.T) {
	addrs := []uint32{0x1000, 0x1010, 0x1020, 0x1030, 0x1040}
	pool := poolOf(addrs...)
	values := map[uint32]uint32{
		0x1000: 0x1000,
		0x1010: 0x1010,
		0x1020: 0x1020,
		0x1030: 0x1030,
		// 0x1040 has no value: it terminates the walk.
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0x10, getValue, Options{MinChainLength: 4, MaxGhostNodes: 0})

	if assert.Len(t, res.Chains, 1) {
		c := res.Chains[0]
		assert.Equal(t, uint32(0x1000), c.Root)
		assert.Equal(t, []uint32{0x1000, 0x1010, 0x1020, 0x1030}, c.Nodes)
		assert.True(t, c.IsHead)
		assert.Empty(t, c.Ghosts)
	}
}

// TestWalkGhostBridging is spec.md §8 scenario 2: one node missing from
// the pool mid-chain is bridged as a ghost without breaking the chain.
func TestWalkGhostBridging(t *testing.T) {
	// 0x2000 -> 0x2010 -> [missing 0x2020] -> 0x2030, then terminates.
	addrs := []uint32{0x2000, 0x2010, 0x2030, 0x2040}
	pool := poolOf(addrs...)
	values := map[uint32]uint32{
		0x2000: 0x2000,
		0x2010: 0x2010, // successor 0x2020 is absent from pool
		0x2030: 0x2030, // successor 0x2040 is in pool but has no value
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0x10, getValue, Options{MinChainLength: 3, MaxGhostNodes: 2})

	if assert.Len(t, res.Chains, 1) {
		c := res.Chains[0]
		assert.Equal(t, []uint32{0x2000, 0x2010, 0x2030}, c.Nodes)
		assert.Equal(t, []uint32{0x2020}, c.Ghosts)
	}
}

// TestWalkGhostBudgetExhausted confirms a chain whose gap exceeds
// MaxGhostNodes terminates without bridging, truncating it below the
// minimum length so no chain is emitted for that head.
func TestWalkGhostBudgetExhausted(t *testing.T) {
	addrs := []uint32{0x3000, 0x3010}
	pool := poolOf(addrs...)
	values := map[uint32]uint32{
		0x3000: 0x3000,
		0x3010: 0x3010, // successor 0x3020 absent, and so is 0x3030 beyond it
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0x10, getValue, Options{MinChainLength: 3, MaxGhostNodes: 1})

	assert.Empty(t, res.Chains, "a one-ghost budget cannot bridge a two-hop gap, truncating the chain below MinChainLength")
}

// TestWalkEntryPoint exercises the target-pool termination path used by
// the dynamic detection pass. Here the target address also belongs to
// the walking pool; a target outside the pool ends a walk the same way
// (see listdetect's TestDynamicPassEntryPoint).
func TestWalkEntryPoint(t *testing.T) {
	addrs := []uint32{0x4000, 0x4010}
	pool := poolOf(0x4000, 0x4010, 0x4020)
	target := poolOf(0x4020)
	values := map[uint32]uint32{
		0x4000: 0x4000,
		0x4010: 0x4010,
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0x10, getValue, Options{MinChainLength: 100, MaxGhostNodes: 0, TargetPool: target})

	assert.Empty(t, res.Chains)
	if assert.Len(t, res.EntryPoints, 1) {
		ep := res.EntryPoints[0]
		assert.Equal(t, uint32(0x4000), ep.Root)
		assert.Equal(t, []uint32{0x4000, 0x4010, 0x4020}, ep.Nodes)
	}
}

// TestWalkSkipsPointedToHeads ensures an address that is itself the
// successor of another chain member is never also considered as a head
// in its own right (it would otherwise be double-counted).
func TestWalkSkipsPointedToHeads(t *testing.T) {
	addrs := []uint32{0x6000, 0x6010}
	pool := poolOf(addrs...)
	values := map[uint32]uint32{
		0x6000: 0x6000, // successor 0x6010
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0x10, getValue, Options{MinChainLength: 1, MaxGhostNodes: 0})

	for _, c := range res.Chains {
		assert.NotEqual(t, uint32(0x6010), c.Root, "0x6010 is a successor of 0x6000 and must not start its own chain")
	}
	if assert.Len(t, res.Chains, 1) {
		assert.Equal(t, uint32(0x6000), res.Chains[0].Root)
		// 0x6010 has no value of its own, so the walk reaches it and
		// terminates there without appending it to Nodes.
		assert.Equal(t, []uint32{0x6000}, res.Chains[0].Nodes)
	}
}

// TestWalkRingChooseSmallestRoot covers a pure ring, where every node is
// pointed to by its predecessor so none qualifies as a head under the
// ordinary rule. The walker must still surface it once, rooted at its
// smallest address, rather than silently dropping it or looping forever.
func TestWalkRingChooseSmallestRoot(t *testing.T) {
	addrs := []uint32{0x80000100, 0x80000104, 0x80000108, 0x8000010C, 0x80000110, 0x80000114}
	pool := poolOf(addrs...)
	values := map[uint32]uint32{
		0x80000100: 0x80000104,
		0x80000104: 0x80000108,
		0x80000108: 0x8000010C,
		0x8000010C: 0x80000110,
		0x80000110: 0x80000114,
		0x80000114: 0x80000100, // closes the ring
	}
	getValue := func(addr uint32) (uint32, bool) {
		v, ok := values[addr]
		return v, ok
	}

	res := Walk(addrs, pool, 0, getValue, Options{MinChainLength: 6, MaxGhostNodes: 0})

	if assert.Len(t, res.Chains, 1) {
		c := res.Chains[0]
		assert.Equal(t, uint32(0x80000100), c.Root)
		assert.Equal(t, addrs, c.Nodes)
	}
}

// TestResolveConflictsPicksLongestHead is property P5: among chains
// sharing a node, only the longest (ties broken by smallest root) is
// marked head.
func TestResolveConflictsPicksLongestHead(t *testing.T) {
	chains := []Chain{
		{Root: 0x100, Nodes: []uint32{0x100, 0x110, 0x120}},
		{Root: 0x110, Nodes: []uint32{0x110, 0x120}},
		{Root: 0x200, Nodes: []uint32{0x200, 0x210, 0x220, 0x230}},
	}

	out := ResolveConflicts(chains)

	var heads []uint32
	for _, c := range out {
		if c.IsHead {
			heads = append(heads, c.Root)
		}
	}
	assert.ElementsMatch(t, []uint32{0x100, 0x200}, heads)
}

// TestResolveConflictsTieBreaksOnRoot covers the tie-break rule when two
// chains in the same conflict group have identical node counts.
func TestResolveConflictsTieBreaksOnRoot(t *testing.T) {
	chains := []Chain{
		{Root: 0x900, Nodes: []uint32{0x900, 0x910}},
		{Root: 0x800, Nodes: []uint32{0x800, 0x910}},
	}

	out := ResolveConflicts(chains)

	for _, c := range out {
		if c.Root == 0x800 {
			assert.True(t, c.IsHead)
		} else {
			assert.False(t, c.IsHead)
		}
	}
}

func TestResolveConflictsEmpty(t *testing.T) {
	assert.Empty(t, ResolveConflicts(nil))
}

func TestResolveConflictsDisjointChainsAllHeads(t *testing.T) {
	chains := []Chain{
		{Root: 0x10, Nodes: []uint32{0x10, 0x20}},
		{Root: 0x30, Nodes: []uint32{0x30, 0x40}},
	}
	out := ResolveConflicts(chains)
	assert.True(t, out[0].IsHead)
	assert.True(t, out[1].IsHead)
}
