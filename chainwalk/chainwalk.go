// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chainwalk implements the offset-following chain walker shared by
// static and dynamic list detection (spec.md §4.3). Walk is a pure
// function of its pool, offset and value function — it holds no back
// reference to whatever orchestrates it, per the explicit design note in
// spec.md §9 ("'This' coupling between chain walker and scanner state").
package chainwalk

import (
	"sort"

	"github.com/ptrscan/ptrscan/internal/addrset"
)

// ValueFunc returns the pointer value stored at addr, or ok=false if addr
// has no value in the current context (e.g. a batch in which it is
// absent).
type ValueFunc func(addr uint32) (value uint32, ok bool)

// Options configures a single Walk call.
type Options struct {
	MinChainLength int
	MaxGhostNodes  int
	// TargetPool, if non-nil, causes a walk to stop and record an entry
	// point the moment it reaches a member address.
	TargetPool *addrset.Set
}

// Chain is a walked, unresolved chain: a candidate list head plus its
// member nodes and bridged ghost addresses.
type Chain struct {
	Root   uint32
	Nodes  []uint32 // walk order, i.e. root first
	Ghosts []uint32
	Offset int32
	IsHead bool
}

// EntryPoint is a chain that terminated inside the caller's target pool.
type EntryPoint struct {
	Root   uint32
	Nodes  []uint32
	Offset int32
}

// Result is the outcome of one Walk call.
type Result struct {
	Chains      []Chain
	EntryPoints []EntryPoint
}

// Walk walks every unprocessed head address in order, following offset
// repeatedly with ghost bridging, and returns the resulting chains and
// entry-point terminations (spec.md §4.3).
//
// order must be pool's addresses in the order heads should be considered
// (ascending, per the static/dynamic detection passes' determinism
// requirement); pool must answer Has for exactly the same address set.
func Walk(order []uint32, pool *addrset.Set, offset int32, getValue ValueFunc, opts Options) Result {
	pointedTo := addrset.New(len(order))
	for _, addr := range order {
		v, ok := getValue(addr)
		if !ok {
			continue
		}
		target := addr32(v, offset)
		if pool.Has(target) {
			pointedTo.Add(target)
		}
	}

	processed := addrset.New(len(order))
	var res Result

	walkFrom := func(head uint32) {
		var nodes, ghosts []uint32
		current := head
		hitTarget := false

		for {
			if opts.TargetPool != nil && opts.TargetPool.Has(current) {
				nodes = append(nodes, current)
				processed.Add(current)
				hitTarget = true
				break
			}
			if !pool.Has(current) || processed.Has(current) {
				// processed.Has(current) here means the walk has looped
				// back onto one of its own nodes: a pure ring, with no
				// node left unpointed-to to act as its natural head.
				break
			}
			v, ok := getValue(current)
			if !ok {
				break
			}
			nodes = append(nodes, current)
			processed.Add(current)

			expected := addr32(v, offset)
			if pool.Has(expected) {
				current = expected
				continue
			}
			if opts.TargetPool != nil && opts.TargetPool.Has(expected) {
				current = expected
				continue
			}

			// The step just taken (current -> expected) is this chain's
			// local stride; a ghost gap is bridged by repeating that
			// same stride, not by re-applying offset to a raw address
			// (which would never advance when offset is 0, as in a
			// direct-pointer array where value already names the next
			// address outright).
			stride := int32(int64(expected) - int64(current))
			bridge, resumed := bridgeGhosts(expected, stride, opts.MaxGhostNodes, len(ghosts), pool)
			if resumed == nil {
				break
			}
			ghosts = append(ghosts, bridge...)
			current = *resumed
		}

		if hitTarget {
			if len(nodes) >= 1 {
				res.EntryPoints = append(res.EntryPoints, EntryPoint{Root: head, Nodes: nodes, Offset: offset})
			}
			return
		}
		if len(nodes) >= opts.MinChainLength {
			res.Chains = append(res.Chains, Chain{Root: head, Nodes: nodes, Ghosts: ghosts, Offset: offset, IsHead: true})
		}
	}

	for _, head := range order {
		if processed.Has(head) || pointedTo.Has(head) {
			continue
		}
		walkFrom(head)
	}

	// Any address still unprocessed at this point belongs to a pure
	// ring: every member is pointed to by its predecessor, so none ever
	// qualified as a head above. Walk each remaining ring once, in
	// ascending order, so its smallest address becomes the canonical
	// root — the revisit guard in walkFrom stops each walk the moment
	// it loops back on itself.
	for _, head := range order {
		if processed.Has(head) {
			continue
		}
		walkFrom(head)
	}

	return res
}

// bridgeGhosts walks bridge candidates starting at expected, each a
// further step of the offset argument (Walk passes the chain's local
// stride here, not the walk offset), looking for the first whose
// successor lands back in pool. It never dereferences the chain's own
// current address — ghost arithmetic only ever advances by
// expected + k*step, since ghosts represent entries missing from the
// forward path, not the current node.
func bridgeGhosts(expected uint32, offset int32, maxGhostNodes, alreadyUsed int, pool *addrset.Set) (ghosts []uint32, resumeAt *uint32) {
	bridge := expected
	for step := 0; step < maxGhostNodes; step++ {
		if alreadyUsed+len(ghosts) >= maxGhostNodes {
			return ghosts, nil
		}
		after := addr32(bridge, offset)
		ghosts = append(ghosts, bridge)
		if pool.Has(after) {
			return ghosts, &after
		}
		bridge = after
	}
	return ghosts, nil
}

func addr32(v uint32, offset int32) uint32 {
	return uint32(int64(v) + int64(offset))
}

// ResolveConflicts groups chains that share at least one node and, within
// each group, makes exactly the chain with the most nodes (ties broken by
// smallest root address) the head; every other chain in the group is
// marked IsHead=false (spec.md §4.3, property P5).
func ResolveConflicts(chains []Chain) []Chain {
	out := make([]Chain, len(chains))
	copy(out, chains)
	if len(out) == 0 {
		return out
	}

	parent := make([]int, len(out))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	owner := make(map[uint32]int)
	for i, c := range out {
		for _, addr := range c.Nodes {
			if j, ok := owner[addr]; ok {
				union(i, j)
			} else {
				owner[addr] = i
			}
		}
	}

	groups := make(map[int][]int)
	for i := range out {
		r := find(i)
		groups[r] = append(groups[r], i)
	}

	for _, idxs := range groups {
		sort.Slice(idxs, func(a, b int) bool {
			ca, cb := out[idxs[a]], out[idxs[b]]
			if len(ca.Nodes) != len(cb.Nodes) {
				return len(ca.Nodes) > len(cb.Nodes)
			}
			return ca.Root < cb.Root
		})
		for k, idx := range idxs {
			out[idx].IsHead = k == 0
		}
	}

	return out
}
