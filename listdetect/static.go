// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listdetect

import (
	"github.com/ptrscan/ptrscan/chainwalk"
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/preprocess"
)

// StaticResult is the outcome of RunStaticPass.
type StaticResult struct {
	Lists    []StaticList
	Targets  TargetPools
	Promoted []PromotedNode
}

// RunStaticPass sweeps offsets 0x00..0x3C over the StaticStatic pool,
// recording each winning chain as a static_list and seeding every
// batch's target pool with its nodes and ghosts (spec.md §4.4). When
// skipSticky is false, addresses the sweep never consumes are promoted
// to StaticNode candidates for the dynamic pass and base-pointer set.
func RunStaticPass(statics []preprocess.StaticStaticEntry, batchCount int, skipSticky bool, cfg Config, ids *IDGen) StaticResult {
	values := make(map[uint32]uint32, len(statics))
	remaining := make(map[uint32]bool, len(statics))
	for _, e := range statics {
		values[e.Addr] = e.Value
		remaining[e.Addr] = true
	}

	targets := NewTargetPools(batchCount, len(statics))

	var lists []StaticList
	for _, offset := range Offsets() {
		if len(remaining) == 0 {
			break
		}

		order := sortedKeysBool(remaining)
		pool := addrset.New(len(order))
		for _, a := range order {
			pool.Add(a)
		}
		getValue := func(addr uint32) (uint32, bool) {
			if !remaining[addr] {
				return 0, false
			}
			return values[addr], true
		}

		res := chainwalk.Walk(order, pool, offset, getValue, chainwalk.Options{
			MinChainLength: cfg.MinChainLength,
			MaxGhostNodes:  cfg.MaxGhostNodes,
		})
		resolved := chainwalk.ResolveConflicts(res.Chains)

		for _, c := range resolved {
			if !c.IsHead {
				continue
			}
			stride := DominantStride(c.Nodes)
			lists = append(lists, StaticList{
				Header: Header{
					ID:          ids.Next(),
					Root:        c.Root,
					Addresses:   sortAddrs(c.Nodes),
					BuildOffset: offset,
				},
				Stride: stride,
				Ghosts: append([]uint32(nil), c.Ghosts...),
			})
			for _, n := range c.Nodes {
				delete(remaining, n)
				targets.AddAll(n)
			}
			for _, g := range c.Ghosts {
				targets.AddAll(g)
			}
		}
	}

	var promoted []PromotedNode
	if !skipSticky {
		for addr := range remaining {
			promoted = append(promoted, PromotedNode{Addr: addr, Value: values[addr]})
		}
	}

	return StaticResult{Lists: lists, Targets: targets, Promoted: promoted}
}
