// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listdetect

import (
	"github.com/ptrscan/ptrscan/chainwalk"
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/preprocess"
)

// DynamicResult is the outcome of RunDynamicPass.
type DynamicResult struct {
	Lists       []DynamicList
	EntryPoints []EntryPointRecord
}

// RunDynamicPass sweeps offsets 0x00..0x3C over one independent working
// set per batch, seeded from the StaticNode pool minus whatever the
// static pass (or an earlier offset, in this same pass) has already
// claimed into that batch's target pool (spec.md §4.4). targets is
// mutated in place: callers pass the same TargetPools the static pass
// produced, extended by this pass's own winning chains.
func RunDynamicPass(nodes []preprocess.StaticNodeEntry, targets TargetPools, cfg Config, ids *IDGen) DynamicResult {
	batchCount := len(targets)
	valuesByAddr := make(map[uint32][]uint32, len(nodes))
	for _, n := range nodes {
		valuesByAddr[n.Addr] = n.Values
	}

	working := make([]map[uint32]bool, batchCount)
	for b := range working {
		set := make(map[uint32]bool, len(nodes))
		for _, n := range nodes {
			if !targets[b].Has(n.Addr) {
				set[n.Addr] = true
			}
		}
		working[b] = set
	}

	var out DynamicResult

	for _, offset := range Offsets() {
		for b := 0; b < batchCount; b++ {
			if len(working[b]) == 0 {
				continue
			}
			bb := b

			order := sortedKeysBool(working[bb])
			pool := addrset.New(len(order))
			for _, a := range order {
				pool.Add(a)
			}
			getValue := func(addr uint32) (uint32, bool) {
				if !working[bb][addr] {
					return 0, false
				}
				vs := valuesByAddr[addr]
				if bb >= len(vs) {
					return 0, false
				}
				return vs[bb], true
			}

			res := chainwalk.Walk(order, pool, offset, getValue, chainwalk.Options{
				MinChainLength: cfg.MinChainLength,
				MaxGhostNodes:  0,
				TargetPool:     targets[bb],
			})
			resolved := chainwalk.ResolveConflicts(res.Chains)

			for _, c := range resolved {
				if !c.IsHead {
					// A losing duplicate among conflicting chains: its
					// nodes are freed from the working set but recorded
					// nowhere.
					for _, n := range c.Nodes {
						delete(working[bb], n)
					}
					continue
				}
				stride := DominantStride(c.Nodes)
				out.Lists = append(out.Lists, DynamicList{
					Header: Header{
						ID:          ids.Next(),
						Root:        c.Root,
						Addresses:   sortAddrs(c.Nodes),
						BuildOffset: offset,
					},
					Stride:   stride,
					BatchIdx: bb,
				})
				for _, n := range c.Nodes {
					delete(working[bb], n)
					targets[bb].Add(n)
				}
			}

			for _, ep := range res.EntryPoints {
				out.EntryPoints = append(out.EntryPoints, EntryPointRecord{
					Header: Header{
						ID:          ids.Next(),
						Root:        ep.Root,
						Addresses:   append([]uint32(nil), ep.Nodes...),
						Path:        []int32{offset},
						BuildOffset: offset,
					},
					BatchIdx: bb,
				})
				for _, n := range ep.Nodes {
					delete(working[bb], n)
				}
			}
		}
	}

	return out
}
