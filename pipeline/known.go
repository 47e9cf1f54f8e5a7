// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/ptrscan/ptrscan/listdetect"
	"github.com/ptrscan/ptrscan/scan"
)

// buildKnownNodes maps every address produced by detection into its
// owning structure, so the forward scanner can recognise "every batch's
// current address names the same structure" (spec.md §4.5 step 2) and
// majority-vote against prior structures/entry points (step 5).
func buildKnownNodes(statics []listdetect.StaticList, dynamics []listdetect.DynamicList, eps []listdetect.EntryPointRecord) (scan.KnownNodes, map[int][]uint32) {
	known := make(scan.KnownNodes)
	addrsByID := make(map[int][]uint32)

	add := func(id int, buildOffset int32, addrs, ghosts []uint32) {
		addrsByID[id] = append(addrsByID[id], addrs...)
		for _, a := range addrs {
			known[a] = scan.EntryPointNode{StructureID: id, BuildOffset: buildOffset}
		}
		for _, g := range ghosts {
			known[g] = scan.EntryPointNode{StructureID: id, BuildOffset: buildOffset}
		}
	}

	for _, s := range statics {
		add(s.ID, s.BuildOffset, s.Addresses, s.Ghosts)
	}
	for _, d := range dynamics {
		add(d.ID, d.BuildOffset, d.Addresses, nil)
	}
	for _, e := range eps {
		add(e.ID, e.BuildOffset, e.Addresses, nil)
	}

	return known, addrsByID
}
