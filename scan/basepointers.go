// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"sort"

	"github.com/ptrscan/ptrscan/catalogue"
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/preprocess"
)

// BuildBasePointers promotes every StaticNode not already claimed by some
// batch's target pool into a base pointer, range-gated against
// enabledRanges (spec.md §4.5, "base pointer set"). Base pointers are
// returned in ascending address order, matching the deterministic
// iteration the rest of the pipeline relies on.
func BuildBasePointers(nodes []preprocess.StaticNodeEntry, targets []*addrset.Set, ranges catalogue.RangeList, enabledRanges map[int]bool) []BasePointer {
	var out []BasePointer
	for _, n := range nodes {
		if claimedByAny(n.Addr, targets) {
			continue
		}
		idx := ranges.Index(catalogue.Address(n.Addr))
		if idx == catalogue.NoRangeIndex {
			continue
		}
		if len(enabledRanges) > 0 && !enabledRanges[idx] {
			continue
		}
		out = append(out, BasePointer{Addr: n.Addr, Values: append([]uint32(nil), n.Values...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func claimedByAny(addr uint32, targets []*addrset.Set) bool {
	for _, t := range targets {
		if t != nil && t.Has(addr) {
			return true
		}
	}
	return false
}
