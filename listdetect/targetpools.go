// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listdetect

import "github.com/ptrscan/ptrscan/internal/addrset"

// TargetPools is one target-node set per batch: an address in
// TargetPools[b] has already been consumed by a structure or entry point
// in batch b and terminates any chain walk that reaches it.
type TargetPools []*addrset.Set

// NewTargetPools allocates batchCount empty sets, each pre-sized to hint
// elements.
func NewTargetPools(batchCount, hint int) TargetPools {
	tp := make(TargetPools, batchCount)
	for i := range tp {
		tp[i] = addrset.New(hint)
	}
	return tp
}

// AddAll adds addr to every batch's target pool, used by the static pass
// since a StaticStatic node's address is valid in every batch.
func (tp TargetPools) AddAll(addr uint32) {
	for _, s := range tp {
		s.Add(addr)
	}
}
