// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/ptrscan/ptrscan/listdetect"
	"github.com/ptrscan/ptrscan/preprocess"
	"github.com/ptrscan/ptrscan/scan"
)

// classifyNodes reconstructs, for each batch, the per-batch union of
// addresses the scanner needs a row index over (spec.md §4.6: "ingest →
// preprocessor-output classification (classifyNodes reconstructs the
// per-batch union from collapsed arrays)"). A StaticStatic address
// contributes its single value to every batch; a StaticNode contributes
// its per-batch value (never zero, by classification); a DynamicNode
// contributes its per-batch value only where present.
func classifyNodes(c preprocess.Collapsed) []scan.BatchIndex {
	addrsByBatch := make([][]uint32, c.BatchCount)
	valuesByBatch := make([][]uint32, c.BatchCount)

	for _, e := range c.StaticStatics {
		for b := 0; b < c.BatchCount; b++ {
			addrsByBatch[b] = append(addrsByBatch[b], e.Addr)
			valuesByBatch[b] = append(valuesByBatch[b], e.Value)
		}
	}
	for _, e := range c.StaticNodes {
		for b := 0; b < c.BatchCount && b < len(e.Values); b++ {
			addrsByBatch[b] = append(addrsByBatch[b], e.Addr)
			valuesByBatch[b] = append(valuesByBatch[b], e.Values[b])
		}
	}
	for _, e := range c.DynamicNodes {
		for b := 0; b < c.BatchCount && b < len(e.Values); b++ {
			if e.Values[b] == 0 {
				continue
			}
			addrsByBatch[b] = append(addrsByBatch[b], e.Addr)
			valuesByBatch[b] = append(valuesByBatch[b], e.Values[b])
		}
	}

	out := make([]scan.BatchIndex, c.BatchCount)
	for b := 0; b < c.BatchCount; b++ {
		out[b] = scan.NewBatchIndex(addrsByBatch[b], valuesByBatch[b])
	}
	return out
}

// promoteStaticNodes merges the static pass's unconsumed StaticStatic
// addresses (promoted when skipSticky is false, spec.md §4.4) into the
// StaticNode pool the dynamic pass and base-pointer builder both consume.
// A promoted node carries the same masked value in every batch, since it
// originated as a StaticStatic.
func promoteStaticNodes(base []preprocess.StaticNodeEntry, promoted []listdetect.PromotedNode, batchCount int) []preprocess.StaticNodeEntry {
	if len(promoted) == 0 {
		return base
	}
	out := make([]preprocess.StaticNodeEntry, len(base), len(base)+len(promoted))
	copy(out, base)
	for _, p := range promoted {
		values := make([]uint32, batchCount)
		for i := range values {
			values[i] = p.Value
		}
		out = append(out, preprocess.StaticNodeEntry{Addr: p.Addr, Values: values})
	}
	return out
}
