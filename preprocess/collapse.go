// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preprocess

// StaticStaticEntry is a StaticStatic address and its single,
// batch-independent masked value.
type StaticStaticEntry struct {
	Addr  uint32
	Value uint32
}

// StaticNodeEntry is a StaticNode address and its per-batch masked
// values, none of which are zero.
type StaticNodeEntry struct {
	Addr   uint32
	Values []uint32
}

// DynamicNodeEntry is a DynamicNode address and its per-batch masked
// values, where 0 means absent in that batch.
type DynamicNodeEntry struct {
	Addr   uint32
	Values []uint32
}

// Collapsed holds the three disjoint typed pools Collapse produces, ready
// for the detection stages.
type Collapsed struct {
	SystemName   string
	BatchCount   int
	StaticStatics []StaticStaticEntry
	StaticNodes   []StaticNodeEntry
	DynamicNodes  []DynamicNodeEntry
}

// Collapse applies the system mask to every non-zero slot, classifies
// each address and partitions the pool into the three typed arrays,
// releasing the map afterward (spec.md §4.2, "Collapse"). The
// preprocessor must not be used again after Collapse except via
// BatchCount, which still reports the batch count the pools were built
// from.
func (p *Preprocessor) Collapse() (Collapsed, error) {
	out := Collapsed{
		SystemName: p.sys.Name,
		BatchCount: p.batchCount,
	}

	for addr, slots := range p.pool {
		active := slots[:p.batchCount]

		// Classification happens on the unmasked values, matching
		// GetCounts (masking is deferred until storage, per spec.md §3
		// — "masking is deferred to the collapse step" — so classifying
		// post-mask could fold two distinct pre-mask values into one and
		// disagree with GetCounts' tally for the identical pool state).
		class := classifySlots(active)

		masked := make([]uint32, len(active))
		for i, v := range active {
			if v == 0 {
				masked[i] = 0
				continue
			}
			masked[i] = p.sys.ApplyMask(v)
		}

		switch class {
		case classStaticStatic:
			out.StaticStatics = append(out.StaticStatics, StaticStaticEntry{Addr: addr, Value: masked[0]})
		case classStaticNode:
			out.StaticNodes = append(out.StaticNodes, StaticNodeEntry{Addr: addr, Values: masked})
		case classDynamic:
			out.DynamicNodes = append(out.DynamicNodes, DynamicNodeEntry{Addr: addr, Values: masked})
		}
	}

	total := len(out.StaticStatics) + len(out.StaticNodes) + len(out.DynamicNodes)
	if total != len(p.pool) {
		return Collapsed{}, InvariantError{Msg: "collapse partition size does not match pool size"}
	}

	p.pool = nil
	return out, nil
}
