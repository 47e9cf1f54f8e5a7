// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/internal/bitmap"
)

// ChunkOffsets is the number of 4-byte offsets one DFS chunk covers
// (spec.md §4.5: chunks are 0x80 bytes, i.e. one bitmap word).
const ChunkOffsets = bitmap.WordBits

// DFSConfig configures one forward-scan DFS walk (spec.md §6, runtime
// configuration keys maxBreadth/maxDepth, and §4.5's majority-vote
// fractions).
type DFSConfig struct {
	MaxBreadth            uint32
	MaxDepth              int
	MajorityBatchFraction float64
	ModalOffsetFraction   float64
}

// DefaultDFSConfig returns the documented defaults: maxBreadth 0xFFC,
// maxDepth 12, 0.66 majority / 0.5 modal-offset fractions.
func DefaultDFSConfig() DFSConfig {
	return DFSConfig{
		MaxBreadth:            0xFFC,
		MaxDepth:              12,
		MajorityBatchFraction: 0.66,
		ModalOffsetFraction:   0.5,
	}
}

// Walker runs the chunked DFS described in spec.md §4.5 from every base
// pointer, against a fixed set of batch indexes, target pools and known
// structure/entry-point nodes.
type Walker struct {
	Indexes  []BatchIndex
	Bitmaps  *Bitmaps
	Targets  []*addrset.Set // per-batch consumed-node pools, targetNodes[b]
	Injected *addrset.Set   // user-supplied injected target addresses
	Known    KnownNodes
	Cfg      DFSConfig
}

// walkState is one chunked-DFS's mutable progress.
type walkState struct {
	current []uint32
	path    []int32
	depth   int
}

// Walk runs one base pointer's DFS to completion (or exhaustion) and
// returns at most one finding — a target path win takes priority, then a
// structure/entry-point hit.
func (w *Walker) Walk(bp BasePointer) (target *TargetPath, hit *EntryHit) {
	st := &walkState{
		current: append([]uint32(nil), bp.Values...),
		depth:   1,
	}

	maxBreadth := w.Cfg.MaxBreadth &^ 3
	// spec.md §8 boundary case: a zero breadth budget leaves no offset
	// space to explore at all, so the scan emits no findings.
	if maxBreadth == 0 {
		return nil, nil
	}

depthLoop:
	for {
		if w.allInjectedTargets(st.current) {
			return &TargetPath{BasePointer: bp.Addr, Path: append([]int32(nil), st.path...), TargetAddr: st.current[0]}, nil
		}
		if sid, ok := w.allSameStructure(st.current); ok {
			return nil, &EntryHit{BasePointer: bp.Addr, Path: append([]int32(nil), st.path...), StructureID: sid, MovingEntryPoint: true}
		}

		if st.depth > w.Cfg.MaxDepth {
			return nil, nil
		}

		for chunkStart := uint32(0); chunkStart <= maxBreadth; chunkStart += 0x80 {
			combined := w.combinedBitmap(st.current, chunkStart)
			// The final chunk may overhang maxBreadth: mask off any bit
			// whose offset would land past the configured breadth budget.
			bits := ChunkOffsets
			if chunkStart+uint32(ChunkOffsets-1)*4 > maxBreadth {
				bits = int((maxBreadth-chunkStart)/4) + 1
			}
			if bits < ChunkOffsets {
				combined &= (uint32(1) << uint(bits)) - 1
			}
			if combined == 0 {
				continue
			}
			bitIdx := leastSetBit(combined)
			chosenOffset := int32(chunkStart) + int32(bitIdx)*4

			if ep, ok := w.majorityVoteHit(st.current, chosenOffset); ok {
				path := append(append([]int32(nil), st.path...), chosenOffset)
				return nil, &EntryHit{BasePointer: bp.Addr, Path: path, StructureID: ep.StructureID, BuildOffset: ep.BuildOffset}
			}

			st.current = w.advance(st.current, chosenOffset)
			st.path = append(st.path, chosenOffset)
			st.depth++
			continue depthLoop
		}
		// No chunk in [0, maxBreadth] produced a set bit: the walk is
		// stuck with nowhere left to go.
		return nil, nil
	}
}

func (w *Walker) allInjectedTargets(current []uint32) bool {
	if w.Injected == nil || len(current) == 0 {
		return false
	}
	for _, addr := range current {
		if !w.Injected.Has(addr) {
			return false
		}
	}
	return true
}

func (w *Walker) allSameStructure(current []uint32) (int, bool) {
	if w.Known == nil || len(current) == 0 {
		return 0, false
	}
	first, ok := w.Known[current[0]]
	if !ok {
		return 0, false
	}
	for _, addr := range current[1:] {
		n, ok := w.Known[addr]
		if !ok || n.StructureID != first.StructureID {
			return 0, false
		}
	}
	return first.StructureID, true
}

func (w *Walker) combinedBitmap(current []uint32, chunkStart uint32) uint32 {
	s := chunkStart / 0x80
	combined := ^uint32(0)
	for b, addr := range current {
		var word uint32
		nb := w.Bitmaps.For(addr, b)
		if nb != nil && int(s) < nb.Words() {
			word = nb.Word(int(s))
		} else if v, ok := w.Indexes[b].Value(addr); ok {
			word = bitmap.ComputeWord(v, chunkStart, w.Indexes[b])
		}
		combined &= word
	}
	return combined
}

// majorityVoteHit implements spec.md §4.5 step 5: a chosen offset is an
// entry-point hit if more than 0.66*B batches land on a claimed target or
// known node, and the modal buildOffset among those hits covers more than
// half of them.
func (w *Walker) majorityVoteHit(current []uint32, chosenOffset int32) (EntryPointNode, bool) {
	b := len(current)
	if b == 0 {
		return EntryPointNode{}, false
	}

	offsetCounts := make(map[int32]int)
	structCounts := make(map[int]int)
	hits := 0
	for bi, addr := range current {
		v, ok := w.Indexes[bi].Value(addr)
		if !ok {
			continue
		}
		next := addrAdd(v, chosenOffset)
		// A known structure/entry-point node always wins on its own
		// recorded buildOffset; a bare claimed-target hit with no
		// structure membership on record still counts toward the
		// majority but contributes offset 0 to the modal tally.
		if n, ok := w.Known[next]; ok {
			hits++
			offsetCounts[n.BuildOffset]++
			structCounts[n.StructureID]++
			continue
		}
		if w.Targets != nil && bi < len(w.Targets) && w.Targets[bi] != nil && w.Targets[bi].Has(next) {
			hits++
			offsetCounts[0]++
		}
	}

	if float64(hits) <= w.Cfg.MajorityBatchFraction*float64(b) {
		return EntryPointNode{}, false
	}

	var modalOffset int32
	var modalCount int
	for off, c := range offsetCounts {
		if c > modalCount {
			modalOffset, modalCount = off, c
		}
	}
	total := 0
	for _, c := range offsetCounts {
		total += c
	}
	if total == 0 || float64(modalCount) <= w.Cfg.ModalOffsetFraction*float64(total) {
		return EntryPointNode{}, false
	}

	var modalStruct int
	var modalStructCount int
	for id, c := range structCounts {
		if c > modalStructCount {
			modalStruct, modalStructCount = id, c
		}
	}
	return EntryPointNode{StructureID: modalStruct, BuildOffset: modalOffset}, true
}

func (w *Walker) advance(current []uint32, chosenOffset int32) []uint32 {
	next := make([]uint32, len(current))
	for bi, addr := range current {
		v, ok := w.Indexes[bi].Value(addr)
		if !ok {
			next[bi] = 0
			continue
		}
		next[bi] = addrAdd(v, chosenOffset)
	}
	return next
}

func addrAdd(addr uint32, offset int32) uint32 {
	return uint32(int64(addr) + int64(offset))
}

func leastSetBit(word uint32) int {
	for k := 0; k < ChunkOffsets; k++ {
		if word&(1<<uint(k)) != 0 {
			return k
		}
	}
	return 0
}
