// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import "github.com/ptrscan/ptrscan/internal/bitmap"

// Bitmaps holds one NodeBitmap per (address, batch), or nil where
// precompute coverage was skipped and the DFS must fall back to an
// on-the-fly ComputeWord call (spec.md §4.5, "nodes without a bitmap fall
// through to the on-the-fly path").
type Bitmaps struct {
	s     int
	words map[uint32][]*bitmap.NodeBitmap
}

// Words reports the precomputed chunk count S every bitmap in this store
// covers.
func (b *Bitmaps) Words() int { return b.s }

// For returns addr's precomputed bitmap for batch, or nil if addr has no
// precomputed coverage.
func (b *Bitmaps) For(addr uint32, batchIdx int) *bitmap.NodeBitmap {
	nbs := b.words[addr]
	if batchIdx >= len(nbs) {
		return nil
	}
	return nbs[batchIdx]
}

// Precompute builds the traversal-node bitmap store (spec.md §4.5,
// "traversal bitmap precompute"). traversalAddrs is the union of every
// batch's addresses minus the base pointer set; indexes is one BatchIndex
// per batch, giving both membership and per-batch value lookups.
func Precompute(traversalAddrs []uint32, indexes []BatchIndex, maxBreadth uint32) *Bitmaps {
	n := len(traversalAddrs)
	b := len(indexes)
	s := bitmap.WordCount(maxBreadth, n, b)

	store := &Bitmaps{s: s, words: make(map[uint32][]*bitmap.NodeBitmap, n)}
	for _, addr := range traversalAddrs {
		nbs := make([]*bitmap.NodeBitmap, b)
		for batchIdx, idx := range indexes {
			v, ok := idx.Value(addr)
			if !ok {
				continue
			}
			nb := bitmap.NewNodeBitmap(s)
			nb.Fill(v, idx)
			nbs[batchIdx] = nb
		}
		store.words[addr] = nbs
	}
	return store
}
