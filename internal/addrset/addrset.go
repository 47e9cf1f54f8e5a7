// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package addrset implements a flat, open-addressed hash set over uint32
// addresses. It backs every "pool" and "target-node set" the pipeline
// spec describes (node pool keys, per-batch target sets,
// processedBaseAddrs): batches run to ~10^6 rows, so a dedicated set
// keyed by a fast non-cryptographic hash avoids both the bucket overhead
// of Go's built-in map and the boxing a map[uint32]struct{} still pays
// per entry.
package addrset

import (
	"encoding/binary"

	"github.com/dgryski/go-farm"
)

// Set is an open-addressed hash set of uint32 values, using linear
// probing and farm.Hash32 for dispersion.
type Set struct {
	slots []uint32
	used  []bool // slots[i] is live iff used[i]
	count int
}

// New returns an empty Set sized for at least capacity elements.
func New(capacity int) *Set {
	n := nextPow2(capacity*2 + 8)
	return &Set{
		slots: make([]uint32, n),
		used:  make([]bool, n),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hash(v uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return farm.Hash32(b[:])
}

func (s *Set) index(v uint32) int {
	mask := len(s.slots) - 1
	i := int(hash(v)) & mask
	for {
		if !s.used[i] || s.slots[i] == v {
			return i
		}
		i = (i + 1) & mask
	}
}

// Add inserts v, first growing the table if it is already at least 70%
// full.
// It reports whether v was newly inserted.
func (s *Set) Add(v uint32) bool {
	if s.count*10 >= len(s.slots)*7 {
		s.grow()
	}
	i := s.index(v)
	if s.used[i] {
		return false
	}
	s.used[i] = true
	s.slots[i] = v
	s.count++
	return true
}

// Has reports whether v is in the set.
func (s *Set) Has(v uint32) bool {
	if len(s.slots) == 0 {
		return false
	}
	i := s.index(v)
	return s.used[i] && s.slots[i] == v
}

// Remove deletes v from the set, if present.
func (s *Set) Remove(v uint32) {
	if len(s.slots) == 0 {
		return
	}
	mask := len(s.slots) - 1
	i := int(hash(v)) & mask
	for s.used[i] {
		if s.slots[i] == v {
			s.used[i] = false
			s.count--
			// Re-insert the probe chain after the hole to preserve
			// lookups for values that hashed past this slot.
			j := (i + 1) & mask
			for s.used[j] {
				rv := s.slots[j]
				s.used[j] = false
				s.count--
				s.Add(rv)
				j = (j + 1) & mask
			}
			return
		}
		i = (i + 1) & mask
	}
}

func (s *Set) grow() {
	old := s.slots
	oldUsed := s.used
	n := len(old) * 2
	if n == 0 {
		n = 16
	}
	s.slots = make([]uint32, n)
	s.used = make([]bool, n)
	s.count = 0
	for i, v := range old {
		if oldUsed[i] {
			s.Add(v)
		}
	}
}

// Len reports the number of elements in the set.
func (s *Set) Len() int { return s.count }

// Each calls f for every element in the set, in unspecified order.
func (s *Set) Each(f func(v uint32)) {
	for i, v := range s.slots {
		if s.used[i] {
			f(v)
		}
	}
}

// Slice returns the set's elements as a new slice, in unspecified order.
func (s *Set) Slice() []uint32 {
	out := make([]uint32, 0, s.count)
	s.Each(func(v uint32) { out = append(out, v) })
	return out
}
