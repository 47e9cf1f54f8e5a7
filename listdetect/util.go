// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listdetect

import (
	"modernc.org/sortutil"
)

// OffsetStep and OffsetMax bound the offset sweep both detection passes
// perform (spec.md §4.4: "0x00, 0x04, ..., 0x3C").
const (
	OffsetStep = 4
	OffsetMax  = 0x3C
)

// Config holds the static pass's chain-acceptance thresholds (spec.md
// §4.4: "configured ghost cap (default 10), configured minimum (default
// 15)"). The dynamic pass reuses MinChainLength but always forces its
// own ghost budget to 0, since a dynamic list's nodes must all be
// present in the one batch being walked.
type Config struct {
	MinChainLength int
	MaxGhostNodes  int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MinChainLength: 15, MaxGhostNodes: 10}
}

// Offsets returns the offset sweep order, smallest first.
func Offsets() []int32 {
	out := make([]int32, 0, OffsetMax/OffsetStep+1)
	for o := int32(0); o <= OffsetMax; o += OffsetStep {
		out = append(out, o)
	}
	return out
}

func sortedKeysBool(m map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sortutil.Uint32Slice(out).Sort()
	return out
}

// sortAddrs sorts nodes ascending, the order spec.md §3 requires for a
// structure's Addresses field, returning a sorted copy so the caller's
// walk-order slice is left untouched.
func sortAddrs(nodes []uint32) []uint32 {
	out := append([]uint32(nil), nodes...)
	sortutil.Uint32Slice(out).Sort()
	return out
}
