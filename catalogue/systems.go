// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalogue

// The static system table. Entries mirror the shape spec.md §6 describes
// for "system configuration": name, optional mask, one or two memory
// regions, 24-bit/big-endian flags and a range mode. RangeMode strings
// here use both "quarter" and the source table's "quater" misspelling on
// purpose, to exercise normalizeRangeMode's alias handling.
func init() {
	mask32 := uint32(0x3FFFFFFF)

	Register(System{
		Name:   "generic32",
		Region: MemoryRange{Min: 0x00000000, Max: 0x01FFFFFF},
	}, "full")

	Register(System{
		Name:   "generic32-halved",
		Region: MemoryRange{Min: 0x80000000, Max: 0x81FFFFFF},
	}, "half")

	Register(System{
		Name:   "generic32-quartered",
		Mask:   &mask32,
		Region: MemoryRange{Min: 0x00000000, Max: 0x1FFFFFFF},
	}, "quater") // source spelling, normalized to ModeQuarter

	Register(System{
		Name:         "generic32-dual",
		Region:       MemoryRange{Min: 0x80000000, Max: 0x81FFFFFF},
		Region2:      &MemoryRange{Min: 0x90000000, Max: 0x91FFFFFF},
		UseBigEndian: true,
	}, "dual")

	Register(System{
		Name:     "generic24",
		Use24Bit: true,
		Region:   MemoryRange{Min: 0x000000, Max: 0xFFFFFF},
	}, "quarter")
}
