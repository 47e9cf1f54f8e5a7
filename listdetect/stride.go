// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listdetect

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DominantStride returns the most frequent consecutive gap between
// nodes' addresses sorted ascending, falling back to 4 for a single-node
// chain (spec.md §4.4). Frequency ties are broken by the smallest gap.
func DominantStride(nodes []uint32) int32 {
	if len(nodes) < 2 {
		return 4
	}
	sorted := append([]uint32(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, float64(sorted[i]-sorted[i-1]))
	}

	// stat.Mode reports the modal count but may return any one of several
	// equally frequent values, so take the smallest gap reaching that count.
	_, count := stat.Mode(gaps, nil)
	sort.Float64s(gaps)
	for i, j := 0, 0; i < len(gaps); i = j {
		for j = i; j < len(gaps) && gaps[j] == gaps[i]; j++ {
		}
		if float64(j-i) == count {
			return int32(gaps[i])
		}
	}
	return 4
}
