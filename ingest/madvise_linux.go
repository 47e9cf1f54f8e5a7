// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import "golang.org/x/sys/unix"

// adviseSequential hints the kernel that a mapped batch file will be read
// start-to-end exactly once, letting it read ahead more aggressively and
// drop pages behind the scan as they're consumed.
func adviseSequential(m []byte) {
	if len(m) == 0 {
		return
	}
	_ = unix.Madvise(m, unix.MADV_SEQUENTIAL)
}
