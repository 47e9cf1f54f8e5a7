// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package ingest

// adviseSequential is a no-op outside Linux: madvise is not part of this
// package's supported surface on other kernels.
func adviseSequential(m []byte) {}
