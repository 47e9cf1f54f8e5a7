// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preprocess

import (
	"log"
	"os"
)

// PrintDebugInfo toggles whether this package's logger writes to stderr,
// following the same pattern as wasm/log.go and validate/log.go in
// go-interpreter/wagon: a package-local, discard-by-default logger rather
// than a shared global one.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	logger = log.New(debugWriter{}, "preprocess: ", log.Lshortfile)
}

// debugWriter checks PrintDebugInfo on every write, so setting the flag
// after package initialisation still takes effect.
type debugWriter struct{}

func (debugWriter) Write(p []byte) (int, error) {
	if PrintDebugInfo {
		return os.Stderr.Write(p)
	}
	return len(p), nil
}
