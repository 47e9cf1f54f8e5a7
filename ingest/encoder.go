// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import (
	"fmt"
	"io"

	"github.com/ptrscan/ptrscan/pipeline"
)

// LineEncoder is a stand-in for the real achievement-logic string
// encoder (spec.md §1, "explicitly out of scope ... the achievement-
// logic string encoder"): it renders each Finding as one opaque-enough
// debug line. Real deployments wire pipeline.Encoder to whatever
// produces the actual condition-expression strings; this implementation
// exists so cmd/ptrscan has something concrete to run against.
type LineEncoder struct {
	W io.Writer
}

func (e LineEncoder) Emit(f pipeline.Finding) error {
	_, err := fmt.Fprintf(e.W, "%d\t%s\troot=%#08x\tnodes=%d\ttarget=%v\n",
		f.ID, f.Type, f.Root, f.NodeCount, f.IsTarget)
	return err
}
