// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"context"
	"runtime"
)

// YieldEvery and StreamEvery are the driver loop's cooperative cadences
// (spec.md §4.5, "driver loop").
const (
	YieldEvery  = 100
	StreamEvery = 1000
)

// Sink receives streamed findings every StreamEvery base pointers, and a
// progress callback every YieldEvery (spec.md §6, "event sink").
type Sink interface {
	Stream(Result)
	Progress(processed, total int)
}

// DriveOptions configures one full driver pass over a base pointer set.
type DriveOptions struct {
	EarlyOutBasePointer bool
	EarlyOutTarget      bool
}

// Drive iterates basePointers in order, running the Walker against each
// and streaming accumulated findings to sink every StreamEvery pointers,
// yielding to ctx every YieldEvery (spec.md §4.5, §5). It returns early,
// after streaming whatever it has, on ctx cancellation or on an
// early-out condition the caller requested.
func Drive(ctx context.Context, w *Walker, basePointers []BasePointer, sink Sink, opts DriveOptions) error {
	var pending Result

	flush := func() {
		if len(pending.TargetPaths) == 0 && len(pending.EntryHits) == 0 {
			return
		}
		sink.Stream(pending)
		pending = Result{}
	}

	for i, bp := range basePointers {
		target, hit := w.Walk(bp)
		if target != nil {
			pending.TargetPaths = append(pending.TargetPaths, *target)
		}
		if hit != nil {
			pending.EntryHits = append(pending.EntryHits, *hit)
		}

		if (i+1)%YieldEvery == 0 {
			sink.Progress(i+1, len(basePointers))
			runtime.Gosched()
			select {
			case <-ctx.Done():
				flush()
				return ctx.Err()
			default:
			}
		}

		if (i+1)%StreamEvery == 0 {
			flush()
		}

		if opts.EarlyOutTarget && target != nil {
			flush()
			return nil
		}
		if opts.EarlyOutBasePointer {
			flush()
			return nil
		}
	}

	flush()
	sink.Progress(len(basePointers), len(basePointers))
	return nil
}
