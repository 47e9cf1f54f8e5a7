// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/ptrscan/ptrscan/internal/addrset"
	"github.com/ptrscan/ptrscan/listdetect"
	"github.com/ptrscan/ptrscan/scan"
)

// streamer owns the encoder-facing ID namespace and the
// processedBaseAddrs dedup set spec.md §4.6 describes ("roots are added
// to processedBaseAddrs so subsequent streams never duplicate").
type streamer struct {
	enc       Encoder
	ids       *idAllocator
	processed *addrset.Set
}

func newStreamer(enc Encoder) *streamer {
	return &streamer{enc: enc, ids: newIDAllocator(), processed: addrset.New(4096)}
}

// streamDetection emits every static/dynamic-pass finding whose root has
// not already been streamed, in the order the detection passes produced
// them (spec.md §5, "Ordering guarantees": reproducible finding order).
func (s *streamer) streamDetection(statics []listdetect.StaticList, dynamics []listdetect.DynamicList, eps []listdetect.EntryPointRecord, injected *addrset.Set) error {
	for _, st := range statics {
		if s.processed.Has(st.Root) {
			continue
		}
		if err := s.enc.Emit(findingFromStaticList(st, s.ids, injected)); err != nil {
			return err
		}
		s.processed.Add(st.Root)
	}
	for _, d := range dynamics {
		if s.processed.Has(d.Root) {
			continue
		}
		if err := s.enc.Emit(findingFromDynamicList(d, s.ids, injected)); err != nil {
			return err
		}
		s.processed.Add(d.Root)
	}
	for _, e := range eps {
		if s.processed.Has(e.Root) {
			continue
		}
		if err := s.enc.Emit(findingFromEntryPointRecord(e, s.ids, injected)); err != nil {
			return err
		}
		s.processed.Add(e.Root)
	}
	return nil
}

// scanStreamer adapts the forward scanner's Sink contract (scan.Sink) to
// the orchestrator's streamer + EventSink, converting scan.Result batches
// into Finding records as they arrive (spec.md §4.5 "driver loop", §4.6
// "Finding streaming").
type scanStreamer struct {
	*streamer
	injected  *addrset.Set
	addrsByID map[int][]uint32
	eventSink EventSink
	err       error

	targetPathCount int
	entryHitCount   int
}

func (s *scanStreamer) Stream(r scan.Result) {
	if s.err != nil {
		return
	}
	for _, tp := range r.TargetPaths {
		if s.processed.Has(tp.BasePointer) {
			continue
		}
		if err := s.enc.Emit(findingFromTargetPath(tp, s.ids)); err != nil {
			s.err = err
			return
		}
		s.processed.Add(tp.BasePointer)
		s.targetPathCount++
	}
	for _, h := range r.EntryHits {
		if s.processed.Has(h.BasePointer) {
			continue
		}
		if err := s.enc.Emit(findingFromEntryHit(h, s.ids, s.injected, s.addrsByID)); err != nil {
			s.err = err
			return
		}
		s.processed.Add(h.BasePointer)
		s.entryHitCount++
	}
}

func (s *scanStreamer) Progress(processed, total int) {
	pct := 100
	if total > 0 {
		pct = processed * 100 / total
	}
	s.eventSink.Progress(pct, StageNameScan)
}
