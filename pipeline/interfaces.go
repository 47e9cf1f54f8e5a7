// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

// EventSink is the host-supplied progress/stage/finding-count callback
// set (spec.md §6, "Event sink"). The orchestrator publishes at least
// once per stage boundary and approximately every 100 base pointers
// during the scan stage.
type EventSink interface {
	// Progress reports percent complete (0..100) for the current stage.
	Progress(percent int, status string)
	// Stage reports a stage transition.
	Stage(stage string, status StageStatus)
	// Findings reports the running static/dynamic finding counts.
	Findings(static, dynamic int)
}

// StageStatus names one of the stage-transition states spec.md §6
// defines.
type StageStatus string

const (
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageSkipped   StageStatus = "skipped"
	StageError     StageStatus = "error"
)

// Stage names the pipeline stages an EventSink observes (spec.md §6).
const (
	StageNameStatic     = "static"
	StageNameDynamic    = "dynamic"
	StageNamePrecompute = "precompute"
	StageNameScan       = "scan"
	StageNameGenerate   = "generate"
)

// Encoder is the opaque achievement-logic emitter (spec.md §6, "Encoder
// interface"): it turns one Finding into whatever string representation
// external tooling consumes. The core never inspects that representation.
type Encoder interface {
	Emit(Finding) error
}

// NopEncoder discards every finding; useful for dry runs and tests that
// only care about counts.
type NopEncoder struct{}

func (NopEncoder) Emit(Finding) error { return nil }

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Progress(int, string)       {}
func (NopSink) Stage(string, StageStatus)  {}
func (NopSink) Findings(int, int)          {}
