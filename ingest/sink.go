// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import (
	"log"

	"github.com/ptrscan/ptrscan/pipeline"
)

// LogSink is a minimal pipeline.EventSink that writes stage transitions
// and periodic progress to a *log.Logger, standing in for whatever
// progress/event UI the host embeds (spec.md §6, "Event sink").
type LogSink struct {
	L *log.Logger
}

func (s LogSink) Progress(percent int, status string) {
	s.L.Printf("progress: %s %d%%", status, percent)
}

func (s LogSink) Stage(stage string, status pipeline.StageStatus) {
	s.L.Printf("stage %s: %s", stage, status)
}

func (s LogSink) Findings(static, dynamic int) {
	s.L.Printf("findings so far: static=%d dynamic=%d", static, dynamic)
}
