// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ingest adapts the host's CSV batch files into the core's
// (address, value) arrays (spec.md §4.7, C7 "external interface
// component"). A batch file is one memory snapshot: two columns of
// hexadecimal 32-bit integers (with or without a 0x prefix), one
// (address, value) pair per line.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/ptrscan/ptrscan/preprocess"
)

// Batch is one parsed snapshot, range-validated and ready for
// preprocess.Batch (spec.md §6, "CSV parser interface").
type Batch struct {
	Addresses []uint32
	Values    []uint32
}

// LoadBatch mmaps path and parses it as a two-column CSV batch file.
// Mapping the file instead of reading it whole keeps memory flat for the
// multi-hundred-megabyte snapshots these batches can reach; rows failing
// the alignment/range checks are dropped silently, matching
// InconsistentBatch's "filtered silently by the parser" policy
// (spec.md §7).
func LoadBatch(path string, validate func(addr, value uint32) bool) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("ingest: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Batch{}, fmt.Errorf("ingest: stating %s: %w", path, err)
	}
	if info.Size() == 0 {
		return Batch{}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Batch{}, fmt.Errorf("ingest: mmapping %s: %w", path, err)
	}
	defer m.Unmap()

	adviseSequential(m)

	return parseCSV(bytes.NewReader(m), validate)
}

func parseCSV(r io.Reader, validate func(addr, value uint32) bool) (Batch, error) {
	var b Batch
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		addr, value, ok := parseRow(line)
		if !ok {
			continue
		}
		if validate != nil && !validate(addr, value) {
			continue
		}
		b.Addresses = append(b.Addresses, addr)
		b.Values = append(b.Values, value)
	}
	if err := sc.Err(); err != nil {
		return Batch{}, fmt.Errorf("ingest: scanning batch: %w", err)
	}
	return b, nil
}

func parseRow(line string) (addr, value uint32, ok bool) {
	cols := strings.Split(line, ",")
	if len(cols) != 2 {
		return 0, 0, false
	}
	a, err := parseUint32(strings.TrimSpace(cols[0]))
	if err != nil {
		return 0, 0, false
	}
	v, err := parseUint32(strings.TrimSpace(cols[1]))
	if err != nil {
		return 0, 0, false
	}
	return a, v, true
}

func parseUint32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// ValidateRange returns a validate func for LoadBatch that accepts only
// 4-byte aligned values within [min, max], honoring dual-region systems'
// extra bit-31/bit-28 constraint via the caller's own region closure
// (spec.md §6).
func ValidateRange(min, max uint32, extra func(value uint32) bool) func(addr, value uint32) bool {
	return func(_ uint32, value uint32) bool {
		if value&3 != 0 {
			return false
		}
		if value < min || value > max {
			return false
		}
		if extra != nil && !extra(value) {
			return false
		}
		return true
	}
}
