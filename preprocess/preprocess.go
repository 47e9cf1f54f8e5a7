// Copyright 2024 The ptrscan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package preprocess implements the pipeline's noise filtering and
// cross-batch classification stage (spec.md §4.2, C2): it absorbs up to
// MaxBatches batches, filters VTable anchors and self-referential rows,
// maintains the per-address node pool, and finally collapses that pool
// into the three disjoint, typed pools the detection stages consume.
package preprocess

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"

	"github.com/ptrscan/ptrscan/catalogue"
)

// MaxBatches is the largest number of batches a Preprocessor will absorb.
const MaxBatches = 10

// selfRefMin and selfRefMax bound the address-minus-value window that
// marks a row as a self-reference (spec.md §4.2, scenario 5).
const (
	selfRefMin = -44
	selfRefMax = 4
)

// vtableThreshold is the per-batch value frequency above which every row
// sharing that value is treated as a VTable anchor and discarded.
const vtableThreshold = 10

// Config holds the tunables spec.md §4.2/§6 assign defaults to.
type Config struct {
	// WarnBasePointerThreshold is the range-0 StaticStatic+StaticNode
	// count above which GetCounts recommends skipSticky with a warning.
	WarnBasePointerThreshold int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{WarnBasePointerThreshold: 50_000}
}

// Batch is one snapshot of (address, value) pairs, already range-validated
// and 4-byte aligned by the upstream CSV parser collaborator (spec.md §6).
type Batch struct {
	Addresses []uint32
	Values    []uint32
}

// Preprocessor owns the per-address node pool until Collapse.
type Preprocessor struct {
	sys *catalogue.System
	cfg Config

	batchCount int
	pool       map[uint32]*[MaxBatches]uint32
}

// New returns a Preprocessor for sys. Changing the active system requires
// constructing a new Preprocessor, matching spec.md §4.2's "changing the
// active system resets all state".
func New(sys *catalogue.System, cfg Config) *Preprocessor {
	return &Preprocessor{
		sys:  sys,
		cfg:  cfg,
		pool: make(map[uint32]*[MaxBatches]uint32),
	}
}

// BatchCount reports how many batches are currently absorbed.
func (p *Preprocessor) BatchCount() int { return p.batchCount }

// AddBatch filters and merges one batch into the node pool, returning the
// fresh counts exactly as GetCounts would report them afterward.
func (p *Preprocessor) AddBatch(b Batch) (Counts, error) {
	if p.batchCount >= MaxBatches {
		return Counts{}, ErrBatchLimitExceeded
	}
	idx := p.batchCount

	freq := make(map[uint32]int, len(b.Values))
	for _, v := range b.Values {
		freq[v]++
	}

	var kept int
	for i, addr := range b.Addresses {
		value := b.Values[i]
		if freq[value] > vtableThreshold {
			continue
		}

		masked := value
		if p.sys.Mask != nil {
			masked = value & *p.sys.Mask
		}
		diff := int64(addr) - int64(masked)
		if diff >= selfRefMin && diff <= selfRefMax {
			continue
		}

		slots, ok := p.pool[addr]
		if !ok {
			slots = &[MaxBatches]uint32{}
			p.pool[addr] = slots
		}
		slots[idx] = value
		kept++
	}

	p.batchCount++
	logger.Printf("batch %d: %d/%d rows kept, fingerprint=%08x", idx, kept, len(b.Addresses), fingerprint(b.Addresses))

	return p.GetCounts(), nil
}

// RemoveBatch removes batch i, shifting subsequent batches' slots down by
// one and pruning any address left with every slot zero.
func (p *Preprocessor) RemoveBatch(i int) error {
	if i < 0 || i >= p.batchCount {
		return ErrInvalidBatchIndex
	}
	for addr, slots := range p.pool {
		for b := i; b < p.batchCount-1; b++ {
			slots[b] = slots[b+1]
		}
		slots[p.batchCount-1] = 0
		if allZero(slots[:p.batchCount-1]) {
			delete(p.pool, addr)
		}
	}
	p.batchCount--
	return nil
}

func allZero(slots []uint32) bool {
	for _, v := range slots {
		if v != 0 {
			return false
		}
	}
	return true
}

// RangeCounts tallies StaticStatic and StaticNode addresses in one system
// range.
type RangeCounts struct {
	StaticStatics int
	StaticNodes   int
}

// Counts is the snapshot GetCounts and AddBatch return.
type Counts struct {
	PerRange          []RangeCounts
	DynamicNodeTotal  int
	SkipStickyAdvised bool
	Warning           string
}

// GetCounts computes per-range StaticStatic/StaticNode counts and the
// total DynamicNode count in a single pass, and attaches the soft
// recommendation spec.md §4.2 describes. skipSticky is always
// recommended true; the warning text appears only once range 0's
// StaticStatic+StaticNode total exceeds Config.WarnBasePointerThreshold.
func (p *Preprocessor) GetCounts() Counts {
	ranges := p.sys.Ranges().Ranges()
	c := Counts{
		PerRange:          make([]RangeCounts, len(ranges)),
		SkipStickyAdvised: true,
	}

	for addr, slots := range p.pool {
		switch classifySlots(slots[:p.batchCount]) {
		case classStaticStatic:
			if idx := p.sys.Ranges().Index(catalogue.Address(addr)); idx != catalogue.NoRangeIndex {
				c.PerRange[idx].StaticStatics++
			}
		case classStaticNode:
			if idx := p.sys.Ranges().Index(catalogue.Address(addr)); idx != catalogue.NoRangeIndex {
				c.PerRange[idx].StaticNodes++
			}
		case classDynamic:
			c.DynamicNodeTotal++
		}
	}

	if len(c.PerRange) > 0 {
		t := c.PerRange[0].StaticStatics + c.PerRange[0].StaticNodes
		if t > p.cfg.WarnBasePointerThreshold {
			c.Warning = fmt.Sprintf("range 0 has %d candidate base pointers; scan time will be high, skipSticky is recommended", t)
		}
	}

	return c
}

type classification int

const (
	classDynamic classification = iota
	classStaticStatic
	classStaticNode
)

// classifySlots implements spec.md §3's classification rule over the
// slots belonging to the currently active batches only.
func classifySlots(slots []uint32) classification {
	if len(slots) == 0 {
		return classDynamic
	}
	first := slots[0]
	allEqual := true
	for _, v := range slots {
		if v == 0 {
			return classDynamic
		}
		if v != first {
			allEqual = false
		}
	}
	if allEqual {
		return classStaticStatic
	}
	return classStaticNode
}

// fingerprint is a diagnostic-only HighwayHash-128 checksum of a batch's
// address set, logged at the AddBatch stage boundary. It has no bearing
// on pipeline semantics and uses a fixed all-zero key: spec.md §1 lists
// "security boundaries around input" as an explicit non-goal, so this is
// purely a cheap way to tell two batches apart in a log, not a MAC.
var fingerprintKey = make([]byte, 32)

func fingerprint(addrs []uint32) uint64 {
	buf := make([]byte, len(addrs)*4)
	for i, a := range addrs {
		binary.LittleEndian.PutUint32(buf[i*4:], a)
	}
	sum := highwayhash.Sum128(buf, fingerprintKey)
	return binary.LittleEndian.Uint64(sum[:8])
}
