/*
 * memtestgo - Simulated window mapper backed by Go memory.
 *
 * Copyright 2025, memtestgo Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package window

import "sync"

// testwordBytes is the width of a testword: this module targets 64-bit
// hosts only (see DESIGN.md for the resolved Open Question on 32-bit width).
const testwordBytes = 8

// Fault lets a test harness inject a deliberate miscompare at a physical
// address, standing in for real bad RAM.
type Fault struct {
	Page    uintptr
	Offset  uintptr
	Corrupt func(good uint64) (bad uint64)
}

// SimMapper implements Mapper over a single contiguous Go testword arena
// ([]uint64). It simulates the page-table remap of the real engine:
// addresses below 2 GiB are treated as identity-mapped, everything at or
// above is aliased into the 1 GiB window last selected by MapWindow,
// matching system/vmem.c's map_window/page_of split.
type SimMapper struct {
	mu       sync.Mutex
	arena    []uint64 // one slot per testword of simulated RAM
	segments []Segment
	window   uintptr // currently mapped window index (window 0/1 below 2GiB are identity)
	faults   map[uintptr]Fault
	devSlots int
}

const maxDeviceSlots = 256

// NewSimMapper creates a simulated mapper over memPages pages of RAM,
// reporting it as a single contiguous segment starting at page 0.
func NewSimMapper(memPages uintptr) *SimMapper {
	return &SimMapper{
		arena:    make([]uint64, memPages*PageSize/testwordBytes),
		segments: []Segment{{StartPage: 0, EndPage: memPages}},
		faults:   make(map[uintptr]Fault),
	}
}

// InjectFault registers a deliberate corruption at (page, offset), applied
// the next time that testword is written through WriteWord.
func (s *SimMapper) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[f.Page<<PageShift+f.Offset] = f
}

func (s *SimMapper) Segments() []Segment {
	return s.segments
}

func (s *SimMapper) MapDeviceRegion(_ uintptr, _ uintptr, _ bool) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devSlots >= maxDeviceSlots {
		return 0
	}
	s.devSlots++
	// Device regions are never read through ReadWord/WriteWord by the test
	// primitives; the caller only needs a non-zero handle.
	return 1
}

func (s *SimMapper) MapWindow(startPage uintptr) bool {
	window := startPage >> (30 - PageShift)
	s.mu.Lock()
	s.window = window
	s.mu.Unlock()
	return true
}

func (s *SimMapper) PageOf(virtAddr uintptr) uintptr {
	page := virtAddr >> PageShift
	if page >= (2 << (30 - PageShift)) {
		page %= 1 << (30 - PageShift)
		s.mu.Lock()
		w := s.window
		s.mu.Unlock()
		page += w << (30 - PageShift)
	}
	return page
}

func (s *SimMapper) FirstWord(page uintptr) uintptr {
	return page << PageShift
}

func (s *SimMapper) LastWord(page uintptr) uintptr {
	return (page<<PageShift + PageSize) - testwordBytes
}

func (s *SimMapper) slot(virtAddr uintptr) (int, error) {
	// The caller holds s.mu, so the PageOf mapping is applied inline here.
	page := virtAddr >> PageShift
	if page >= (2 << (30 - PageShift)) {
		page = page%(1<<(30-PageShift)) + s.window<<(30-PageShift)
	}
	idx := int(page<<PageShift+(virtAddr%PageSize)) / testwordBytes
	if idx < 0 || idx >= len(s.arena) {
		return 0, ErrOutOfRange{Addr: virtAddr}
	}
	return idx, nil
}

func (s *SimMapper) ReadWord(virtAddr uintptr) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.slot(virtAddr)
	if err != nil {
		return 0, err
	}
	return s.arena[idx], nil
}

func (s *SimMapper) WriteWord(virtAddr uintptr, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.slot(virtAddr)
	if err != nil {
		return err
	}
	if f, ok := s.faults[uintptr(idx)*testwordBytes+virtAddr%testwordBytes]; ok {
		value = f.Corrupt(value)
	}
	s.arena[idx] = value
	return nil
}
