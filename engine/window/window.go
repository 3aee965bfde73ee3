/*
 * memtestgo - Virtual test window mapper interface.
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

// Package window defines the interface the pass driver uses to map a
// gigabyte-sized slice of physical memory into the engine's test window, and
// a simulated implementation suitable for running and testing the engine
// without real physical memory or ring-0 privilege.
package window

import "fmt"

const (
	// PageShift is log2(page size in bytes).
	PageShift = 12
	// PageSize is the page size in bytes.
	PageSize = 1 << PageShift
	// WindowSize is the fixed size of the virtual test window (1 GiB).
	WindowSize = 1 << 30
	// WindowPages is the number of pages covered by one test window.
	WindowPages = WindowSize / PageSize
)

// Segment is a page-aligned, half-open range of the physical memory map:
// [StartPage, EndPage).
type Segment struct {
	StartPage uintptr
	EndPage   uintptr
}

// Mapping is a VM-map entry: the intersection of the currently mapped
// window with one physical segment, expressed as a contiguous run of
// testwords. Invariants: Start <= End; the byte range
// [Start, End+sizeof(testword)) lies within the current window.
type Mapping struct {
	PhysBase uintptr // physical page backing the first testword of this mapping
	Start    uintptr // virtual address of the first testword
	End      uintptr // virtual address of the last testword
}

// Empty reports whether the mapping covers no testwords.
func (m Mapping) Empty() bool {
	return m.End < m.Start
}

// Mapper grants the pass driver access to physical memory without the core
// ever touching page tables directly. MapWindow and MapDeviceRegion are the
// only two operations spec.md's window-mapper interface specifies; PageOf,
// FirstWord and LastWord are small reverse-mapping helpers that complete it.
type Mapper interface {
	// Segments returns the physical memory map, an ordered, non-overlapping
	// sequence of page-aligned segments covering usable RAM. Computed once
	// at startup and read-only thereafter.
	Segments() []Segment

	// MapDeviceRegion grants access to a non-memory region (frame buffer,
	// ACPI, UART) for the run's lifetime, or only until testing starts if
	// onlyForStartup is set. Returns 0 if the device-map slot table is
	// exhausted.
	MapDeviceRegion(physAddr uintptr, size uintptr, onlyForStartup bool) uintptr

	// MapWindow points the fixed-location test window at the physical
	// gigabyte containing startPage. Returns false if the platform cannot
	// address that range.
	MapWindow(startPage uintptr) bool

	// PageOf reverse-maps a virtual address in the current window back to
	// its physical page number.
	PageOf(virtAddr uintptr) uintptr

	// FirstWord returns the first testword-aligned virtual address of page.
	FirstWord(page uintptr) uintptr

	// LastWord returns the last testword-aligned virtual address of page.
	LastWord(page uintptr) uintptr

	// ReadWord and WriteWord perform the actual testword access through the
	// currently mapped window. They are the only points at which the test
	// primitives (C4) touch memory.
	ReadWord(virtAddr uintptr) (uint64, error)
	WriteWord(virtAddr uintptr, value uint64) error
}

// BuildMapping intersects a window [winStart, winStart+WindowSize) with a
// physical segment, clipped to [lowerPage, upperPage] inclusive page limits
// from the run configuration.
func BuildMapping(seg Segment, winStartPage uintptr, lowerPage, upperPage uintptr, m Mapper) Mapping {
	winEndPage := winStartPage + WindowPages

	start := seg.StartPage
	if start < winStartPage {
		start = winStartPage
	}
	if start < lowerPage {
		start = lowerPage
	}
	end := seg.EndPage
	if end > winEndPage {
		end = winEndPage
	}
	if end > upperPage+1 {
		end = upperPage + 1
	}
	if end <= start {
		return Mapping{Start: 1, End: 0}
	}

	return Mapping{
		PhysBase: start,
		Start:    m.FirstWord(start),
		End:      m.LastWord(end - 1),
	}
}

// ErrOutOfRange is returned by a Mapper when an access falls outside the
// window currently mapped. It is the idiomatic-Go narrowing of the
// "platform trap" error class spec.md describes for a hosted engine: a page
// fault becomes a Go error return instead of a CPU exception.
type ErrOutOfRange struct {
	Addr uintptr
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("window: address %#x is outside the mapped window", e.Addr)
}
