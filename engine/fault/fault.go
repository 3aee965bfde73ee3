/*
 * memtestgo - Fault aggregation: per-run statistics and address-pattern lists.
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

// Package fault condenses raw miscompares into the structures spec.md §4.5
// describes: constant-space per-run statistics for summary mode, and the
// badram/memmap/pages address-pattern lists for the other reporting modes.
package fault

import "math/bits"

// ErrorLimit caps the uncorrectable error counter; it also bounds how many
// miscompares are folded into TotalBits.
const ErrorLimit = 999_999_999_999

// CECCLimit caps the correctable-ECC counter at a narrower width than
// ErrorLimit. The asymmetry is preserved unchanged: it looks deliberate in
// the original (display column widths) but is otherwise undocumented.
const CECCLimit = 999_999

const testwordBytes = 8

// PageOffset addresses a testword as (page, byte offset within page).
type PageOffset struct {
	Page   uint64
	Offset uint64
}

func (p PageOffset) less(o PageOffset) bool {
	if p.Page != o.Page {
		return p.Page < o.Page
	}
	return p.Offset < o.Offset
}

func (p PageOffset) greater(o PageOffset) bool {
	if p.Page != o.Page {
		return p.Page > o.Page
	}
	return p.Offset > o.Offset
}

// Stats is the constant-space per-run statistics accumulator used by
// summary mode. Every update is conditional on observing a new extreme;
// otherwise it is a cheap no-op.
type Stats struct {
	MinAddr        PageOffset
	MaxAddr        PageOffset
	BadBits        uint64 // OR of every observed XOR
	MinBits        int
	MaxBits        int
	TotalBits      uint64
	MaxRun         uint64
	CurrentRun     uint64
	LastAddr       uint64
	LastXor        uint64
	ErrorCount     uint64 // uncorrectable, saturates at ErrorLimit
	ErrorCountCECC uint64 // correctable ECC, saturates at CECCLimit

	sawAddr bool
	sawBits bool
}

// Reset clears all statistics, as done at pass 0 of each run.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Record folds one miscompare (page, offset, xor of good vs bad, absolute
// address for run-length tracking) into the statistics.
func (s *Stats) Record(page, offset uint64, addr uint64, xor uint64) {
	cur := PageOffset{Page: page, Offset: offset}

	if !s.sawAddr {
		s.MinAddr = cur
		s.MaxAddr = cur
		s.sawAddr = true
	} else {
		if cur.less(s.MinAddr) {
			s.MinAddr = cur
		}
		if cur.greater(s.MaxAddr) {
			s.MaxAddr = cur
		}
	}

	s.BadBits |= xor

	bitCount := bits.OnesCount64(xor)
	if !s.sawBits || bitCount < s.MinBits {
		s.MinBits = bitCount
	}
	if bitCount > s.MaxBits {
		s.MaxBits = bitCount
	}
	s.sawBits = true

	if s.ErrorCount < ErrorLimit {
		s.TotalBits += uint64(bitCount)
		s.ErrorCount++
	}

	// A run continues only if this address immediately follows the last one
	// recorded and carries the identical XOR pattern.
	if s.CurrentRun > 0 && addr == s.LastAddr+testwordBytes && xor == s.LastXor {
		s.CurrentRun++
	} else {
		s.CurrentRun = 1
	}
	if s.CurrentRun > s.MaxRun {
		s.MaxRun = s.CurrentRun
	}
	s.LastAddr = addr
	s.LastXor = xor
}

// RecordCECC folds one corrected single-bit ECC event into the saturating
// CECC counter, independent of the uncorrectable-error bookkeeping above.
func (s *Stats) RecordCECC() {
	if s.ErrorCountCECC < CECCLimit {
		s.ErrorCountCECC++
	}
}
