/*
 * memtestgo - Per-worker chunk allocator.
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

// Package chunk computes the aligned sub-range of a VM-map entry that a
// single worker core owns during a parallel test pass.
package chunk

import "memtestgo/engine/window"

// roundDown returns value rounded down to the nearest multiple of align.
func roundDown(value uintptr, align uintptr) uintptr {
	return value &^ (align - 1)
}

// Calculate splits mapping across numActive workers and returns the
// [start, end] testword range owned by workerID, where end is the address
// of the worker's last testword. align is the required start alignment in
// bytes (at least sizeof(testword), up to 256 for SIMD tests). The last
// worker's range runs to mapping.End. An empty range is signalled by
// end < start.
//
// Ported from the teacher's test-primitive style directly off
// tests/test_helper.c:calculate_chunk, with the NUMA/proximity-domain split
// dropped: this module has no NUMA topology to report.
func Calculate(mapping window.Mapping, workerID, numActive int, align uintptr) (start, end uintptr) {
	if mapping.Empty() {
		return 1, 0
	}
	if workerID < 0 {
		workerID = 0
	}
	if numActive <= 1 {
		return mapping.Start, mapping.End
	}

	segmentSize := mapping.End - mapping.Start + testwordSize
	chunkSize := roundDown(segmentSize/uintptr(numActive), align)
	if chunkSize == 0 {
		return 1, 0
	}

	start = mapping.Start + chunkSize*uintptr(workerID)
	end = start + chunkSize - testwordSize
	if end > mapping.End || workerID == numActive-1 {
		end = mapping.End
	}
	return start, end
}

const testwordSize = 8
