/*
 * memtestgo - Memory-stress test primitives.
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

// Package pattern implements the fixed catalog of memory-stress test
// primitives: the actual data patterns hammered across a worker's chunk of
// memory every pass. Each primitive is ported off one file under
// tests/*.c, keeping the same pointer-walking shape (SPIN_SIZE-bounded
// blocks, a tick after each block, a bail check after each tick) so the
// tick accounting a dummy calibration run produces lines up with a real
// run regardless of which primitive is active.
package pattern

import (
	"golang.org/x/sys/cpu"

	"memtestgo/engine/window"
)

// spinWords is the number of testwords processed between each tick/bail
// check, matching SPIN_SIZE in tests/test_helper.h.
const spinWords = 1 << 27

const testwordBytes = 8
const testwordBits = 64
const spinSizeBytes = spinWords * testwordBytes

// Reporter receives miscompares found while running a primitive. It is
// satisfied by *memtestgo/engine/report.Reporter.
type Reporter interface {
	AddrError(cpu, pass, test int, addr uint64)
	DataError(cpu, pass, test int, addr, good, bad uint64, useForBadram bool)
}

// Context bundles everything a primitive needs to run one invocation:
// the memory it owns, where to send miscompares, and the tick/bail
// hooks the pass driver uses to update progress and honour operator
// interrupts.
type Context struct {
	CPU    int // -1 identifies the dummy calibration worker
	Pass   int
	Test   int
	Mapper window.Mapper
	Chunks []window.Mapping // this worker's share of each VM segment, in order
	Report Reporter
	Tick   func()
	Bail   func() bool
	SIMD   int // SIMD width in testwords; 1 means scalar only
}

// bailout is returned internally by the block-walking helpers to unwind
// out of a primitive the moment Bail() reports true, mirroring the
// original's BAILOUT macro (an early return that still reports ticks
// completed so far).
type bailout struct{}

// forEachChunk walks every chunk this worker owns, splitting each into
// spinSize-word blocks. fn is invoked once per block with the block's
// [start,end] inclusive testword address range; ticks is incremented and
// Bail is checked after each block. If fn panics with bailout (via
// ctx.checkBail), forEachChunk stops and returns the tick count gathered
// so far.
func (ctx *Context) forEachChunk(fn func(start, end uintptr)) (ticks int) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
	}()

	for _, m := range ctx.Chunks {
		if m.Empty() {
			continue
		}
		start, end := m.Start, m.End
		p, pe := start, start
		atEnd := false
		for {
			if end-pe >= spinSizeBytes {
				pe += spinSizeBytes - testwordBytes
			} else {
				atEnd = true
				pe = end
			}
			ticks++
			if ctx.CPU >= 0 {
				fn(p, pe)
				ctx.checkBail()
			}
			if atEnd {
				break
			}
			pe += testwordBytes
			p = pe
		}
	}
	return ticks
}

// forEachChunkReverse walks every chunk this worker owns from its last
// block back to its first, mirroring forEachChunk's block splitting but
// in the opposite direction. Used by the top-down check pass of the
// walking-one moving-inversions primitive.
func (ctx *Context) forEachChunkReverse(fn func(start, end uintptr)) (ticks int) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
	}()

	for i := len(ctx.Chunks) - 1; i >= 0; i-- {
		m := ctx.Chunks[i]
		if m.Empty() {
			continue
		}
		start, end := m.Start, m.End
		p, ps := end, end
		atStart := false
		for {
			if ps-start >= spinSizeBytes {
				ps -= spinSizeBytes - testwordBytes
			} else {
				atStart = true
				ps = start
			}
			ticks++
			if ctx.CPU >= 0 {
				fn(ps, p)
				ctx.checkBail()
			}
			if atStart {
				break
			}
			ps -= testwordBytes
			p = ps
		}
	}
	return ticks
}

func (ctx *Context) checkBail() {
	if ctx.Tick != nil {
		ctx.Tick()
	}
	if ctx.Bail != nil && ctx.Bail() {
		panic(bailout{})
	}
}

func (ctx *Context) read(addr uintptr) uint64 {
	v, err := ctx.Mapper.ReadWord(addr)
	if err != nil {
		return 0
	}
	return v
}

func (ctx *Context) write(addr uintptr, value uint64) {
	_ = ctx.Mapper.WriteWord(addr, value)
}

func rotl64(v uint64, by uint) uint64 {
	return v<<by | v>>(testwordBits-by)
}

func rotr64(v uint64, by uint) uint64 {
	return v>>by | v<<(testwordBits-by)
}

// Primitive is one entry of the test catalog: a self-contained memory
// pattern that runs to completion (honouring ctx.Bail) and returns the
// number of progress ticks it consumed.
type Primitive func(ctx *Context) int

// Entry names and indexes one catalog primitive for display and for the
// pass driver's per-test configuration (enable/disable).
type Entry struct {
	Index int
	Name  string
	Run   Primitive
}

// Catalog is the fixed, ordered list of memory-stress primitives. Index
// order matches the numbering operators see in the run configuration and
// in per-test error counts.
var Catalog = []Entry{
	{0, "address test, walking ones", AddrWalkOnes},
	{1, "own address test", OwnAddress},
	{2, "own address test (windowed)", OwnAddressWindow},
	{3, "moving inversions, ones & zeros", MovInvFixed},
	{4, "moving inversions, 8-bit pattern", MovInv8Bit},
	{5, "moving inversions, random pattern", MovInvRandom},
	{6, "moving inversions, walking one", MovInvWalkOne},
	{7, "block move, 64 moves", BlockMove},
	{8, "random number sequence", RandomSequence},
	{9, "modulo 20, ones & zeros", ModuloN},
	{10, "bit fade test", BitFade},
	{11, "row hammer", RowHammer},
}

// SIMDWords reports the widest testword-group the host can compare in one
// vector op, probed via golang.org/x/sys/cpu. It never returns less than
// 1 (pure scalar). No primitive reads the result (Context.SIMD): every
// primitive walks memory one testword at a time.
func SIMDWords() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 8 // 512 bits / 64
	case cpu.X86.HasAVX2:
		return 4 // 256 bits / 64
	case cpu.X86.HasSSE2:
		return 2 // 128 bits / 64
	case cpu.ARM64.HasASIMD:
		return 2
	default:
		return 1
	}
}
