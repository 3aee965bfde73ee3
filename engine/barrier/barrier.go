/*
 * memtestgo - N-thread rendezvous barrier and report mutex.
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

// Package barrier provides the N-core rendezvous primitive the pass driver
// uses to gate every phase change, plus the single-holder mutex that guards
// the fault record and report output stream.
package barrier

import (
	"sync"
)

// Mode selects how a worker waits for the rest of the barrier to arrive.
// Real firmware either busy-spins (minimum wakeup latency, maximum power)
// or halts and waits for an NMI (the opposite tradeoff). A hosted Go process
// has no halt instruction, so HaltWait is realized as a park on a condition
// variable: cheap on CPU, higher wakeup latency, same ordering guarantee.
type Mode int

const (
	SpinWait Mode = iota
	HaltWait
)

// Barrier blocks a fixed number of goroutines until the last one arrives,
// then releases all of them together. Every memory operation issued by a
// worker before it calls Wait happens-before every memory operation issued
// by any other worker after that worker's Wait returns.
//
// Calls arrive in matched pairs: a generation entered with SpinWait must be
// released with SpinWait by every participant, likewise for HaltWait. The
// generation counter exists so a late arrival can tell it has already been
// released rather than mixing generations.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	numThreads int
	count      int
	generation uint64
}

// New creates a barrier that blocks numThreads participants per generation.
func New(numThreads int) *Barrier {
	b := &Barrier{numThreads: numThreads}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Reset rebinds the barrier to a new participant count at a pass boundary.
// Must only be called when no goroutine is waiting.
func (b *Barrier) Reset(numThreads int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.numThreads = numThreads
	b.count = 0
	b.generation++
}

// Wait blocks until numThreads goroutines have called Wait for the current
// generation, then releases them all. The spin variant busy-loops (yielding
// via sync.Mutex's own scheduling) for minimum latency; the halt variant
// parks on the condition variable, standing in for a real CPU halt.
func (b *Barrier) Wait(mode Mode) {
	b.mu.Lock()
	gen := b.generation
	b.count++
	last := b.count == b.numThreads
	if last {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	switch mode {
	case HaltWait:
		for b.generation == gen {
			b.cond.Wait()
		}
		b.mu.Unlock()
	case SpinWait:
		b.mu.Unlock()
		for {
			b.mu.Lock()
			if b.generation != gen {
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
	}
}

// NumThreads reports the number of participants the barrier currently
// expects per generation.
func (b *Barrier) NumThreads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numThreads
}

// ReportMutex is a single-holder lock for the fault record and the report
// output stream. Nothing in this module acquires it: report.Reporter
// serialises its state with its own sync.Mutex.
type ReportMutex struct {
	mu sync.Mutex
}

func (r *ReportMutex) Lock()   { r.mu.Lock() }
func (r *ReportMutex) Unlock() { r.mu.Unlock() }
