package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"memtestgo/engine/fault"
	"memtestgo/engine/report"
	"memtestgo/engine/window"
)

func newTestEngine(t *testing.T, numWorkers int, maxPasses int) (*Engine, *report.Reporter) {
	t.Helper()
	m := window.NewSimMapper(4)
	rep := report.NewReporter(fault.DisplayNone, 11, io.Discard)
	cfg := DefaultConfig(numWorkers)
	cfg.MaxPasses = maxPasses
	cfg.BitFadeSecs = 0 // keep the bit-fade test's sleep stages instant in tests
	return New(m, rep, cfg), rep
}

func TestStartRunsRequestedPassCountThenReturns(t *testing.T) {
	e, _ := newTestEngine(t, 2, 2)

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after MaxPasses completed")
	}

	c := e.Counters()
	if !c.Done || c.Running {
		t.Errorf("Counters() = %+v, want Done=true Running=false", c)
	}
	if c.PassNum < 2 {
		t.Errorf("PassNum = %d, want at least 2", c.PassNum)
	}
}

func TestStopEndsAnUnboundedRun(t *testing.T) {
	e, _ := newTestEngine(t, 3, 0)

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	// Let a few passes elapse before asking it to stop.
	time.Sleep(20 * time.Millisecond)
	e.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestContextCancellationEndsTheRun(t *testing.T) {
	e, _ := newTestEngine(t, 2, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestSingleWorkerRunDetectsInjectedFault(t *testing.T) {
	m := window.NewSimMapper(4)
	m.InjectFault(window.Fault{
		Page:   0,
		Offset: 0,
		Corrupt: func(good uint64) uint64 {
			return good ^ 0x1
		},
	})
	rep := report.NewReporter(fault.DisplayNone, 11, io.Discard)
	cfg := DefaultConfig(1)
	cfg.MaxPasses = 1
	cfg.BitFadeSecs = 0
	e := New(m, rep, cfg)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned %v", err)
	}
	if rep.ErrorCount() == 0 {
		t.Error("expected the injected fault to be reported as at least one error")
	}
}

func TestDisabledTestsAreSkipped(t *testing.T) {
	m := window.NewSimMapper(2)
	rep := report.NewReporter(fault.DisplayNone, 11, io.Discard)
	cfg := DefaultConfig(1)
	cfg.MaxPasses = 1
	for i := range cfg.TestEnabled {
		cfg.TestEnabled[i] = false
	}
	cfg.TestEnabled[0] = true
	e := New(m, rep, cfg)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned %v", err)
	}
	// No assertion beyond "it completed": a hung run here would mean the
	// barrier rendezvous desynchronised when most tests were skipped.
}

func TestSequentialCPUModeUsesOneWorker(t *testing.T) {
	m := window.NewSimMapper(4)
	rep := report.NewReporter(fault.DisplayNone, 11, io.Discard)
	cfg := DefaultConfig(4)
	cfg.CPUMode = CPUModeSequential
	cfg.MaxPasses = 1
	cfg.BitFadeSecs = 0
	e := New(m, rep, cfg)

	if got := e.activeWorkerCount(); got != 1 {
		t.Errorf("activeWorkerCount() = %d, want 1 for CPUModeSequential", got)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned %v", err)
	}
}

func TestDisabledWorkerIsSkippedButDoesNotStallTheBarrier(t *testing.T) {
	m := window.NewSimMapper(4)
	rep := report.NewReporter(fault.DisplayNone, 11, io.Discard)
	cfg := DefaultConfig(3)
	cfg.CPUEnabled = []bool{true, false, true}
	cfg.MaxPasses = 1
	cfg.BitFadeSecs = 0
	e := New(m, rep, cfg)

	if got := e.activeWorkerCount(); got != 2 {
		t.Errorf("activeWorkerCount() = %d, want 2 with one of three workers disabled", got)
	}

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return: a disabled worker likely stalled the barrier")
	}
}

func TestRestartAfterStopRunsToCompletion(t *testing.T) {
	e, _ := newTestEngine(t, 2, 0)

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first Start() did not return after Stop()")
	}

	e.mu.Lock()
	e.cfg.MaxPasses = 2
	e.mu.Unlock()

	done2 := make(chan error, 1)
	go func() { done2 <- e.Start(context.Background()) }()

	select {
	case err := <-done2:
		if err != nil {
			t.Errorf("second Start() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Start() did not return: e.done was likely not recreated")
	}

	c := e.Counters()
	if c.PassNum < 2 {
		t.Errorf("second run's PassNum = %d, want at least 2 (a stale closed e.done would stop it after pass 0)", c.PassNum)
	}
}

func TestStartPopulatesTicksFromDummyPass(t *testing.T) {
	e, _ := newTestEngine(t, 2, 1)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned %v", err)
	}

	c := e.Counters()
	if c.TicksPerPass == 0 {
		t.Error("TicksPerPass = 0, want the dummy pass to have populated it")
	}
	if len(c.TicksPerTest) == 0 {
		t.Fatal("TicksPerTest is empty, want one entry per catalog test")
	}
	var sum uint64
	for _, ticks := range c.TicksPerTest {
		sum += ticks
	}
	if sum != c.TicksPerPass {
		t.Errorf("sum(TicksPerTest) = %d, want TicksPerPass = %d", sum, c.TicksPerPass)
	}
}

func TestDummyPassDoesNotRecomputeAcrossRestarts(t *testing.T) {
	e, _ := newTestEngine(t, 1, 1)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("first Start() returned %v", err)
	}
	first := e.Counters().TicksPerPass

	e.mu.Lock()
	e.cfg.MaxPasses = 1
	e.mu.Unlock()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second Start() returned %v", err)
	}
	second := e.Counters().TicksPerPass

	if first == 0 || second != first {
		t.Errorf("TicksPerPass = %d then %d, want a stable non-zero value across restarts", first, second)
	}
}

func TestDoubleStopIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, 1, 0)
	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	e.Stop()
	e.Stop() // must not block or panic on a second call

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}
