package window

import "testing"

func TestSimMapperReadWriteRoundTrip(t *testing.T) {
	m := NewSimMapper(16) // 16 pages
	addr := m.FirstWord(3)
	if err := m.WriteWord(addr, 0xdeadbeef); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := m.ReadWord(addr)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if got != 0xdeadbeef {
		t.Errorf("got %#x, want %#x", got, 0xdeadbeef)
	}
}

func TestSimMapperOutOfRange(t *testing.T) {
	m := NewSimMapper(1)
	_, err := m.ReadWord(m.FirstWord(100))
	if err == nil {
		t.Fatal("expected out-of-range error, got nil")
	}
	var oor ErrOutOfRange
	if !errorsAs(err, &oor) {
		t.Errorf("error %v is not ErrOutOfRange", err)
	}
}

func errorsAs(err error, target *ErrOutOfRange) bool {
	e, ok := err.(ErrOutOfRange)
	if ok {
		*target = e
	}
	return ok
}

func TestSimMapperFaultInjection(t *testing.T) {
	m := NewSimMapper(4)
	m.InjectFault(Fault{
		Page:   1,
		Offset: 8,
		Corrupt: func(good uint64) uint64 {
			return good ^ 0x10
		},
	})
	addr := m.FirstWord(1) + 8
	if err := m.WriteWord(addr, 0x1234); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := m.ReadWord(addr)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if want := uint64(0x1234 ^ 0x10); got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
}

func TestBuildMappingIntersectsSegmentAndLimits(t *testing.T) {
	m := NewSimMapper(WindowPages * 2)
	seg := Segment{StartPage: 0, EndPage: WindowPages}

	mapping := BuildMapping(seg, 0, 0, WindowPages-1, m)
	if mapping.Empty() {
		t.Fatal("expected non-empty mapping")
	}
	if mapping.Start > mapping.End {
		t.Errorf("Start %#x > End %#x", mapping.Start, mapping.End)
	}

	// Clipping to a narrower page range should shrink the mapping.
	clipped := BuildMapping(seg, 0, 10, 20, m)
	if clipped.Empty() {
		t.Fatal("expected non-empty clipped mapping")
	}
	if clipped.PhysBase != 10 {
		t.Errorf("PhysBase = %d, want 10", clipped.PhysBase)
	}
}

func TestBuildMappingEmptyWhenDisjoint(t *testing.T) {
	m := NewSimMapper(WindowPages)
	seg := Segment{StartPage: 0, EndPage: 5}
	mapping := BuildMapping(seg, 0, 100, 200, m)
	if !mapping.Empty() {
		t.Error("expected empty mapping when segment is outside the page limits")
	}
}
