package chunk

import (
	"testing"

	"memtestgo/engine/window"
)

func mapping(start, end uintptr) window.Mapping {
	return window.Mapping{Start: start, End: end}
}

func TestCalculateSingleCPUGetsWholeSegment(t *testing.T) {
	m := mapping(0, 999)
	start, end := Calculate(m, 0, 1, 8)
	if start != m.Start || end != m.End {
		t.Errorf("got (%d,%d), want (%d,%d)", start, end, m.Start, m.End)
	}
}

func TestCalculateChunksDisjointAndCoverSegment(t *testing.T) {
	const numActive = 4
	m := mapping(0, 999)
	align := uintptr(8)

	var prevEnd uintptr
	covered := uintptr(0)
	for i := 0; i < numActive; i++ {
		start, end := Calculate(m, i, numActive, align)
		if end < start {
			continue
		}
		if i > 0 && start <= prevEnd {
			t.Errorf("chunk %d start %d overlaps previous end %d", i, start, prevEnd)
		}
		if start%align != 0 {
			t.Errorf("chunk %d start %d is not aligned to %d", i, start, align)
		}
		covered += end - start + 8
		prevEnd = end
	}

	total := m.End - m.Start + 8
	tail := total - covered
	if tail >= align {
		t.Errorf("uncovered tail %d >= chunk_align %d", tail, align)
	}
}

func TestCalculateEmptyMappingYieldsEmptyChunk(t *testing.T) {
	m := window.Mapping{Start: 1, End: 0}
	start, end := Calculate(m, 0, 4, 8)
	if end >= start {
		t.Errorf("expected empty range (end < start), got (%d,%d)", start, end)
	}
}

func TestCalculateNegativeWorkerIDTreatedAsZero(t *testing.T) {
	m := mapping(0, 999)
	s1, e1 := Calculate(m, -1, 4, 8)
	s2, e2 := Calculate(m, 0, 4, 8)
	if s1 != s2 || e1 != e2 {
		t.Errorf("dummy worker (-1) chunk (%d,%d) != worker 0 chunk (%d,%d)", s1, e1, s2, e2)
	}
}
