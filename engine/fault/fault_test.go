package fault

import "testing"

func TestStatsRecordTracksMinMaxAddr(t *testing.T) {
	var s Stats
	s.Record(1, 0, 0x1000, 0x1)
	s.Record(0, 0, 0x0, 0x2)
	s.Record(5, 8, 0x5008, 0x4)

	if s.MinAddr != (PageOffset{Page: 0, Offset: 0}) {
		t.Errorf("MinAddr = %+v, want page 0 offset 0", s.MinAddr)
	}
	if s.MaxAddr != (PageOffset{Page: 5, Offset: 8}) {
		t.Errorf("MaxAddr = %+v, want page 5 offset 8", s.MaxAddr)
	}
	if s.BadBits != 0x7 {
		t.Errorf("BadBits = %#x, want 0x7", s.BadBits)
	}
}

func TestStatsRecordTracksRunLength(t *testing.T) {
	var s Stats
	s.Record(0, 0, 0x0, 0x1)
	s.Record(0, 8, 0x8, 0x1)
	s.Record(0, 16, 0x10, 0x1)
	if s.CurrentRun != 3 {
		t.Errorf("CurrentRun = %d, want 3", s.CurrentRun)
	}
	if s.MaxRun != 3 {
		t.Errorf("MaxRun = %d, want 3", s.MaxRun)
	}

	// A gap in address breaks the run.
	s.Record(0, 100, 0x100, 0x1)
	if s.CurrentRun != 1 {
		t.Errorf("CurrentRun after gap = %d, want 1", s.CurrentRun)
	}
	if s.MaxRun != 3 {
		t.Errorf("MaxRun after gap = %d, want unchanged 3", s.MaxRun)
	}
}

func TestStatsErrorCountSaturates(t *testing.T) {
	var s Stats
	s.ErrorCount = ErrorLimit - 1
	s.Record(0, 0, 0, 0x1)
	if s.ErrorCount != ErrorLimit {
		t.Fatalf("ErrorCount = %d, want %d", s.ErrorCount, ErrorLimit)
	}
	totalBefore := s.TotalBits
	s.Record(0, 8, 8, 0x1)
	if s.ErrorCount != ErrorLimit {
		t.Errorf("ErrorCount exceeded limit: %d", s.ErrorCount)
	}
	if s.TotalBits != totalBefore {
		t.Errorf("TotalBits grew past the saturation point: %d -> %d", totalBefore, s.TotalBits)
	}
}

func TestStatsRecordCECCSaturatesIndependently(t *testing.T) {
	var s Stats
	for i := 0; i < CECCLimit+10; i++ {
		s.RecordCECC()
	}
	if s.ErrorCountCECC != CECCLimit {
		t.Errorf("ErrorCountCECC = %d, want %d", s.ErrorCountCECC, CECCLimit)
	}
}

func TestPatternListBadRAMMergesAdjacentTestword(t *testing.T) {
	l := NewPatternList(ModeBadRAM)
	if !l.Insert(0, 0) {
		t.Fatal("first insert should succeed")
	}
	if !l.Insert(0, 8) {
		t.Fatal("adjacent insert should succeed")
	}
	if l.Len() != 1 {
		t.Errorf("adjacent testwords should combine into one pattern, got %d entries", l.Len())
	}
}

func TestPatternListDuplicateInsertReturnsFalse(t *testing.T) {
	l := NewPatternList(ModeBadRAM)
	l.Insert(2, 0)
	if l.Insert(2, 0) {
		t.Error("re-inserting an already-covered address should return false")
	}
}

func TestPatternListCapsAtMaxPatternsByMerging(t *testing.T) {
	l := NewPatternList(ModeBadRAM)
	// Insert widely scattered addresses so none combine for free; this
	// forces the cheapest-pair merge path once the cap is exceeded.
	for i := 0; i < maxPatterns+5; i++ {
		l.Insert(uint64(i*1000), 0)
	}
	if l.Len() > maxPatterns {
		t.Errorf("Len() = %d, want <= %d", l.Len(), maxPatterns)
	}
}

func TestPatternListStaysSortedByAddr(t *testing.T) {
	l := NewPatternList(ModeRange)
	l.Insert(5, 0)
	l.Insert(1, 0)
	l.Insert(3, 0)
	patterns := l.Patterns()
	for i := 1; i < len(patterns); i++ {
		if patterns[i].Addr < patterns[i-1].Addr {
			t.Errorf("patterns not sorted: %+v", patterns)
		}
	}
}

func TestPagesListDedupesAndSorts(t *testing.T) {
	l := NewPagesList()
	l.Insert(5)
	l.Insert(1)
	if got := l.Insert(1); got {
		t.Error("duplicate insert should return false")
	}
	l.Insert(3)
	pages := l.Pages()
	want := []uint64{1, 3, 5}
	if len(pages) != len(want) {
		t.Fatalf("got %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("got %v, want %v", pages, want)
		}
	}
}

func TestPagesListCapsAtMaxPages(t *testing.T) {
	l := NewPagesList()
	for i := 0; i < MaxPages+10; i++ {
		l.Insert(uint64(i))
	}
	if l.Len() != MaxPages {
		t.Errorf("Len() = %d, want %d", l.Len(), MaxPages)
	}
	if !l.Full() {
		t.Error("Full() should report true once capacity is reached")
	}
}

func TestAggregatorUSBWorkaroundIgnoresShadowAddresses(t *testing.T) {
	a := NewAggregator(DisplayPages)
	a.RecordMiscompare(0, 0x410, 0, 1)
	if a.Pages.Len() != 0 {
		t.Errorf("address 0x410 should be ignored, got %d pages recorded", a.Pages.Len())
	}
}

func TestAggregatorRecordMiscompareRoutesByMode(t *testing.T) {
	a := NewAggregator(DisplayBadRAM)
	a.RecordMiscompare(1, 0, 0, 1)
	if a.BadRAM.Len() != 1 {
		t.Errorf("BadRAM.Len() = %d, want 1", a.BadRAM.Len())
	}
	if a.MemMap != nil {
		t.Error("MemMap should stay unallocated in BadRAM mode")
	}
	if a.Stats.ErrorCount != 1 {
		t.Errorf("Stats.ErrorCount = %d, want 1", a.Stats.ErrorCount)
	}
}

func TestAggregatorPagesModeUsesRangePatternList(t *testing.T) {
	a := NewAggregator(DisplayPages)
	// The last word of page 1 and the first word of page 2 are exactly
	// testwordBytes apart, so Insert merges them into one range spanning
	// the page boundary.
	a.RecordMiscompare(1, (1<<pageShift)-8, 0, 1)
	a.RecordMiscompare(2, 0, 0, 1)
	patterns := a.Pages.Patterns()
	if len(patterns) != 1 {
		t.Fatalf("Patterns() = %v, want one merged range spanning pages 1-2", patterns)
	}
	if patterns[0].Addr>>pageShift != 1 || patterns[0].Mask>>pageShift != 2 {
		t.Errorf("got range [%#x,%#x], want pages [1,2]", patterns[0].Addr, patterns[0].Mask)
	}
}

func TestAggregatorResetClearsState(t *testing.T) {
	a := NewAggregator(DisplayPages)
	a.RecordMiscompare(1, 0, 0, 1)
	a.Reset()
	if a.Pages.Len() != 0 {
		t.Error("Reset should clear the pages list")
	}
	if a.Stats.ErrorCount != 0 {
		t.Error("Reset should clear statistics")
	}
}
