package fault

// DisplayMode selects which of the structures an Aggregator maintains are
// consulted when rendering a report; see engine/report for the renderers.
type DisplayMode int

const (
	DisplayNone DisplayMode = iota
	DisplaySummary
	DisplayAddress
	DisplayBadRAM
	DisplayMemMap
	DisplayPages
)

// Aggregator is the single point through which a test run's miscompares
// flow. It keeps whichever of Stats/BadRAM-patterns/memmap-patterns/pages
// the active DisplayMode needs; the others stay at their zero value so a
// caller can switch modes between runs without paying for unused state.
type Aggregator struct {
	Mode DisplayMode

	Stats  Stats
	BadRAM *PatternList
	MemMap *PatternList
	// Pages holds the same kind of merged (addr,mask) pattern list as
	// MemMap, in ModeRange: pages display mode renders each pattern's two
	// page endpoints instead of a byte size. This is distinct from
	// PagesList, which backs the separate bad-pages output.
	Pages *PatternList
}

// NewAggregator creates an Aggregator for the given display mode,
// allocating only the structures that mode consults.
func NewAggregator(mode DisplayMode) *Aggregator {
	a := &Aggregator{Mode: mode}
	switch mode {
	case DisplayBadRAM:
		a.BadRAM = NewPatternList(ModeBadRAM)
	case DisplayMemMap:
		a.MemMap = NewPatternList(ModeRange)
	case DisplayPages:
		a.Pages = NewPatternList(ModeRange)
	}
	return a
}

// Reset clears every structure for the start of a new run.
func (a *Aggregator) Reset() {
	a.Stats.Reset()
	if a.BadRAM != nil {
		a.BadRAM = NewPatternList(ModeBadRAM)
	}
	if a.MemMap != nil {
		a.MemMap = NewPatternList(ModeRange)
	}
	if a.Pages != nil {
		a.Pages = NewPatternList(ModeRange)
	}
}

// usbWorkaroundAddrs lists the addresses the original silently drops to
// avoid false positives from USB controllers shadowing low memory.
var usbWorkaroundAddrs = map[uint64]bool{
	0x410: true,
	0x4e0: true,
}

// RecordMiscompare folds one bad testword into every structure the current
// mode requires. good and bad are the expected and observed values; their
// XOR is what statistics and BadRAM patterns key on.
func (a *Aggregator) RecordMiscompare(page, offset uint64, good, bad uint64) {
	addr := page<<pageShift + offset
	if usbWorkaroundAddrs[addr] {
		return
	}

	xor := good ^ bad
	if xor == 0 {
		return
	}

	a.Stats.Record(page, offset, addr, xor)

	switch a.Mode {
	case DisplayBadRAM:
		a.BadRAM.Insert(page, offset)
	case DisplayMemMap:
		a.MemMap.Insert(page, offset)
	case DisplayPages:
		a.Pages.Insert(page, offset)
	}
}
