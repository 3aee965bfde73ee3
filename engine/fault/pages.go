package fault

// PagesList is a bounded, sorted, deduplicated set of faulty page numbers,
// ported from app/bad_pages_list.c. Unlike PatternList it never merges
// entries to make room: once full, new pages are simply dropped and are
// not counted.
type PagesList struct {
	pages []uint64
}

// MaxPages bounds the list, matching MAX_PAGES in the original.
const MaxPages = 70

// NewPagesList creates an empty list.
func NewPagesList() *PagesList {
	return &PagesList{pages: make([]uint64, 0, MaxPages)}
}

func (l *PagesList) contains(page uint64) bool {
	for _, p := range l.pages {
		if p == page {
			return true
		}
	}
	return false
}

// Insert records page as faulty. It returns false if the page was already
// present, or if the list is already at capacity.
func (l *PagesList) Insert(page uint64) bool {
	if l.contains(page) || len(l.pages) >= MaxPages {
		return false
	}

	idx := len(l.pages)
	for i, existing := range l.pages {
		if page < existing {
			idx = i
			break
		}
	}

	l.pages = append(l.pages, 0)
	copy(l.pages[idx+1:], l.pages[idx:])
	l.pages[idx] = page
	return true
}

// Len reports how many distinct pages are currently tracked.
func (l *PagesList) Len() int { return len(l.pages) }

// Full reports whether the list has reached MaxPages and is silently
// dropping further insertions.
func (l *PagesList) Full() bool { return len(l.pages) >= MaxPages }

// Pages returns the tracked pages in ascending order. The returned slice
// must not be retained past the next Insert call.
func (l *PagesList) Pages() []uint64 { return l.pages }
