package pattern

// AddrWalkOnes is test 0: a walking-one pattern run over pairs of
// addresses within each VM segment, checking that writing a second
// address never disturbs the first. It catches address-line faults that
// the data-pattern tests, which write every address in sequence, cannot
// distinguish from data faults.
//
// Ported from tests/addr_walk1.c:test_addr_walk1. It does not use
// forEachChunk's block splitting: it walks each of ctx.Chunks whole, so
// in parallel mode each worker walks only its own chunk.Calculate share
// and address pairs that span two workers' shares are not tested.
func AddrWalkOnes(ctx *Context) int {
	ticks := 0
	var invert uint64

	for iter := 0; iter < 2; iter++ {
		ticks++
		if ctx.CPU < 0 {
			continue
		}

		for _, m := range ctx.Chunks {
			if m.Empty() {
				continue
			}
			pb, pe := m.Start, m.End

			for mask1 := uintptr(testwordBytes); ; mask1 <<= 1 {
				p1 := pb | mask1
				if p1 > pe {
					break
				}
				expect := invert ^ uint64(p1)
				ctx.write(p1, expect)

				for mask2 := uintptr(testwordBytes); ; mask2 <<= 1 {
					p2 := pb | mask2
					if p2 == p1 {
						continue
					}
					if p2 > pe {
						break
					}
					ctx.write(p2, ^invert^uint64(p2))

					actual := ctx.read(p1)
					if actual != expect {
						ctx.Report.AddrError(ctx.CPU, ctx.Pass, ctx.Test, uint64(p1))
						ctx.write(p1, expect)
					}
				}
			}
		}

		invert = ^invert
		ctx.checkBail()
	}

	return ticks
}
