package pattern

// ownAddrFillCheck writes every testword with its own address (plus a
// fixed offset) then reads it back; this catches any location that can't
// hold an arbitrary bit pattern correlated with its address. Ported from
// tests/own_addr.c:own_addr_pattern_fill_check.
func ownAddrFillCheck(ctx *Context, offset uint64, fill bool) int {
	return ctx.forEachChunk(func(start, end uintptr) {
		for p := start; ; p += testwordBytes {
			if fill {
				ctx.write(p, uint64(p)+offset)
			} else {
				expect := uint64(p) + offset
				actual := ctx.read(p)
				if actual != expect {
					ctx.Report.DataError(ctx.CPU, ctx.Pass, ctx.Test, uint64(p), expect, actual, true)
				}
			}
			if p >= end {
				break
			}
		}
	})
}

// OwnAddress is test 1: fill every word with its own address, then verify.
func OwnAddress(ctx *Context) int {
	ticks := ownAddrFillCheck(ctx, 0, true)
	ticks += ownAddrFillCheck(ctx, 0, false)
	return ticks
}

// OwnAddressWindow is test 2: the same own-address pattern, but offset by
// the physical-to-virtual translation of the active test window, so the
// pattern exercises the window-mapping hardware as well as the cells
// themselves. Ported from tests/own_addr.c:test_own_addr2, simplified to
// the byte-address offset form since this module's Mapper already hides
// the virtual/physical split behind PageOf.
func OwnAddressWindow(ctx *Context) int {
	offset := uint64(0)
	if len(ctx.Chunks) > 0 {
		offset = uint64(ctx.Mapper.PageOf(ctx.Chunks[0].Start)) << 12
	}
	ticksFill := ownAddrFillCheck(ctx, offset, true)
	ticksCheck := ownAddrFillCheck(ctx, offset, false)
	return ticksFill + ticksCheck
}
