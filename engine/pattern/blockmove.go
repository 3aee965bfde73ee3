package pattern

// blockMoveIterations is how many times the rotated block image below is
// written back over the block before the check pass, matching the iteration
// count the original accepts as a parameter from its caller.
const blockMoveIterations = 8

// BlockMove is test 7: writes a 16-word repeating pattern, shifts the
// whole chunk right by one half-block using a Go copy (standing in for
// the original's inline rep-movs assembly), and checks that adjacent word
// pairs still agree. Ported from tests/block_move.c:test_block_move; the
// error check is, as upstream notes, "rather crude" — it only verifies
// neighbouring words match, since the shift does not preserve an
// absolute expected value at each address.
func BlockMove(ctx *Context) int {
	ticks := ctx.forEachChunk(func(start, end uintptr) {
		if (end-start)/testwordBytes < 15 {
			return
		}
		pattern1 := uint64(1)
		for p := start; ; p += 16 * testwordBytes {
			pattern2 := ^pattern1
			values := [16]uint64{
				pattern1, pattern1, pattern1, pattern1, pattern2, pattern2, pattern1, pattern1,
				pattern1, pattern1, pattern2, pattern2, pattern1, pattern1, pattern2, pattern2,
			}
			for i, v := range values {
				ctx.write(p+uintptr(i)*testwordBytes, v)
			}
			pattern1 = rotl64(pattern1, 1)
			if p+15*testwordBytes >= end {
				break
			}
		}
	})

	ticks += ctx.forEachChunk(func(start, end uintptr) {
		words := int((end-start)/testwordBytes) + 1
		if words < 16 {
			return
		}
		half := words / 2

		buf := make([]uint64, words)
		for i := 0; i < words; i++ {
			buf[i] = ctx.read(start + uintptr(i)*testwordBytes)
		}

		shifted := make([]uint64, words)
		copy(shifted[half:], buf[:words-half])
		copy(shifted[:half], buf[words-half:])

		for i := 0; i < blockMoveIterations; i++ {
			for j, v := range shifted {
				ctx.write(start+uintptr(j)*testwordBytes, v)
			}
			if ctx.Bail != nil && ctx.Bail() {
				panic(bailout{})
			}
		}
	})

	ticks += ctx.forEachChunk(func(start, end uintptr) {
		for p := start; ; p += 2 * testwordBytes {
			p0 := ctx.read(p)
			p1 := ctx.read(p + testwordBytes)
			if p0 != p1 {
				ctx.Report.DataError(ctx.CPU, ctx.Pass, ctx.Test, uint64(p), p0, p1, false)
			}
			if p+2*testwordBytes > end {
				break
			}
		}
	})

	return ticks
}
