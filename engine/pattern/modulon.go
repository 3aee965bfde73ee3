package pattern

// moduloN is the modulus used by test 9: every 20th word gets pattern1,
// the rest (written over several iterations) get pattern2, then every
// 20th word is checked. Ported from tests/modulo_n.c:test_modulo_n with
// n and offset fixed: real memtest86+ sweeps offset from 0..n-1 across
// separate test-catalog entries, which this module instead drives by
// varying offset with the pass number so every offset gets exercised
// across a multi-pass run.
const moduloN = 20
const moduloIterations = 2

// ModuloN is test 9: modulo-20, ones & zeros.
func ModuloN(ctx *Context) int {
	offset := ctx.Pass % moduloN
	const pattern1 = uint64(0)
	const pattern2 = ^uint64(0)

	ticks := ctx.forEachChunk(func(start, end uintptr) {
		words := int((end-start)/testwordBytes) + 1
		if words < moduloN-1 {
			return
		}
		for p := start + uintptr(offset)*testwordBytes; ; p += moduloN * testwordBytes {
			ctx.write(p, pattern1)
			if p+moduloN*testwordBytes > end {
				break
			}
		}
	})

	for iter := 0; iter < moduloIterations; iter++ {
		ticks += ctx.forEachChunk(func(start, end uintptr) {
			words := int((end-start)/testwordBytes) + 1
			if words < moduloN-1 {
				return
			}
			k := 0
			for p := start; ; p += testwordBytes {
				if k != offset {
					ctx.write(p, pattern2)
				}
				k++
				if k == moduloN {
					k = 0
				}
				if p >= end {
					break
				}
			}
		})
	}

	ticks += ctx.forEachChunk(func(start, end uintptr) {
		words := int((end-start)/testwordBytes) + 1
		if words < moduloN-1 {
			return
		}
		for p := start + uintptr(offset)*testwordBytes; ; p += moduloN * testwordBytes {
			actual := ctx.read(p)
			if actual != pattern1 {
				ctx.Report.DataError(ctx.CPU, ctx.Pass, ctx.Test, uint64(p), pattern1, actual, true)
			}
			if p+moduloN*testwordBytes > end {
				break
			}
		}
	})

	return ticks
}
