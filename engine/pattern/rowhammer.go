package pattern

import "memtestgo/engine/window"

// rowBytes is the span hammered as one DRAM row. The original keys this to
// the host's actual row size; lacking that here, a page is the closest
// available granularity. Ported from tests/row_hammer.c:test_row_hammer.
const rowBytes = window.PageSize
const rowWords = rowBytes / testwordBytes
const tripleWords = rowWords * 3

// hammerReads is the read-disturb count per aggressor per iteration,
// matching HAMMER_READS in the original.
const hammerReads = 10000

// hammerIterations bounds how many times each aggressor pair is reread
// before the victim row is checked. The original takes this as a caller
// argument (test.c passes a run-time iteration count); this module fixes
// it since nothing else in the catalog varies primitive parameters by
// argument.
const hammerIterations = 4

const patternAggressor = uint64(0x5555555555555555)
const patternVictim = ^patternAggressor

// RowHammer is the row-hammer disturbance test: it writes alternating
// aggressor/victim/aggressor row triples, repeatedly rereads the aggressor
// rows to induce charge leakage in the victim row, then verifies the
// victim row kept its pattern. It is not part of the original ten-test
// catalog (addr/mov-inv/block-move/random/modulo/bit-fade); it is carried
// over as an eleventh primitive because the source system treats it as a
// distinct, still-maintained test alongside those ten.
func RowHammer(ctx *Context) (ticks int) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
	}()

	for _, m := range ctx.Chunks {
		if m.Empty() {
			continue
		}
		start := roundUp(m.Start, rowBytes)
		end := roundDown(m.End+1, rowBytes)
		if end <= start || uintptr(end-start) < tripleWords*testwordBytes {
			continue
		}

		for row := start; row+tripleWords*testwordBytes <= end; row += tripleWords * testwordBytes {
			ticks++
			if ctx.CPU < 0 {
				continue
			}
			for w := uintptr(0); w < rowWords; w++ {
				ctx.write(row+w*testwordBytes, patternAggressor)
				ctx.write(row+(rowWords+w)*testwordBytes, patternVictim)
				ctx.write(row+(2*rowWords+w)*testwordBytes, patternAggressor)
			}
			ctx.checkBail()
		}

		for iter := 0; iter < hammerIterations; iter++ {
			for row := start; row+tripleWords*testwordBytes <= end; row += tripleWords * testwordBytes {
				ticks++
				if ctx.CPU < 0 {
					continue
				}
				aggressor1 := row
				aggressor2 := row + 2*rowWords*testwordBytes
				for h := 0; h < hammerReads; h++ {
					ctx.read(aggressor1)
					ctx.read(aggressor2)
				}
				ctx.checkBail()
			}
		}

		for row := start; row+tripleWords*testwordBytes <= end; row += tripleWords * testwordBytes {
			ticks++
			if ctx.CPU < 0 {
				continue
			}
			victim := row + rowWords*testwordBytes
			for w := uintptr(0); w < rowWords; w++ {
				actual := ctx.read(victim + w*testwordBytes)
				if actual != patternVictim {
					ctx.Report.DataError(ctx.CPU, ctx.Pass, ctx.Test, uint64(victim+w*testwordBytes), patternVictim, actual, true)
				}
			}
			ctx.checkBail()
		}
	}

	return ticks
}

func roundUp(v uintptr, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

func roundDown(v uintptr, align uintptr) uintptr {
	return v &^ (align - 1)
}
