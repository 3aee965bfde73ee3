/*
 * memtestgo - Hex formatting helpers for the error reporter.
 *
 * Copyright 2025, memtestgo Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package hexfmt renders the address and pattern formats the error reporter
// needs: fixed-width uppercase hex for the address-mode table, and the
// lowercase minimal-width "0x..." forms the badram/memmap/pages modes emit.
package hexfmt

import "strings"

var hexMap = "0123456789abcdef"
var hexMapUpper = "0123456789ABCDEF"

// FormatFixed writes value as exactly digits hex characters, uppercase,
// zero padded, matching the fixed-width columns of address mode.
func FormatFixed(str *strings.Builder, value uint64, digits int) {
	shift := (digits - 1) * 4
	for i := 0; i < digits; i++ {
		str.WriteByte(hexMapUpper[(value>>uint(shift))&0xf])
		shift -= 4
	}
}

// Format0x writes value as "0x" followed by lowercase hex with no leading
// zeroes, except that zero itself is rendered "0x0". This is the form
// spec.md §6 requires for badram patterns and bad-pages entries with no
// minimum width.
func Format0x(str *strings.Builder, value uint64) {
	str.WriteString("0x")
	WriteMinimal(str, value)
}

// WriteMinimal writes value as lowercase hex digits with no leading zero,
// except that zero itself renders as a single "0" digit.
func WriteMinimal(str *strings.Builder, value uint64) {
	if value == 0 {
		str.WriteByte('0')
		return
	}
	var digits [16]byte
	n := 0
	for value > 0 {
		digits[n] = hexMap[value&0xf]
		n++
		value >>= 4
	}
	for i := n - 1; i >= 0; i-- {
		str.WriteByte(digits[i])
	}
}

// Format0xMinWidth writes value as "0x" followed by lowercase hex, padded
// with leading zeroes to at least minDigits wide, the format of the
// bad-pages list, which pads every entry to at least two hex digits. No
// report renderer in this module calls it.
func Format0xMinWidth(str *strings.Builder, value uint64, minDigits int) {
	str.WriteString("0x")
	var buf strings.Builder
	WriteMinimal(&buf, value)
	for buf.Len() < minDigits {
		str.WriteByte('0')
		minDigits--
	}
	str.WriteString(buf.String())
}

// String0x is a convenience wrapper returning Format0x's output directly.
func String0x(value uint64) string {
	var b strings.Builder
	Format0x(&b, value)
	return b.String()
}
