/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */


// Package size provides a byte-count type with human-readable parsing and
// formatting, used by configuration fields sizing shared-memory segments
// and sample payloads.
package size

// Size is a number of bytes.
type Size uint64

const (
	SizeByte Size = 1
	SizeKilo      = 1024 * SizeByte
	SizeMega      = 1024 * SizeKilo
	SizeGiga      = 1024 * SizeMega
	SizeTera      = 1024 * SizeGiga
)

// Parse parses a human-readable size like "64KB", "4M" or "123".
func Parse(s string) (Size, error) {
	return parseString(s)
}

// Uint64 returns the size as a uint64.
func (s Size) Uint64() uint64 {
	return uint64(s)
}

// Int64 returns the size as an int64, saturating on overflow.
func (s Size) Int64() int64 {
	if s > Size(1)<<62 {
		return 1 << 62
	}
	return int64(s)
}

// Int returns the size as an int, saturating on overflow.
func (s Size) Int() int {
	return int(s.Int64())
}

// IsZero reports whether the size is zero.
func (s Size) IsZero() bool {
	return s == 0
}

// AlignUp rounds the size up to the next multiple of align. A zero or
// non-power-of-two align returns the size unchanged.
func (s Size) AlignUp(align Size) Size {
	if align == 0 || align&(align-1) != 0 {
		return s
	}
	return (s + align - 1) &^ (align - 1)
}

// NextPowerOfTwo returns the lowest power of two greater than or equal
// to the size. Zero maps to 1.
func (s Size) NextPowerOfTwo() Size {
	if s == 0 {
		return 1
	}

	v := uint64(s - 1)
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32

	return Size(v + 1)
}
