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


// Package shm manages named shared-memory segments backed by mmap'd
// files. A segment carries a fixed header with a version tag, the total
// size, a generation counter for growable chains, a shared refcount and
// an initialized flag written last by the creator; late openers spin on
// that flag with a bounded timeout.
//
// Allocation inside a segment is bump-only with alignment: allocations
// live as long as the segment. Growable payload areas are realized as a
// chain of segments keyed by generation, created one size class at a
// time following the configured allocation strategy.
//
// All cross-process fields inside a segment are 8-byte aligned and
// accessed through the atomic views returned by U64 and U32.
package shm

import (
	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// HeaderSize is the number of bytes reserved at the start of every
// segment for the shared header.
const HeaderSize = 64

// Strategy selects how a growable segment chain picks its next size.
type Strategy uint8

const (
	// StrategyStatic forbids growth.
	StrategyStatic Strategy = iota
	// StrategyBestFit grows to the needed size rounded up to the chunk.
	StrategyBestFit
	// StrategyPowerOfTwo grows to the next power of two covering the need.
	StrategyPowerOfTwo
)

// String returns the lowercase name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyBestFit:
		return "best-fit"
	case StrategyPowerOfTwo:
		return "power-of-two"
	}
	return "unknown"
}

// Segment is one mapped shared-memory object.
type Segment interface {
	// Path returns the backing file path.
	Path() string
	// Size returns the usable payload size (total minus header).
	Size() libsiz.Size
	// Generation returns the generation tag of this segment.
	Generation() uint32

	// Bytes returns the mapped payload area after the header. The slice
	// stays valid until Close.
	Bytes() []byte

	// Alloc bumps the shared allocation pointer and returns the offset of
	// a zeroed area of n bytes aligned to align, relative to Bytes().
	Alloc(n libsiz.Size, align libsiz.Size) (uint64, liberr.Error)

	// MarkReady publishes the initialized flag. Creator only, once all
	// layout writes are done.
	MarkReady()

	// Close unmaps the segment and decrements the shared refcount; the
	// backing file is removed when the count reaches zero.
	Close() error

	// Unlink removes the backing file regardless of the refcount. Used
	// by stale-resource reclamation.
	Unlink() error
}

// Create creates the named segment exclusively with the given payload
// size. The caller finishes its layout writes and calls MarkReady.
func Create(path string, size libsiz.Size, generation uint32) (Segment, liberr.Error) {
	return segCreate(path, size, generation)
}

// Open maps an existing named segment, waiting up to timeout for the
// creator to publish the initialized flag.
func Open(path string, timeout libdur.Duration) (Segment, liberr.Error) {
	return segOpen(path, timeout)
}

// OpenOrCreate opens the named segment, creating it when absent. The
// boolean result reports whether this call created the segment; a
// created segment is returned before MarkReady so the caller can finish
// the layout.
func OpenOrCreate(path string, size libsiz.Size, generation uint32, timeout libdur.Duration) (Segment, bool, liberr.Error) {
	return segOpenOrCreate(path, size, generation, timeout)
}

// NextSize computes the size class for a growth request following the
// strategy: current is the present payload size, need the required one,
// chunk the configured granularity. StrategyStatic returns false.
func NextSize(s Strategy, current, need, chunk libsiz.Size) (libsiz.Size, bool) {
	if need <= current {
		return current, true
	}

	switch s {
	case StrategyBestFit:
		if chunk.IsZero() {
			chunk = 4096
		}
		return need.AlignUp(chunk.NextPowerOfTwo()), true

	case StrategyPowerOfTwo:
		return need.NextPowerOfTwo(), true
	}

	return 0, false
}
