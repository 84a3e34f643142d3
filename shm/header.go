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


package shm

import (
	"sync/atomic"
	"unsafe"

	libvrs "github.com/sabouaram/zeroipc/version"
)

// segMagic tags every segment file so that foreign files are rejected
// before any other header field is trusted.
const segMagic uint64 = 0x5a49_5043_5345_4731 // "ZIPCSEG1"

// Header field offsets, all 8-byte aligned.
const (
	offMagic      = 0
	offVersion    = 8
	offTotalSize  = 16
	offGeneration = 24
	offRefCount   = 32
	offInitFlag   = 40
	offAllocPtr   = 48
)

// U64 returns an atomic view of the 8 bytes at off inside mem. The
// offset must be 8-byte aligned; the mapping guarantees page alignment
// of mem itself.
func U64(mem []byte, off uint64) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[off]))
}

// U32 returns an atomic view of the 4 bytes at off inside mem. The
// offset must be 4-byte aligned.
func U32(mem []byte, off uint64) *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&mem[off]))
}

func hdrWriteVersion(raw []byte) {
	v := libvrs.Current()
	packed := uint64(v.Major)<<32 | uint64(v.Minor)<<16 | uint64(v.Patch)
	U64(raw, offVersion).Store(packed)
}

func hdrReadVersion(raw []byte) libvrs.Info {
	packed := U64(raw, offVersion).Load()

	return libvrs.Info{
		Major: uint16(packed >> 32),
		Minor: uint16(packed >> 16),
		Patch: uint16(packed),
	}
}
