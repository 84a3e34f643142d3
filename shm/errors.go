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

import liberr "github.com/sabouaram/zeroipc/errors"

const (
	ErrorSegmentExists liberr.CodeError = iota + liberr.MinPkgShm
	ErrorSegmentNotFound
	ErrorSegmentCorrupted
	ErrorSegmentFull
	ErrorPermissions
	ErrorVersionMismatch
	ErrorInternal
)

func init() {
	if liberr.ExistInMapMessage(ErrorSegmentExists) {
		panic("shm: error code space already registered")
	}
	liberr.RegisterIdFctMessage(ErrorSegmentExists, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorSegmentExists:
		return "shared memory segment already exists"
	case ErrorSegmentNotFound:
		return "shared memory segment does not exist"
	case ErrorSegmentCorrupted:
		return "shared memory segment is in a corrupted state"
	case ErrorSegmentFull:
		return "shared memory segment has no room left"
	case ErrorPermissions:
		return "insufficient permissions on shared memory segment"
	case ErrorVersionMismatch:
		return "shared memory segment version mismatch"
	case ErrorInternal:
		return "internal shared memory failure"
	}

	return ""
}
