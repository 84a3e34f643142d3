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


package queue

import liberr "github.com/sabouaram/zeroipc/errors"

const (
	ErrorRegionTooSmall liberr.CodeError = iota + liberr.MinPkgQueue
	ErrorCapacityMismatch
	ErrorSignalNoReceiver
	ErrorSignalBufferFull
	ErrorSignalInterrupted
	ErrorSignalPermissions
	ErrorSignalInternal
)

func init() {
	if liberr.ExistInMapMessage(ErrorRegionTooSmall) {
		panic("queue: error code space already registered")
	}
	liberr.RegisterIdFctMessage(ErrorRegionTooSmall, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorRegionTooSmall:
		return "shared memory region too small for requested queue"
	case ErrorCapacityMismatch:
		return "queue capacity mismatch between processes"
	case ErrorSignalNoReceiver:
		return "signal receiver is gone"
	case ErrorSignalBufferFull:
		return "signal buffer full, distinct id dropped"
	case ErrorSignalInterrupted:
		return "wait interrupted by process signal"
	case ErrorSignalPermissions:
		return "insufficient permissions on signal"
	case ErrorSignalInternal:
		return "internal signal failure"
	}

	return ""
}
