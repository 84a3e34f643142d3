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


package pubsub

import liberr "github.com/sabouaram/zeroipc/errors"

const (
	ErrorWrongPattern liberr.CodeError = iota + liberr.MinPkgPubSub
	ErrorPayloadMismatch
	ErrorExceedsMaxPorts
	ErrorDataSegment
	ErrorConnection
	ErrorPortClosed
	ErrorSampleConsumed
	ErrorInternal
)

func init() {
	if liberr.ExistInMapMessage(ErrorWrongPattern) {
		panic("pubsub: error code space already registered")
	}
	liberr.RegisterIdFctMessage(ErrorWrongPattern, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorWrongPattern:
		return "service does not use the publish-subscribe pattern"
	case ErrorPayloadMismatch:
		return "payload type does not match the service payload identity"
	case ErrorExceedsMaxPorts:
		return "service supports no additional port of this kind"
	case ErrorDataSegment:
		return "unable to create the data segment"
	case ErrorConnection:
		return "connection failure"
	case ErrorPortClosed:
		return "port has been closed"
	case ErrorSampleConsumed:
		return "sample handle already sent or released"
	case ErrorInternal:
		return "internal publish-subscribe failure"
	}

	return ""
}
