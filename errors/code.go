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


package errors

import (
	"math"
	"sort"
	"strconv"
)

// idMsgFct stores the mapping between the first code of a registered block
// and the message function covering that block.
var idMsgFct = make(map[CodeError]Message)

// Message is a function type that returns the message associated with one
// error code of a registered block. It returns an empty string for codes
// outside the block.
type Message func(code CodeError) (message string)

// CodeError represents a numeric error code. It is a uint16 allowing codes
// from 0 to 65535. Each package owns a block starting at a MinPkg* value.
type CodeError uint16

const (
	// UnknownError represents an error with no specific code (0).
	UnknownError CodeError = 0

	// UnknownMessage is the default message for UnknownError.
	UnknownMessage = "unknown error"
)

// ParseCodeError returns a CodeError value based on the input int64 value,
// clamped to the uint16 range.
func ParseCodeError(i int64) CodeError {
	if i < 0 {
		return UnknownError
	} else if i >= int64(math.MaxUint16) {
		return math.MaxUint16
	}
	return CodeError(i)
}

// Uint16 returns the CodeError value as a uint16.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// Int returns the CodeError value as an int.
func (c CodeError) Int() int {
	return int(c)
}

// String returns the decimal representation of the CodeError value.
func (c CodeError) String() string {
	return strconv.Itoa(c.Int())
}

// Message returns the message registered for the CodeError value, or
// UnknownMessage when the code is not covered by any registered block.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}

	if f, ok := idMsgFct[findCodeErrorInMapMessage(c)]; ok {
		if m := f(c); m != "" {
			return m
		}
	}

	return UnknownMessage
}

// Error returns a new Error value for the code, with the registered
// message and the given parent errors.
func (c CodeError) Error(parent ...error) Error {
	return newError(c, c.Message(), parent...)
}

// ErrorMessage returns a new Error value for the code with an explicit
// message overriding the registered one.
func (c CodeError) ErrorMessage(message string, parent ...error) Error {
	return newError(c, message, parent...)
}

// IfError returns a new Error wrapping the given error, or nil when the
// given error is nil. It allows direct return from a fallible call.
func (c CodeError) IfError(e error) Error {
	if e == nil {
		return nil
	}
	return c.Error(e)
}

// RegisterIdFctMessage registers the message function for the block
// starting at the given code. Registering the same block twice panics:
// two packages may not share a code space.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	if _, ok := idMsgFct[minCode]; ok {
		panic("errors: code block " + minCode.String() + " registered twice")
	}
	idMsgFct[minCode] = fct
}

// ExistInMapMessage checks if the given code is covered by a registered
// message block, i.e. the message function of that block returns a
// message for it.
func ExistInMapMessage(code CodeError) bool {
	if f, ok := idMsgFct[findCodeErrorInMapMessage(code)]; ok {
		return f(code) != ""
	}
	return false
}

// findCodeErrorInMapMessage returns the greatest registered block start
// that is lower than or equal to the given code.
func findCodeErrorInMapMessage(c CodeError) CodeError {
	var keys = make([]int, 0, len(idMsgFct))

	for k := range idMsgFct {
		keys = append(keys, k.Int())
	}

	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	for _, k := range keys {
		if k <= c.Int() {
			return CodeError(k)
		}
	}

	return UnknownError
}
