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


// Package errors provides error values carrying a numeric code, a captured
// source location and an optional chain of parent errors.
//
// Every package of this module owns a block of error codes starting at one
// of the MinPkg* constants declared in modules.go, and registers a message
// function for its block in an init function. Callers compare errors by
// code, never by message.
//
// Example usage:
//
//	import liberr "github.com/sabouaram/zeroipc/errors"
//
//	const ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgShm
//
//	if name == "" {
//	    return ErrorParamEmpty.Error(nil)
//	}
//
// Compatibility with the standard library errors.Is / errors.As functions
// is preserved through Is and Unwrap.
package errors

import "errors"

// FuncMap is a callback function type used for iterating over error
// hierarchies. It receives each error in the chain and returns true to
// continue iteration or false to stop.
type FuncMap func(e error) bool

// Error is the main interface extending Go's standard error with a code,
// a parent chain and trace information.
//
// All methods are safe for concurrent reads. Add is not thread-safe and
// must be called before the error is shared.
type Error interface {
	error

	// IsCode checks if the error's own code matches the given code.
	IsCode(code CodeError) bool
	// HasCode checks if the current error or any parent has the given code.
	HasCode(code CodeError) bool
	// GetCode returns the CodeError value of the current error.
	GetCode() CodeError
	// GetParentCode returns the codes of the current error and all parents.
	GetParentCode() []CodeError

	// Is implements compatibility with the root errors package Is function.
	Is(e error) bool

	// HasParent checks if the current Error has any valid parent.
	HasParent() bool
	// GetParent returns a slice of each parent error, with or without the
	// current error first.
	GetParent(withMainError bool) []error
	// Map runs the given function on the current error and each parent.
	// If the function returns false, the loop stops.
	Map(fct FuncMap) bool

	// Add appends all non-nil given errors to the parent chain.
	Add(parent ...error)

	// Code returns the numeric code of the current error.
	Code() uint16

	// CodeError returns the code and message composed with the given
	// pattern. An empty pattern uses the default pattern.
	CodeError(pattern string) string
	// CodeErrorTrace is CodeError with the captured source location.
	CodeErrorTrace(pattern string) string

	// StringError returns the message of the current error without parents.
	StringError() string

	// GetTrace returns the captured source location as "file:line".
	GetTrace() string

	// Unwrap sets compliance with the errors As/Is functions.
	Unwrap() []error
}

const (
	defaultPattern      = "[Error #%d] %s"
	defaultPatternTrace = "[Error #%d] %s (%s)"
)

// Is checks if the given error implements the Error interface.
func Is(e error) bool {
	var err Error
	return errors.As(e, &err)
}

// Get returns the given error as an Error interface, or nil if the error
// does not implement it.
func Get(e error) Error {
	var err Error
	if errors.As(e, &err) {
		return err
	}
	return nil
}

// New returns an Error with the UnknownError code and the given message.
func New(message string, parent ...error) Error {
	return newError(UnknownError, message, parent...)
}
