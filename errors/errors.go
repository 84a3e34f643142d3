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
	"fmt"
	"runtime"
	"strings"
)

type ers struct {
	c uint16
	e string
	p []error
	t runtime.Frame
}

func newError(code CodeError, message string, parent ...error) Error {
	e := &ers{
		c: code.Uint16(),
		e: message,
		p: make([]error, 0, len(parent)),
		t: getFrame(),
	}

	e.Add(parent...)
	return e
}

func (e *ers) Error() string {
	if len(e.p) < 1 {
		return e.e
	}

	var b strings.Builder
	b.WriteString(e.e)

	for _, p := range e.p {
		if p == nil {
			continue
		}
		b.WriteString(", ")
		b.WriteString(p.Error())
	}

	return b.String()
}

func (e *ers) StringError() string {
	return e.e
}

func (e *ers) IsCode(code CodeError) bool {
	return e.c == code.Uint16()
}

func (e *ers) HasCode(code CodeError) bool {
	if e.IsCode(code) {
		return true
	}

	for _, p := range e.p {
		if er, ok := p.(Error); ok && er.HasCode(code) {
			return true
		}
	}

	return false
}

func (e *ers) GetCode() CodeError {
	return CodeError(e.c)
}

func (e *ers) GetParentCode() []CodeError {
	res := []CodeError{e.GetCode()}

	for _, p := range e.p {
		if er, ok := p.(Error); ok {
			res = append(res, er.GetParentCode()...)
		}
	}

	return res
}

func (e *ers) Code() uint16 {
	return e.c
}

func (e *ers) Is(err error) bool {
	if err == nil {
		return false
	}

	if er, ok := err.(*ers); ok {
		return er.c == e.c && er.e == e.e
	}

	return strings.EqualFold(e.e, err.Error())
}

func (e *ers) Add(parent ...error) {
	for _, v := range parent {
		if v == nil {
			continue
		}
		e.p = append(e.p, v)
	}
}

func (e *ers) HasParent() bool {
	return len(e.p) > 0
}

func (e *ers) GetParent(withMainError bool) []error {
	var res []error

	if withMainError {
		res = append(res, e)
	}

	return append(res, e.p...)
}

func (e *ers) Map(fct FuncMap) bool {
	if !fct(e) {
		return false
	}

	for _, p := range e.p {
		if er, ok := p.(Error); ok {
			if !er.Map(fct) {
				return false
			}
		} else if !fct(p) {
			return false
		}
	}

	return true
}

func (e *ers) Unwrap() []error {
	return e.p
}

func (e *ers) CodeError(pattern string) string {
	if pattern == "" {
		pattern = defaultPattern
	}
	return fmt.Sprintf(pattern, e.c, e.e)
}

func (e *ers) CodeErrorTrace(pattern string) string {
	if pattern == "" {
		pattern = defaultPatternTrace
	}
	return fmt.Sprintf(pattern, e.c, e.e, e.GetTrace())
}

func (e *ers) GetTrace() string {
	if e.t.File != "" {
		return fmt.Sprintf("%s:%d", e.t.File, e.t.Line)
	} else if e.t.Function != "" {
		return fmt.Sprintf("%s:%d", e.t.Function, e.t.Line)
	}

	return ""
}
