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


package ident

import (
	"reflect"
	"strconv"
)

// TypeDetail is the runtime identity of a payload or header type. Two
// details match iff their logical names, sizes and alignments are all
// equal.
type TypeDetail struct {
	Name      string `cbor:"1,keyasint" json:"name"`
	Size      uint64 `cbor:"2,keyasint" json:"size"`
	Alignment uint64 `cbor:"3,keyasint" json:"alignment"`
}

// Equal reports whether both details describe the same type identity.
func (t TypeDetail) Equal(o TypeDetail) bool {
	return t.Name == o.Name && t.Size == o.Size && t.Alignment == o.Alignment
}

// IsZero reports whether the detail is unset.
func (t TypeDetail) IsZero() bool {
	return t == TypeDetail{}
}

// String renders the detail for diagnostics.
func (t TypeDetail) String() string {
	return t.Name + "[size=" + strconv.FormatUint(t.Size, 10) +
		",align=" + strconv.FormatUint(t.Alignment, 10) + "]"
}

// DetailOf computes the TypeDetail of T. Primitive integers, floats and
// bool carry canonical cross-language names; other types use their Go
// type name. Use Named to override the logical name.
func DetailOf[T any]() TypeDetail {
	var v T

	t := reflect.TypeOf(v)

	return TypeDetail{
		Name:      canonicalName(t),
		Size:      uint64(t.Size()),
		Alignment: uint64(t.Align()),
	}
}

// SliceDetailOf computes the TypeDetail identifying a slice payload of
// element type T: the logical name is the inner element's name, size and
// alignment are the element's.
func SliceDetailOf[T any]() TypeDetail {
	return DetailOf[T]()
}

// Named returns a copy of the detail with a user-provided logical name
// overriding the derived one.
func (t TypeDetail) Named(name string) TypeDetail {
	t.Name = name
	return t
}

func canonicalName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Uint8:
		return "u8"
	case reflect.Uint16:
		return "u16"
	case reflect.Uint32:
		return "u32"
	case reflect.Uint64:
		return "u64"
	case reflect.Int8:
		return "i8"
	case reflect.Int16:
		return "i16"
	case reflect.Int32:
		return "i32"
	case reflect.Int64:
		return "i64"
	case reflect.Float32:
		return "f32"
	case reflect.Float64:
		return "f64"
	case reflect.Bool:
		return "bool"
	}

	if n := t.Name(); n != "" {
		return n
	}

	return t.String()
}
