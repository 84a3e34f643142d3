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


// Package atomic provides a type-safe wrapper around sync/atomic.Value
// with default-value support, used for lock-free process-local state in
// ports and builders.
package atomic

// Value is a generic atomic container for values of type T.
//
// All operations are lock-free and safe for concurrent access.
type Value[T any] interface {
	// Load retrieves the current value, or the configured default when
	// the container is empty.
	Load() T
	// Store sets the value.
	Store(val T)
	// Swap stores the new value and returns the old one.
	Swap(new T) (old T)
	// CompareAndSwap stores new if the current value equals old and
	// reports whether the swap happened.
	CompareAndSwap(old, new T) (swapped bool)

	// SetDefaultLoad configures the value returned by Load when empty.
	SetDefaultLoad(def T)
}

// NewValue returns an empty atomic Value for type T.
func NewValue[T any]() Value[T] {
	return newValue[T]()
}

// NewValueDefault returns an atomic Value preloaded with the given
// default for Load.
func NewValueDefault[T any](def T) Value[T] {
	v := newValue[T]()
	v.SetDefaultLoad(def)
	return v
}
