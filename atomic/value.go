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


package atomic

import (
	"sync/atomic"
)

// box wraps stored values so that interface-typed T values with differing
// dynamic types stay storable in the underlying atomic.Value.
type box[T any] struct {
	v T
}

type val[T any] struct {
	av *atomic.Value // current box[T]
	dl *atomic.Value // default box[T] for Load
}

func newValue[T any]() *val[T] {
	return &val[T]{
		av: new(atomic.Value),
		dl: new(atomic.Value),
	}
}

func (o *val[T]) SetDefaultLoad(def T) {
	o.dl.Store(box[T]{v: def})
}

func (o *val[T]) getDefaultLoad() T {
	if b, k := o.dl.Load().(box[T]); k {
		return b.v
	}

	var zero T
	return zero
}

func (o *val[T]) Load() T {
	if b, k := o.av.Load().(box[T]); k {
		return b.v
	}

	return o.getDefaultLoad()
}

func (o *val[T]) Store(v T) {
	o.av.Store(box[T]{v: v})
}

func (o *val[T]) Swap(new T) (old T) {
	if b, k := o.av.Swap(box[T]{v: new}).(box[T]); k {
		return b.v
	}

	return o.getDefaultLoad()
}

func (o *val[T]) CompareAndSwap(old, new T) bool {
	return o.av.CompareAndSwap(box[T]{v: old}, box[T]{v: new})
}

// Cast tries to convert the given any value to type T.
func Cast[T any](i any) (T, bool) {
	if v, ok := i.(T); ok {
		return v, true
	}

	var zero T
	return zero, false
}
