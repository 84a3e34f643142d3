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


package atomic_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libatm "github.com/sabouaram/zeroipc/atomic"
)

var _ = Describe("Value", func() {
	Describe("Load and Store", func() {
		It("should return the zero value when empty", func() {
			v := libatm.NewValue[int]()

			Expect(v.Load()).To(Equal(0))
		})

		It("should return the configured default when empty", func() {
			v := libatm.NewValueDefault[string]("fallback")

			Expect(v.Load()).To(Equal("fallback"))

			v.Store("real")
			Expect(v.Load()).To(Equal("real"))
		})

		It("should store and load values of any type", func() {
			type state struct{ n int }

			v := libatm.NewValue[state]()
			v.Store(state{n: 7})

			Expect(v.Load()).To(Equal(state{n: 7}))
		})
	})

	Describe("Swap", func() {
		It("should return the previous value", func() {
			v := libatm.NewValue[int]()
			v.Store(1)

			Expect(v.Swap(2)).To(Equal(1))
			Expect(v.Load()).To(Equal(2))
		})
	})

	Describe("CompareAndSwap", func() {
		It("should swap only on a matching old value", func() {
			v := libatm.NewValue[int]()
			v.Store(1)

			Expect(v.CompareAndSwap(9, 5)).To(BeFalse())
			Expect(v.CompareAndSwap(1, 5)).To(BeTrue())
			Expect(v.Load()).To(Equal(5))
		})
	})

	Describe("Concurrent access", func() {
		It("should stay consistent under parallel stores", func() {
			v := libatm.NewValue[int]()

			var wg sync.WaitGroup

			for i := 1; i <= 8; i++ {
				wg.Add(1)

				go func(i int) {
					defer wg.Done()
					v.Store(i)
				}(i)
			}

			wg.Wait()

			Expect(v.Load()).To(BeNumerically(">=", 1))
			Expect(v.Load()).To(BeNumerically("<=", 8))
		})
	})

	Describe("Cast", func() {
		It("should convert matching dynamic types", func() {
			got, ok := libatm.Cast[int](any(5))

			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(5))
		})

		It("should reject mismatched types", func() {
			_, ok := libatm.Cast[int](any("five"))

			Expect(ok).To(BeFalse())
		})
	})
})
