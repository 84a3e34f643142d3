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


package conn_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcnx "github.com/sabouaram/zeroipc/conn"
	libdur "github.com/sabouaram/zeroipc/duration"
	libque "github.com/sabouaram/zeroipc/queue"
)

var _ = Describe("Connection", func() {
	var (
		dir  string
		path string
	)

	timeout := 100 * libdur.Millisecond

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "conn-*")
		Expect(e).ToNot(HaveOccurred())

		path = filepath.Join(dir, "pair")
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("Create and Open", func() {
		It("should let both sides attach the same queue", func() {
			a, err := libcnx.Create(path, 8, 4, timeout)
			Expect(err).To(BeNil())

			b, err := libcnx.Create(path, 8, 4, timeout)
			Expect(err).To(BeNil())

			Expect(a.Queue().Push(11)).To(BeTrue())

			v, ok := b.Queue().Pop()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint64(11)))

			Expect(b.Close()).To(Succeed())
			Expect(a.Close()).To(Succeed())
		})

		It("should fail opening a missing connection", func() {
			_, err := libcnx.Open(path, 10*libdur.Millisecond)

			Expect(err).ToNot(BeNil())
		})
	})

	Describe("Borrow ledger", func() {
		It("should track outstanding references until cleared", func() {
			c, err := libcnx.Create(path, 8, 4, timeout)
			Expect(err).To(BeNil())

			defer func() {
				Expect(c.Close()).To(Succeed())
			}()

			c.RecordBorrow(100)
			c.RecordBorrow(0) // reference zero is representable
			c.RecordBorrow(200)

			var got []uint64

			c.Borrows(func(ref uint64) bool {
				got = append(got, ref)
				return true
			})

			Expect(got).To(ConsistOf(uint64(100), uint64(0), uint64(200)))

			c.ClearBorrow(100)
			c.ClearBorrow(0)

			got = got[:0]

			c.Borrows(func(ref uint64) bool {
				got = append(got, ref)
				return true
			})

			Expect(got).To(ConsistOf(uint64(200)))
		})
	})

	Describe("Detach flags", func() {
		It("should propagate between the two sides", func() {
			a, err := libcnx.Create(path, 8, 4, timeout)
			Expect(err).To(BeNil())

			b, err := libcnx.Open(path, timeout)
			Expect(err).To(BeNil())

			a.MarkDetached(libque.DetachedProducer)

			Expect(b.IsDetached(libque.DetachedProducer)).To(BeTrue())
			Expect(b.IsDetached(libque.DetachedConsumer)).To(BeFalse())

			Expect(b.Close()).To(Succeed())
			Expect(a.Close()).To(Succeed())
		})
	})
})
