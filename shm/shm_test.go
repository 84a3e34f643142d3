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


package shm_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdur "github.com/sabouaram/zeroipc/duration"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

var _ = Describe("Segment", func() {
	var dir string

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "shm-*")
		Expect(e).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	path := func(n string) string {
		return filepath.Join(dir, n)
	}

	Describe("Create", func() {
		It("should create, map and expose the payload area", func() {
			s, err := libshm.Create(path("a"), 4096, 0)

			Expect(err).To(BeNil())
			Expect(s.Size()).To(BeNumerically(">=", 4096))
			Expect(len(s.Bytes())).To(Equal(s.Size().Int()))
			Expect(s.Close()).To(Succeed())
		})

		It("should refuse a second exclusive creation", func() {
			s, err := libshm.Create(path("a"), 128, 0)
			Expect(err).To(BeNil())

			defer func() {
				Expect(s.Close()).To(Succeed())
			}()

			_, err = libshm.Create(path("a"), 128, 0)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libshm.ErrorSegmentExists)).To(BeTrue())
		})
	})

	Describe("Open", func() {
		It("should fail for a missing name", func() {
			_, err := libshm.Open(path("missing"), 10*libdur.Millisecond)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libshm.ErrorSegmentNotFound)).To(BeTrue())
		})

		It("should time out on a never-initialized segment", func() {
			s, err := libshm.Create(path("a"), 128, 0)
			Expect(err).To(BeNil())

			// No MarkReady: openers must give up.
			_, err = libshm.Open(path("a"), 20*libdur.Millisecond)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libshm.ErrorSegmentCorrupted)).To(BeTrue())

			Expect(s.Close()).To(Succeed())
		})

		It("should share memory between two mappings", func() {
			a, err := libshm.Create(path("a"), 4096, 0)
			Expect(err).To(BeNil())

			a.MarkReady()

			b, err := libshm.Open(path("a"), 100*libdur.Millisecond)
			Expect(err).To(BeNil())

			libshm.U64(a.Bytes(), 0).Store(0xfeedface)
			Expect(libshm.U64(b.Bytes(), 0).Load()).To(Equal(uint64(0xfeedface)))

			Expect(b.Close()).To(Succeed())
			Expect(a.Close()).To(Succeed())
		})

		It("should remove the backing file with the last close", func() {
			a, err := libshm.Create(path("a"), 128, 0)
			Expect(err).To(BeNil())
			a.MarkReady()

			b, err := libshm.Open(path("a"), 100*libdur.Millisecond)
			Expect(err).To(BeNil())

			Expect(a.Close()).To(Succeed())
			_, e := os.Stat(path("a"))
			Expect(e).ToNot(HaveOccurred())

			Expect(b.Close()).To(Succeed())
			_, e = os.Stat(path("a"))
			Expect(os.IsNotExist(e)).To(BeTrue())
		})

		It("should reject a foreign file", func() {
			Expect(os.WriteFile(path("junk"), make([]byte, 256), 0o640)).To(Succeed())

			_, err := libshm.Open(path("junk"), 10*libdur.Millisecond)

			Expect(err).ToNot(BeNil())
		})
	})

	Describe("OpenOrCreate", func() {
		It("should report who created", func() {
			a, created, err := libshm.OpenOrCreate(path("a"), 256, 0, 50*libdur.Millisecond)

			Expect(err).To(BeNil())
			Expect(created).To(BeTrue())

			a.MarkReady()

			b, created, err := libshm.OpenOrCreate(path("a"), 256, 0, 50*libdur.Millisecond)

			Expect(err).To(BeNil())
			Expect(created).To(BeFalse())

			Expect(b.Close()).To(Succeed())
			Expect(a.Close()).To(Succeed())
		})
	})

	Describe("Alloc", func() {
		It("should bump with alignment and fail when exhausted", func() {
			s, err := libshm.Create(path("a"), 64, 0)
			Expect(err).To(BeNil())

			off1, aerr := s.Alloc(10, 8)
			Expect(aerr).To(BeNil())
			Expect(off1 % 8).To(Equal(uint64(0)))

			off2, aerr := s.Alloc(16, 16)
			Expect(aerr).To(BeNil())
			Expect(off2 % 16).To(Equal(uint64(0)))
			Expect(off2).To(BeNumerically(">", off1))

			_, aerr = s.Alloc(4096, 8)
			Expect(aerr).ToNot(BeNil())
			Expect(aerr.IsCode(libshm.ErrorSegmentFull)).To(BeTrue())

			Expect(s.Close()).To(Succeed())
		})
	})

	Describe("NextSize", func() {
		It("should refuse growth under the static strategy", func() {
			_, ok := libshm.NextSize(libshm.StrategyStatic, 100, 200, 64)

			Expect(ok).To(BeFalse())
		})

		It("should keep the current size when it suffices", func() {
			n, ok := libshm.NextSize(libshm.StrategyStatic, 200, 100, 64)

			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(libsiz.Size(200)))
		})

		It("should round to the chunk under best fit", func() {
			n, ok := libshm.NextSize(libshm.StrategyBestFit, 100, 200, 64)

			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(libsiz.Size(256)))
		})

		It("should round to a power of two under power-of-two", func() {
			n, ok := libshm.NextSize(libshm.StrategyPowerOfTwo, 100, 300, 64)

			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(libsiz.Size(512)))
		})
	})
})
