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


package size_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libsiz "github.com/sabouaram/zeroipc/size"
)

var _ = Describe("Size", func() {
	Describe("Parse", func() {
		It("should parse plain byte counts", func() {
			s, e := libsiz.Parse("123")

			Expect(e).ToNot(HaveOccurred())
			Expect(s).To(Equal(libsiz.Size(123)))
		})

		It("should parse binary units with or without the B suffix", func() {
			for in, want := range map[string]libsiz.Size{
				"4K":   4 * libsiz.SizeKilo,
				"4KB":  4 * libsiz.SizeKilo,
				"2MB":  2 * libsiz.SizeMega,
				"1G":   libsiz.SizeGiga,
				"3TB":  3 * libsiz.SizeTera,
				" 8k ": 8 * libsiz.SizeKilo,
			} {
				s, e := libsiz.Parse(in)

				Expect(e).ToNot(HaveOccurred(), "input %q", in)
				Expect(s).To(Equal(want), "input %q", in)
			}
		})

		It("should reject garbage", func() {
			_, e := libsiz.Parse("many")

			Expect(e).To(HaveOccurred())
		})
	})

	Describe("String", func() {
		It("should render the largest exact unit", func() {
			Expect((4 * libsiz.SizeKilo).String()).To(Equal("4KB"))
			Expect(libsiz.SizeGiga.String()).To(Equal("1GB"))
			Expect(libsiz.Size(100).String()).To(Equal("100"))
		})

		It("should round-trip through Parse", func() {
			src := 64 * libsiz.SizeMega

			back, e := libsiz.Parse(src.String())

			Expect(e).ToNot(HaveOccurred())
			Expect(back).To(Equal(src))
		})
	})

	Describe("AlignUp", func() {
		It("should round up to the alignment", func() {
			Expect(libsiz.Size(13).AlignUp(8)).To(Equal(libsiz.Size(16)))
			Expect(libsiz.Size(16).AlignUp(8)).To(Equal(libsiz.Size(16)))
		})

		It("should ignore non-power-of-two alignments", func() {
			Expect(libsiz.Size(13).AlignUp(10)).To(Equal(libsiz.Size(13)))
		})
	})

	Describe("NextPowerOfTwo", func() {
		It("should compute the covering power of two", func() {
			Expect(libsiz.Size(0).NextPowerOfTwo()).To(Equal(libsiz.Size(1)))
			Expect(libsiz.Size(1).NextPowerOfTwo()).To(Equal(libsiz.Size(1)))
			Expect(libsiz.Size(3).NextPowerOfTwo()).To(Equal(libsiz.Size(4)))
			Expect(libsiz.Size(4096).NextPowerOfTwo()).To(Equal(libsiz.Size(4096)))
			Expect(libsiz.Size(4097).NextPowerOfTwo()).To(Equal(libsiz.Size(8192)))
		})
	})
})
