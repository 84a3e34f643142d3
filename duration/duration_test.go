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


package duration_test

import (
	"encoding/json"
	"time"

	"github.com/fxamacker/cbor/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdur "github.com/sabouaram/zeroipc/duration"
)

var _ = Describe("Duration", func() {
	Describe("Parse", func() {
		Context("with plain time.Duration syntax", func() {
			It("should parse hours, minutes and seconds", func() {
				d, e := libdur.Parse("2h45m10s")

				Expect(e).ToNot(HaveOccurred())
				Expect(d.Time()).To(Equal(2*time.Hour + 45*time.Minute + 10*time.Second))
			})
		})

		Context("with days notation", func() {
			It("should parse a day prefix", func() {
				d, e := libdur.Parse("5d23h15m13s")

				Expect(e).ToNot(HaveOccurred())
				Expect(d).To(Equal(libdur.Days(5) + libdur.Hours(23) + libdur.Minutes(15) + libdur.Seconds(13)))
			})

			It("should parse bare days", func() {
				d, e := libdur.Parse("3d")

				Expect(e).ToNot(HaveOccurred())
				Expect(d).To(Equal(libdur.Days(3)))
			})
		})

		Context("with empty input", func() {
			It("should yield zero", func() {
				d, e := libdur.Parse("")

				Expect(e).ToNot(HaveOccurred())
				Expect(d.IsZero()).To(BeTrue())
			})
		})

		Context("with invalid input", func() {
			It("should fail", func() {
				_, e := libdur.Parse("5x")

				Expect(e).To(HaveOccurred())
			})
		})
	})

	Describe("String", func() {
		It("should render days and remainder", func() {
			Expect((libdur.Days(2) + libdur.Hours(3)).String()).To(Equal("2d3h0m0s"))
		})

		It("should render zero as 0s", func() {
			Expect(libdur.Duration(0).String()).To(Equal("0s"))
		})

		It("should round-trip through Parse", func() {
			src := libdur.Days(1) + libdur.Minutes(30)

			back, e := libdur.Parse(src.String())

			Expect(e).ToNot(HaveOccurred())
			Expect(back).To(Equal(src))
		})
	})

	Describe("Encoding", func() {
		type wrap struct {
			D libdur.Duration `json:"d" cbor:"1,keyasint"`
		}

		It("should round-trip through JSON", func() {
			src := wrap{D: libdur.Hours(2)}

			p, e := json.Marshal(src)
			Expect(e).ToNot(HaveOccurred())

			var dst wrap
			Expect(json.Unmarshal(p, &dst)).To(Succeed())
			Expect(dst.D).To(Equal(src.D))
		})

		It("should round-trip through CBOR", func() {
			src := wrap{D: libdur.Millis(1500)}

			p, e := cbor.Marshal(src)
			Expect(e).ToNot(HaveOccurred())

			var dst wrap
			Expect(cbor.Unmarshal(p, &dst)).To(Succeed())
			Expect(dst.D).To(Equal(src.D))
		})
	})
})
