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


package version_test

import (
	"github.com/fxamacker/cbor/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libvrs "github.com/sabouaram/zeroipc/version"
)

var _ = Describe("Version", func() {
	Describe("Current", func() {
		It("should expose the build triple", func() {
			v := libvrs.Current()

			Expect(v.Major).To(Equal(libvrs.Major))
			Expect(v.Minor).To(Equal(libvrs.Minor))
			Expect(v.Patch).To(Equal(libvrs.Patch))
		})

		It("should be compatible with itself", func() {
			Expect(libvrs.Current().IsCompatible()).To(BeTrue())
		})
	})

	Describe("IsCompatible", func() {
		It("should reject a foreign major", func() {
			v := libvrs.Info{Major: libvrs.Major + 1}

			Expect(v.IsCompatible()).To(BeFalse())
		})

		It("should accept any minor and patch of the same major", func() {
			v := libvrs.Info{Major: libvrs.Major, Minor: 99, Patch: 3}

			Expect(v.IsCompatible()).To(BeTrue())
		})
	})

	Describe("Parse", func() {
		It("should parse semver strings", func() {
			v, e := libvrs.Parse("1.2.3")

			Expect(e).ToNot(HaveOccurred())
			Expect(v).To(Equal(libvrs.Info{Major: 1, Minor: 2, Patch: 3}))
		})

		It("should round-trip through String", func() {
			src := libvrs.Info{Major: 4, Minor: 5, Patch: 6}

			back, e := libvrs.Parse(src.String())

			Expect(e).ToNot(HaveOccurred())
			Expect(back).To(Equal(src))
		})

		It("should reject garbage", func() {
			_, e := libvrs.Parse("not-a-version")

			Expect(e).To(HaveOccurred())
		})
	})

	Describe("Compare", func() {
		It("should order with semver precedence", func() {
			a := libvrs.Info{Major: 1, Minor: 2, Patch: 3}
			b := libvrs.Info{Major: 1, Minor: 10, Patch: 0}

			Expect(a.Compare(b)).To(Equal(-1))
			Expect(b.Compare(a)).To(Equal(1))
			Expect(a.Compare(a)).To(Equal(0))
		})
	})

	Describe("Encoding", func() {
		It("should round-trip through CBOR", func() {
			src := libvrs.Current()

			p, e := cbor.Marshal(src)
			Expect(e).ToNot(HaveOccurred())

			var dst libvrs.Info
			Expect(cbor.Unmarshal(p, &dst)).To(Succeed())
			Expect(dst).To(Equal(src))
		})
	})
})
