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


package sample_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdur "github.com/sabouaram/zeroipc/duration"
	libid "github.com/sabouaram/zeroipc/ident"
	libsmp "github.com/sabouaram/zeroipc/sample"
	libshm "github.com/sabouaram/zeroipc/shm"
)

var _ = Describe("Pool", func() {
	var (
		dir string
		seg libshm.Segment
	)

	layout := libsmp.Layout{
		SlotCount:   4,
		ElemSize:    8,
		ElemAlign:   8,
		MaxElems:    1,
		UserHdrSize: 0,
	}

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "pool-*")
		Expect(e).ToNot(HaveOccurred())

		var err error

		seg, err = libshm.Create(filepath.Join(dir, "data"), libsmp.RequiredSize(layout), 0)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("Create and Attach", func() {
		It("should start with every slot free", func() {
			p, err := libsmp.Create(seg, layout)

			Expect(err).To(BeNil())
			Expect(p.FreeCount()).To(Equal(uint64(4)))
			Expect(p.Close()).To(Succeed())
		})

		It("should recover the layout from the segment", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			seg.MarkReady()

			seg2, serr := libshm.Open(seg.Path(), 50*libdur.Millisecond)
			Expect(serr).To(BeNil())

			q, err := libsmp.Attach(seg2)

			Expect(err).To(BeNil())
			Expect(q.Layout()).To(Equal(layout))

			Expect(q.Close()).To(Succeed())
			Expect(p.Close()).To(Succeed())
		})

		It("should reject a segment too small for the layout", func() {
			big := layout
			big.SlotCount = 4096

			_, err := libsmp.Create(seg, big)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsmp.ErrorLayoutInvalid)).To(BeTrue())
		})
	})

	Describe("Loan and Release", func() {
		It("should exhaust after the slot count", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			for i := 0; i < 4; i++ {
				_, lerr := p.Loan()
				Expect(lerr).To(BeNil())
			}

			_, lerr := p.Loan()

			Expect(lerr).ToNot(BeNil())
			Expect(lerr.IsCode(libsmp.ErrorPoolExhausted)).To(BeTrue())
		})

		It("should keep refcount zero equivalent to free", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			s, lerr := p.Loan()
			Expect(lerr).To(BeNil())
			Expect(p.FreeCount()).To(Equal(uint64(3)))

			// One extra reader, as a fan-out of two would take.
			p.AddRef(s.Idx(), 1)

			Expect(p.Release(s.Idx())).To(BeFalse())
			Expect(p.FreeCount()).To(Equal(uint64(3)))

			Expect(p.Release(s.Idx())).To(BeTrue())
			Expect(p.FreeCount()).To(Equal(uint64(4)))
		})

		It("should absorb release races idempotently", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			s, _ := p.Loan()

			Expect(p.Release(s.Idx())).To(BeTrue())
			Expect(p.Release(s.Idx())).To(BeFalse())
			Expect(p.FreeCount()).To(Equal(uint64(4)))
		})

		It("should hand a freed slot out again", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			seen := map[uint32]bool{}

			for i := 0; i < 16; i++ {
				s, lerr := p.Loan()
				Expect(lerr).To(BeNil())

				seen[s.Idx()] = true
				p.Release(s.Idx())
			}

			Expect(len(seen)).To(BeNumerically("<=", 4))
		})
	})

	Describe("Slot header", func() {
		It("should persist origin, message number, correlation and count", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			origin := libid.MintPortId(libid.NodeId{Pid: 1, Timestamp: 2, Counter: 3}, 4)

			s, _ := p.Loan()
			s.SetOrigin(origin)
			s.SetMsgNo(17)
			s.SetCorr(23)
			s.SetCount(1)

			again, gerr := p.Get(s.Idx())

			Expect(gerr).To(BeNil())
			Expect(again.Origin()).To(Equal(origin))
			Expect(again.MsgNo()).To(Equal(uint64(17)))
			Expect(again.Corr()).To(Equal(uint64(23)))
			Expect(again.Count()).To(Equal(uint64(1)))
		})

		It("should expose a payload of the configured width", func() {
			p, err := libsmp.Create(seg, layout)
			Expect(err).To(BeNil())

			s, _ := p.Loan()

			Expect(s.Payload(1)).To(HaveLen(8))
		})
	})

	Describe("Ref packing", func() {
		It("should round-trip generation and index", func() {
			g, i := libsmp.SplitRef(libsmp.Ref(7, 42))

			Expect(g).To(Equal(uint32(7)))
			Expect(i).To(Equal(uint32(42)))
		})
	})
})
