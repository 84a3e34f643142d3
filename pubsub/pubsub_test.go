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


package pubsub_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcfg "github.com/sabouaram/zeroipc/config"
	libid "github.com/sabouaram/zeroipc/ident"
	libnod "github.com/sabouaram/zeroipc/node"
	libpub "github.com/sabouaram/zeroipc/pubsub"
	libsmp "github.com/sabouaram/zeroipc/sample"
	libsvc "github.com/sabouaram/zeroipc/service"
	libshm "github.com/sabouaram/zeroipc/shm"
)

var _ = Describe("Publish Subscribe", func() {
	var (
		dir string
		cfg libcfg.Config
		nod libnod.Node
	)

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "ps-*")
		Expect(e).ToNot(HaveOccurred())

		var err error

		cfg, err = libcfg.New(libcfg.Options{Domain: "unit", RootDir: dir, ShmDir: dir})
		Expect(err).To(BeNil())

		nod, err = libnod.New(cfg, "tester")
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(nod.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	newService := func(name string, fct func(*libsvc.PubSubBuilder) *libsvc.PubSubBuilder) libsvc.Service {
		b := libsvc.New(nod, name).PublishSubscribe(libid.DetailOf[uint64]())

		if fct != nil {
			b = fct(b)
		}

		s, err := b.Create()
		Expect(err).To(BeNil())

		return s
	}

	Describe("Basic delivery", func() {
		It("should deliver one value and then report emptiness", func() {
			s := newService("S", nil)

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{})
			Expect(err).To(BeNil())

			n, serr := p.SendCopy(42)
			Expect(serr).To(BeNil())
			Expect(n).To(Equal(uint64(1)))

			r, ok, rerr := b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(*r.Payload()).To(Equal(uint64(42)))

			r.Release()

			_, ok, rerr = b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeFalse())
		})

		It("should report zero receivers without subscribers", func() {
			s := newService("S", nil)

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			n, serr := p.SendCopy(1)

			Expect(serr).To(BeNil())
			Expect(n).To(Equal(uint64(0)))
		})

		It("should preserve the sent prefix in order", func() {
			s := newService("S", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.SubscriberMaxBufferSize(16).SubscriberMaxBorrowedSamples(16)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{MaxLoanedSamples: 16})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{BufferSize: 16})
			Expect(err).To(BeNil())

			for i := uint64(1); i <= 10; i++ {
				_, serr := p.SendCopy(i)
				Expect(serr).To(BeNil())
			}

			for i := uint64(1); i <= 10; i++ {
				r, ok, rerr := b.Receive()
				Expect(rerr).To(BeNil())
				Expect(ok).To(BeTrue())
				Expect(*r.Payload()).To(Equal(i))
				Expect(r.MsgNo()).To(Equal(i))

				r.Release()
			}
		})

		It("should support zero-copy loans", func() {
			s := newService("S", nil)

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{})
			Expect(err).To(BeNil())

			sm, lerr := p.Loan()
			Expect(lerr).To(BeNil())

			*sm.Payload() = 1234

			n, serr := sm.Send()
			Expect(serr).To(BeNil())
			Expect(n).To(Equal(uint64(1)))

			r, ok, rerr := b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(*r.Payload()).To(Equal(uint64(1234)))

			r.Release()
		})
	})

	Describe("History replay", func() {
		It("should replay the retained window to a late subscriber", func() {
			s := newService("H", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.HistorySize(3).SubscriberMaxBufferSize(8).SubscriberMaxBorrowedSamples(8)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			for i := uint64(1); i <= 5; i++ {
				_, serr := p.SendCopy(i)
				Expect(serr).To(BeNil())
			}

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{BufferSize: 8})
			Expect(err).To(BeNil())

			Expect(p.UpdateConnections()).To(BeNil())

			var got []uint64

			for {
				r, ok, rerr := b.Receive()
				Expect(rerr).To(BeNil())

				if !ok {
					break
				}

				got = append(got, *r.Payload())
				r.Release()
			}

			Expect(got).To(Equal([]uint64{3, 4, 5}))
		})
	})

	Describe("Borrow accounting", func() {
		It("should cap the borrowed samples per subscriber", func() {
			s := newService("B", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.SubscriberMaxBufferSize(8).SubscriberMaxBorrowedSamples(2)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{MaxLoanedSamples: 8})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{BufferSize: 8})
			Expect(err).To(BeNil())

			for i := uint64(0); i < 4; i++ {
				_, serr := p.SendCopy(i)
				Expect(serr).To(BeNil())
			}

			one, ok, rerr := b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())

			_, ok, rerr = b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())

			_, _, rerr = b.Receive()
			Expect(rerr).ToNot(BeNil())
			Expect(rerr.IsCode(libsmp.ErrorExceedsMaxBorrowedSamples)).To(BeTrue())

			one.Release()

			_, ok, rerr = b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
		})

		It("should cap the loaned samples per publisher", func() {
			s := newService("L", nil)

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{MaxLoanedSamples: 1})
			Expect(err).To(BeNil())

			sm, lerr := p.Loan()
			Expect(lerr).To(BeNil())

			_, lerr = p.Loan()
			Expect(lerr).ToNot(BeNil())
			Expect(lerr.IsCode(libsmp.ErrorExceedsMaxLoanedSamples)).To(BeTrue())

			sm.Release()

			_, lerr = p.Loan()
			Expect(lerr).To(BeNil())
		})
	})

	Describe("Port capacity", func() {
		It("should fail beyond the frozen publisher maximum", func() {
			s := newService("C", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.MaxPublishers(1)
			})

			_, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			_, err = libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libpub.ErrorExceedsMaxPorts)).To(BeTrue())
		})

		It("should free the slot when a publisher closes", func() {
			s := newService("C2", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.MaxPublishers(1)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			Expect(p.Close()).To(Succeed())

			_, err = libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())
		})

		It("should reject a payload of another layout", func() {
			s := newService("T", nil)

			_, err := libpub.NewPublisher[uint32](s, libpub.PublisherOptions{})

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libpub.ErrorPayloadMismatch)).To(BeTrue())
		})
	})

	Describe("Slice payloads", func() {
		It("should fail beyond the slice capacity under the static strategy", func() {
			s := newService("SL", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.MaxSliceLen(4).AllocationStrategy(libshm.StrategyStatic)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			_, lerr := p.LoanSlice(16)

			Expect(lerr).ToNot(BeNil())
			Expect(lerr.IsCode(libsmp.ErrorExceedsMaxLoanSize)).To(BeTrue())
		})

		It("should grow and deliver under the power-of-two strategy", func() {
			s := newService("SG", func(b *libsvc.PubSubBuilder) *libsvc.PubSubBuilder {
				return b.MaxSliceLen(4).AllocationStrategy(libshm.StrategyPowerOfTwo)
			})

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{})
			Expect(err).To(BeNil())

			vals := []uint64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}

			n, serr := p.SendSliceCopy(vals)
			Expect(serr).To(BeNil())
			Expect(n).To(Equal(uint64(1)))

			r, ok, rerr := b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(r.Elems()).To(Equal(vals))

			r.Release()
		})
	})

	Describe("Sample validity after drop", func() {
		It("should keep a received sample readable after the publisher closes", func() {
			s := newService("V", nil)

			p, err := libpub.NewPublisher[uint64](s, libpub.PublisherOptions{})
			Expect(err).To(BeNil())

			b, err := libpub.NewSubscriber[uint64](s, libpub.SubscriberOptions{})
			Expect(err).To(BeNil())

			_, serr := p.SendCopy(77)
			Expect(serr).To(BeNil())

			r, ok, rerr := b.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())

			Expect(p.Close()).To(Succeed())

			Expect(*r.Payload()).To(Equal(uint64(77)))

			r.Release()
		})
	})
})
