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


package queue_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libque "github.com/sabouaram/zeroipc/queue"
)

func region(n uint64) []byte {
	return make([]byte, n)
}

var _ = Describe("SPSC", func() {
	Describe("Attach", func() {
		It("should reject a region smaller than the layout", func() {
			_, err := libque.AttachSPSC(region(64), 8, true)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libque.ErrorRegionTooSmall)).To(BeTrue())
		})

		It("should detect capacity disagreement between processes", func() {
			mem := region(libque.SPSCSize(64))

			_, err := libque.AttachSPSC(mem, 64, true)
			Expect(err).To(BeNil())

			_, err = libque.AttachSPSC(mem, 64, false)
			Expect(err).To(BeNil())

			_, err = libque.AttachSPSC(mem[:libque.SPSCSize(16)], 16, false)
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libque.ErrorCapacityMismatch)).To(BeTrue())
		})

		It("should round the capacity up to a power of two", func() {
			q, err := libque.AttachSPSC(region(libque.SPSCSize(5)), 5, true)

			Expect(err).To(BeNil())
			Expect(q.Cap()).To(Equal(uint64(8)))
		})
	})

	Describe("Push and Pop", func() {
		It("should preserve FIFO order without duplication", func() {
			q, err := libque.AttachSPSC(region(libque.SPSCSize(8)), 8, true)
			Expect(err).To(BeNil())

			for i := uint64(1); i <= 8; i++ {
				Expect(q.Push(i)).To(BeTrue())
			}

			Expect(q.Push(9)).To(BeFalse())

			for i := uint64(1); i <= 8; i++ {
				v, ok := q.Pop()
				Expect(ok).To(BeTrue())
				Expect(v).To(Equal(i))
			}

			_, ok := q.Pop()
			Expect(ok).To(BeFalse())
		})

		It("should track the queued count", func() {
			q, _ := libque.AttachSPSC(region(libque.SPSCSize(8)), 8, true)

			Expect(q.Len()).To(Equal(uint64(0)))
			q.Push(1)
			q.Push(2)
			Expect(q.Len()).To(Equal(uint64(2)))
			q.Pop()
			Expect(q.Len()).To(Equal(uint64(1)))
		})
	})

	Describe("PushOverwrite", func() {
		It("should displace the oldest value when full", func() {
			q, _ := libque.AttachSPSC(region(libque.SPSCSize(4)), 4, true)

			for i := uint64(1); i <= 4; i++ {
				q.Push(i)
			}

			displaced, wasFull := q.PushOverwrite(5)

			Expect(wasFull).To(BeTrue())
			Expect(displaced).To(Equal(uint64(1)))

			v, ok := q.Pop()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint64(2)))
		})

		It("should behave like Push when room remains", func() {
			q, _ := libque.AttachSPSC(region(libque.SPSCSize(4)), 4, true)

			_, wasFull := q.PushOverwrite(1)

			Expect(wasFull).To(BeFalse())
			Expect(q.Len()).To(Equal(uint64(1)))
		})
	})

	Describe("Detached flags", func() {
		It("should keep both flags independently", func() {
			q, _ := libque.AttachSPSC(region(libque.SPSCSize(4)), 4, true)

			Expect(q.IsDetached(libque.DetachedProducer)).To(BeFalse())

			q.MarkDetached(libque.DetachedProducer)

			Expect(q.IsDetached(libque.DetachedProducer)).To(BeTrue())
			Expect(q.IsDetached(libque.DetachedConsumer)).To(BeFalse())
		})
	})

	Describe("Concurrent transfer", func() {
		It("should move every value exactly once in order", func() {
			const count = 100000

			q, _ := libque.AttachSPSC(region(libque.SPSCSize(1024)), 1024, true)

			var wg sync.WaitGroup
			wg.Add(2)

			go func() {
				defer wg.Done()

				for i := uint64(1); i <= count; {
					if q.Push(i) {
						i++
					}
				}
			}()

			var got []uint64

			go func() {
				defer wg.Done()

				for uint64(len(got)) < count {
					if v, ok := q.Pop(); ok {
						got = append(got, v)
					}
				}
			}()

			wg.Wait()

			Expect(got).To(HaveLen(count))

			for i, v := range got {
				Expect(v).To(Equal(uint64(i + 1)))
			}
		})
	})
})

var _ = Describe("MPMC", func() {
	Describe("Push and Pop", func() {
		It("should preserve FIFO order", func() {
			q, err := libque.AttachMPMC(region(libque.MPMCSize(8)), 8, true)
			Expect(err).To(BeNil())

			for i := uint64(10); i < 18; i++ {
				Expect(q.Push(i)).To(BeTrue())
			}

			Expect(q.Push(99)).To(BeFalse())

			for i := uint64(10); i < 18; i++ {
				v, ok := q.Pop()
				Expect(ok).To(BeTrue())
				Expect(v).To(Equal(i))
			}
		})

		It("should stay usable across wrap-around", func() {
			q, _ := libque.AttachMPMC(region(libque.MPMCSize(4)), 4, true)

			for lap := 0; lap < 10; lap++ {
				for i := uint64(0); i < 4; i++ {
					Expect(q.Push(i)).To(BeTrue())
				}

				for i := uint64(0); i < 4; i++ {
					v, ok := q.Pop()
					Expect(ok).To(BeTrue())
					Expect(v).To(Equal(i))
				}
			}
		})
	})

	Describe("Concurrent handoff", func() {
		It("should neither lose nor duplicate values", func() {
			const (
				producers = 4
				perProd   = 10000
			)

			q, _ := libque.AttachMPMC(region(libque.MPMCSize(512)), 512, true)

			var (
				wg   sync.WaitGroup
				m    sync.Mutex
				seen = map[uint64]bool{}
			)

			wg.Add(producers)

			for p := 0; p < producers; p++ {
				go func(p int) {
					defer wg.Done()

					for i := 0; i < perProd; {
						v := uint64(p*perProd + i + 1)

						if q.Push(v) {
							i++
						}
					}
				}(p)
			}

			done := make(chan struct{})

			go func() {
				defer close(done)

				for n := 0; n < producers*perProd; {
					if v, ok := q.Pop(); ok {
						m.Lock()
						Expect(seen[v]).To(BeFalse())
						seen[v] = true
						m.Unlock()
						n++
					}
				}
			}()

			wg.Wait()
			<-done

			Expect(seen).To(HaveLen(producers * perProd))
		})
	})
})
