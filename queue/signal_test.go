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
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libque "github.com/sabouaram/zeroipc/queue"
)

var _ = Describe("Signal", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "sig-*")
		Expect(e).ToNot(HaveOccurred())

		path = filepath.Join(dir, "wake")
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("Open", func() {
		It("should fail without a receiver", func() {
			_, err := libque.OpenSignal(path)

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libque.ErrorSignalNoReceiver)).To(BeTrue())
		})
	})

	Describe("Notify and TryWait", func() {
		It("should deliver distinct ids in first-arrival order", func() {
			rx, err := libque.CreateSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				Expect(rx.Close()).To(Succeed())
				Expect(rx.Unlink()).To(Succeed())
			}()

			tx, err := libque.OpenSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				Expect(tx.Close()).To(Succeed())
			}()

			Expect(tx.Notify(7)).To(BeNil())
			Expect(tx.Notify(3)).To(BeNil())
			Expect(tx.Notify(7)).To(BeNil())
			Expect(tx.Notify(1)).To(BeNil())

			ids, werr := rx.TryWait(255)

			Expect(werr).To(BeNil())
			Expect(ids).To(Equal([]uint64{7, 3, 1}))
		})

		It("should clamp ids above the maximum", func() {
			rx, err := libque.CreateSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				_ = rx.Close()
				_ = rx.Unlink()
			}()

			tx, err := libque.OpenSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				_ = tx.Close()
			}()

			Expect(tx.Notify(5000)).To(BeNil())

			ids, werr := rx.TryWait(255)

			Expect(werr).To(BeNil())
			Expect(ids).To(Equal([]uint64{255}))
		})

		It("should return empty without pending frames", func() {
			rx, err := libque.CreateSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				_ = rx.Close()
				_ = rx.Unlink()
			}()

			ids, werr := rx.TryWait(255)

			Expect(werr).To(BeNil())
			Expect(ids).To(BeEmpty())
		})
	})

	Describe("Wait", func() {
		It("should time out on silence", func() {
			rx, err := libque.CreateSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				_ = rx.Close()
				_ = rx.Unlink()
			}()

			start := time.Now()
			ids, werr := rx.Wait(30*time.Millisecond, 255)

			Expect(werr).To(BeNil())
			Expect(ids).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically(">=", 20*time.Millisecond))
		})

		It("should wake on a late notification", func() {
			rx, err := libque.CreateSignal(path)
			Expect(err).To(BeNil())

			defer func() {
				_ = rx.Close()
				_ = rx.Unlink()
			}()

			go func() {
				defer GinkgoRecover()

				time.Sleep(10 * time.Millisecond)

				tx, oerr := libque.OpenSignal(path)
				Expect(oerr).To(BeNil())

				defer func() {
					_ = tx.Close()
				}()

				Expect(tx.Notify(9)).To(BeNil())
			}()

			ids, werr := rx.Wait(500*time.Millisecond, 255)

			Expect(werr).To(BeNil())
			Expect(ids).To(Equal([]uint64{9}))
		})
	})
})
