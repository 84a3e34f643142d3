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


package reqres_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcfg "github.com/sabouaram/zeroipc/config"
	libid "github.com/sabouaram/zeroipc/ident"
	libnod "github.com/sabouaram/zeroipc/node"
	librr "github.com/sabouaram/zeroipc/reqres"
	libsvc "github.com/sabouaram/zeroipc/service"
)

var _ = Describe("Request Response", func() {
	var (
		dir string
		nod libnod.Node
	)

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "rr-*")
		Expect(e).ToNot(HaveOccurred())

		cfg, err := libcfg.New(libcfg.Options{Domain: "unit", RootDir: dir, ShmDir: dir})
		Expect(err).To(BeNil())

		nod, err = libnod.New(cfg, "tester")
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(nod.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	newService := func(name string, fct func(*libsvc.ReqResBuilder) *libsvc.ReqResBuilder) libsvc.Service {
		b := libsvc.New(nod, name).
			RequestResponse(libid.DetailOf[uint64](), libid.DetailOf[uint64]())

		if fct != nil {
			b = fct(b)
		}

		s, err := b.Create()
		Expect(err).To(BeNil())

		return s
	}

	Describe("Round trip", func() {
		It("should carry a request to the server and a response back", func() {
			s := newService("Q", nil)

			srv, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			cli, err := librr.NewClient[uint64, uint64](s, librr.ClientOptions{})
			Expect(err).To(BeNil())

			pr, serr := cli.SendCopy(21)
			Expect(serr).To(BeNil())
			Expect(pr.IsConnected()).To(BeTrue())

			ar, ok, rerr := srv.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(*ar.Payload()).To(Equal(uint64(21)))
			Expect(ar.Origin()).To(Equal(cli.Id()))

			Expect(ar.SendCopy(42)).To(BeNil())
			Expect(ar.Close()).To(Succeed())

			res, ok, perr := pr.Receive()
			Expect(perr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(*res.Payload()).To(Equal(uint64(42)))

			res.Release()

			Expect(pr.IsDone()).To(BeTrue())
		})

		It("should stream multiple responses in order and close the stream", func() {
			s := newService("Q", func(b *libsvc.ReqResBuilder) *libsvc.ReqResBuilder {
				return b.MaxResponseBufferSize(8)
			})

			srv, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			cli, err := librr.NewClient[uint64, uint64](s, librr.ClientOptions{})
			Expect(err).To(BeNil())

			pr, serr := cli.SendCopy(1)
			Expect(serr).To(BeNil())

			ar, ok, rerr := srv.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())

			for _, v := range []uint64{100, 200, 300} {
				r, lerr := ar.Loan()
				Expect(lerr).To(BeNil())

				*r.Payload() = v

				Expect(r.Send()).To(BeNil())
			}

			Expect(ar.Close()).To(Succeed())

			var got []uint64

			for {
				res, ok, perr := pr.Receive()
				Expect(perr).To(BeNil())

				if !ok {
					break
				}

				got = append(got, *res.Payload())
				res.Release()
			}

			Expect(got).To(Equal([]uint64{100, 200, 300}))
			Expect(pr.IsDone()).To(BeTrue())
			Expect(pr.IsConnected()).To(BeFalse())
		})

		It("should report emptiness without requests", func() {
			s := newService("Q", nil)

			srv, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			Expect(srv.HasRequests()).To(BeFalse())

			_, ok, rerr := srv.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Fire and forget", func() {
		It("should deliver without a back channel", func() {
			s := newService("F", nil)

			srv, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			cli, err := librr.NewClient[uint64, uint64](s, librr.ClientOptions{})
			Expect(err).To(BeNil())

			Expect(cli.FireAndForget(5)).To(BeNil())

			ar, ok, rerr := srv.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(*ar.Payload()).To(Equal(uint64(5)))

			serr := ar.SendCopy(1)

			Expect(serr).ToNot(BeNil())
			Expect(serr.IsCode(librr.ErrorNoBackChannel)).To(BeTrue())

			Expect(ar.Close()).To(Succeed())
		})

		It("should refuse when the service disables it", func() {
			s := newService("F", func(b *libsvc.ReqResBuilder) *libsvc.ReqResBuilder {
				return b.EnableFireAndForget(false)
			})

			cli, err := librr.NewClient[uint64, uint64](s, librr.ClientOptions{})
			Expect(err).To(BeNil())

			serr := cli.FireAndForget(5)

			Expect(serr).ToNot(BeNil())
			Expect(serr.IsCode(librr.ErrorFireAndForgetOff)).To(BeTrue())
		})
	})

	Describe("Disconnect hint", func() {
		It("should surface the client's graceful shutdown intent", func() {
			s := newService("D", nil)

			srv, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			cli, err := librr.NewClient[uint64, uint64](s, librr.ClientOptions{})
			Expect(err).To(BeNil())

			_, serr := cli.SendCopy(1)
			Expect(serr).To(BeNil())

			ar, ok, rerr := srv.Receive()
			Expect(rerr).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(ar.HasDisconnectHint()).To(BeFalse())
			Expect(ar.IsConnected()).To(BeTrue())

			cli.SetDisconnectHint()

			Expect(ar.HasDisconnectHint()).To(BeTrue())
			Expect(ar.IsConnected()).To(BeFalse())

			Expect(ar.Close()).To(Succeed())
		})
	})

	Describe("Port capacity", func() {
		It("should fail beyond the frozen server maximum", func() {
			s := newService("C", func(b *libsvc.ReqResBuilder) *libsvc.ReqResBuilder {
				return b.MaxServers(1)
			})

			_, err := librr.NewServer[uint64, uint64](s, librr.ServerOptions{})
			Expect(err).To(BeNil())

			_, err = librr.NewServer[uint64, uint64](s, librr.ServerOptions{})

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(librr.ErrorExceedsMaxPorts)).To(BeTrue())
		})
	})
})
