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


package service_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcfg "github.com/sabouaram/zeroipc/config"
	libid "github.com/sabouaram/zeroipc/ident"
	libnod "github.com/sabouaram/zeroipc/node"
	libatt "github.com/sabouaram/zeroipc/service/attribute"
	libsvc "github.com/sabouaram/zeroipc/service"
)

var _ = Describe("Service Directory", func() {
	var (
		dir string
		cfg libcfg.Config
		nod libnod.Node
	)

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "svc-*")
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

	payload := libid.DetailOf[uint64]()

	Describe("Create", func() {
		It("should create a publish-subscribe service", func() {
			s, err := libsvc.New(nod, "radar/targets").
				PublishSubscribe(payload).
				Create()

			Expect(err).To(BeNil())
			Expect(s.WasCreated()).To(BeTrue())
			Expect(s.Pattern()).To(Equal(libsvc.PatternPublishSubscribe))
			Expect(s.Static().Payload).To(Equal(payload))
		})

		It("should fail on a second creation of the same name", func() {
			_, err := libsvc.New(nod, "radar/targets").PublishSubscribe(payload).Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "radar/targets").PublishSubscribe(payload).Create()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorAlreadyExists)).To(BeTrue())
		})

		It("should keep patterns of the same name apart", func() {
			_, err := libsvc.New(nod, "same").PublishSubscribe(payload).Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "same").Event().Create()
			Expect(err).To(BeNil())
		})
	})

	Describe("Open", func() {
		It("should fail on a missing service", func() {
			_, err := libsvc.New(nod, "absent").PublishSubscribe(payload).Open()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorDoesNotExist)).To(BeTrue())
		})

		It("should open its own service reflexively", func() {
			_, err := libsvc.New(nod, "self").
				PublishSubscribe(payload).
				MaxPublishers(3).
				Create()
			Expect(err).To(BeNil())

			s, err := libsvc.New(nod, "self").
				PublishSubscribe(payload).
				MaxPublishers(3).
				Open()

			Expect(err).To(BeNil())
			Expect(s.WasCreated()).To(BeFalse())
			Expect(s.Static().PubSub.MaxPublishers).To(Equal(uint32(3)))
		})

		It("should reject a payload identity of another size", func() {
			created := libid.TypeDetail{Name: "Payload", Size: 16, Alignment: 8}
			requested := libid.TypeDetail{Name: "Payload", Size: 24, Alignment: 8}

			_, err := libsvc.New(nod, "typed").PublishSubscribe(created).Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "typed").PublishSubscribe(requested).Open()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorIncompatibleTypes)).To(BeTrue())
		})

		It("should reject a pattern mismatch", func() {
			_, err := libsvc.New(nod, "patterned").Event().Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "patterned").PublishSubscribe(payload).Open()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorDoesNotExist)).To(BeTrue())
		})

		It("should reject capacities above the frozen maxima", func() {
			_, err := libsvc.New(nod, "small").
				PublishSubscribe(payload).
				MaxSubscribers(2).
				Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "small").
				PublishSubscribe(payload).
				MaxSubscribers(8).
				Open()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorUnsupportedAmountOfSubscribers)).To(BeTrue())
		})

		Context("with attributes", func() {
			BeforeEach(func() {
				_, err := libsvc.New(nod, "attributed").
					Event().
					Attributes(libatt.NewSpecifier().
						Define("camera", "front").
						Define("camera", "rear")).
					Create()

				Expect(err).To(BeNil())
			})

			It("should satisfy met requirements", func() {
				_, err := libsvc.New(nod, "attributed").
					Event().
					Requirements(libatt.NewVerifier().
						RequireKey("camera").
						Require("camera", "rear")).
					Open()

				Expect(err).To(BeNil())
			})

			It("should reject unmet requirements", func() {
				_, err := libsvc.New(nod, "attributed").
					Event().
					Requirements(libatt.NewVerifier().Require("camera", "side")).
					Open()

				Expect(err).ToNot(BeNil())
				Expect(err.IsCode(libsvc.ErrorIncompatibleAttributes)).To(BeTrue())
			})
		})
	})

	Describe("OpenOrCreate", func() {
		It("should create on first call and open on the second", func() {
			a, err := libsvc.New(nod, "ooc").PublishSubscribe(payload).OpenOrCreate()

			Expect(err).To(BeNil())
			Expect(a.WasCreated()).To(BeTrue())

			b, err := libsvc.New(nod, "ooc").PublishSubscribe(payload).OpenOrCreate()

			Expect(err).To(BeNil())
			Expect(b.WasCreated()).To(BeFalse())
			Expect(b.Id()).To(Equal(a.Id()))
		})
	})

	Describe("List", func() {
		It("should enumerate existing services with their details", func() {
			_, err := libsvc.New(nod, "one").PublishSubscribe(payload).Create()
			Expect(err).To(BeNil())

			_, err = libsvc.New(nod, "two").Event().Create()
			Expect(err).To(BeNil())

			names := map[string]libsvc.Pattern{}

			lerr := libsvc.List(cfg, func(d libsvc.Detail) bool {
				if d.Static != nil {
					names[d.Static.Name] = d.Static.Pattern
				}
				return true
			})

			Expect(lerr).To(BeNil())
			Expect(names).To(HaveLen(2))
			Expect(names["one"]).To(Equal(libsvc.PatternPublishSubscribe))
			Expect(names["two"]).To(Equal(libsvc.PatternEvent))
		})
	})

	Describe("Lifecycle", func() {
		It("should remove the directory entry when the last node leaves", func() {
			s, err := libsvc.New(nod, "ephemeral").Event().Create()
			Expect(err).To(BeNil())

			sid := s.Id().String()

			_, serr := os.Stat(cfg.StaticConfigPath(sid))
			Expect(serr).ToNot(HaveOccurred())

			Expect(s.Close()).To(Succeed())

			_, serr = os.Stat(cfg.StaticConfigPath(sid))
			Expect(os.IsNotExist(serr)).To(BeTrue())
		})

		It("should enforce the node capacity", func() {
			_, err := libsvc.New(nod, "crowded").Event().MaxNodes(1).Create()
			Expect(err).To(BeNil())

			other, nerr := libnod.New(cfg, "second")
			Expect(nerr).To(BeNil())

			defer func() {
				Expect(other.Close()).To(Succeed())
			}()

			_, err = libsvc.New(other, "crowded").Event().Open()

			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsvc.ErrorExceedsMaxNodes)).To(BeTrue())
		})
	})
})
