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


package errors_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liberr "github.com/sabouaram/zeroipc/errors"
)

const (
	testCodeBase liberr.CodeError = liberr.MinAvailable + 10
	testCodeNext                  = testCodeBase + 1
)

var _ = Describe("Error Codes", func() {
	BeforeEach(func() {
		if !liberr.ExistInMapMessage(testCodeBase) {
			liberr.RegisterIdFctMessage(testCodeBase, func(code liberr.CodeError) string {
				switch code {
				case testCodeBase:
					return "base test failure"
				case testCodeNext:
					return "next test failure"
				}
				return ""
			})
		}
	})

	Describe("Message", func() {
		Context("with a registered block", func() {
			It("should resolve the message of each code", func() {
				Expect(testCodeBase.Message()).To(Equal("base test failure"))
				Expect(testCodeNext.Message()).To(Equal("next test failure"))
			})
		})

		Context("with an unregistered code", func() {
			It("should fall back to the unknown message", func() {
				Expect(liberr.CodeError(9).Message()).To(Equal(liberr.UnknownMessage))
			})
		})
	})

	Describe("Error construction", func() {
		It("should carry its code", func() {
			e := testCodeBase.Error(nil)

			Expect(e).ToNot(BeNil())
			Expect(e.IsCode(testCodeBase)).To(BeTrue())
			Expect(e.IsCode(testCodeNext)).To(BeFalse())
			Expect(e.Code()).To(Equal(testCodeBase.Uint16()))
		})

		It("should capture a trace", func() {
			e := testCodeBase.Error(nil)

			Expect(e.GetTrace()).ToNot(BeEmpty())
			Expect(e.GetTrace()).To(ContainSubstring(":"))
		})

		It("should chain parents and find their codes", func() {
			p := testCodeNext.Error(nil)
			e := testCodeBase.Error(p)

			Expect(e.HasParent()).To(BeTrue())
			Expect(e.HasCode(testCodeNext)).To(BeTrue())
			Expect(e.GetParentCode()).To(HaveLen(2))
		})

		It("should skip nil parents", func() {
			e := testCodeBase.Error(nil, nil)

			Expect(e.HasParent()).To(BeFalse())
		})
	})

	Describe("IfError", func() {
		It("should return nil for a nil cause", func() {
			Expect(testCodeBase.IfError(nil)).To(BeNil())
		})

		It("should wrap a non-nil cause", func() {
			e := testCodeBase.IfError(fmt.Errorf("boom"))

			Expect(e).ToNot(BeNil())
			Expect(e.Error()).To(ContainSubstring("boom"))
		})
	})

	Describe("Standard library compatibility", func() {
		It("should satisfy errors.As", func() {
			var target liberr.Error

			e := testCodeBase.Error(errors.New("cause"))

			Expect(errors.As(e, &target)).To(BeTrue())
		})

		It("should expose parents through Unwrap", func() {
			cause := errors.New("root cause")
			e := testCodeBase.Error(cause)

			Expect(errors.Is(e, cause)).To(BeTrue())
		})
	})

	Describe("Map", func() {
		It("should visit the full hierarchy in order", func() {
			p := testCodeNext.Error(nil)
			e := testCodeBase.Error(p)

			var seen []string

			e.Map(func(err error) bool {
				seen = append(seen, err.Error())
				return true
			})

			Expect(seen).To(HaveLen(2))
		})

		It("should stop when the callback returns false", func() {
			e := testCodeBase.Error(testCodeNext.Error(nil))

			var count int

			e.Map(func(error) bool {
				count++
				return false
			})

			Expect(count).To(Equal(1))
		})
	})

	Describe("CodeError formatting", func() {
		It("should compose the code and message", func() {
			e := testCodeBase.Error(nil)

			Expect(e.CodeError("")).To(ContainSubstring(testCodeBase.String()))
			Expect(e.CodeError("")).To(ContainSubstring("base test failure"))
		})
	})
})
