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


// Package pubsub implements the publish-subscribe ports: typed
// zero-copy publishers fanning samples out to subscribers over
// per-pair lock-free connections, with history replay for late
// joiners, configurable overflow behavior and borrow-tracked receive
// buffers.
//
// Payloads are mapped directly inside the publisher's shared-memory
// data segment: a loaned sample exposes a *T pointing into the slot,
// Send publishes the slot reference without copying, and receivers
// read the same bytes. The compile-time type parameter T must match
// the payload identity frozen in the service.
package pubsub

import (
	"io"

	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libsvc "github.com/sabouaram/zeroipc/service"
)

// UnableToDeliver selects what a publisher does when a subscriber's
// buffer is full and safe overflow is disabled.
type UnableToDeliver uint8

const (
	// DeliverDiscard drops the sample for that subscriber.
	DeliverDiscard UnableToDeliver = iota
	// DeliverBlock busy-waits with back-off until the buffer drains.
	DeliverBlock
)

// String returns the lowercase strategy name.
func (s UnableToDeliver) String() string {
	if s == DeliverBlock {
		return "block"
	}
	return "discard-sample"
}

// PublisherOptions tunes one publisher port. Zero values fall back to
// the service configuration.
type PublisherOptions struct {
	// MaxLoanedSamples bounds the samples loaned at once.
	MaxLoanedSamples uint32
	// UnableToDeliverStrategy applies when safe overflow is off.
	UnableToDeliverStrategy UnableToDeliver
}

// SubscriberOptions tunes one subscriber port.
type SubscriberOptions struct {
	// BufferSize bounds the receive queue depth, capped by the service
	// wide subscriber maximum buffer size.
	BufferSize uint32
}

// Publisher is the sending endpoint of a publish-subscribe service.
type Publisher[T any] interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// Loan borrows a zero-initialized sample slot.
	Loan() (*Sample[T], liberr.Error)
	// LoanUninit borrows a sample slot without clearing the payload.
	LoanUninit() (*Sample[T], liberr.Error)
	// LoanSlice borrows a zero-initialized slot for n elements, growing
	// the payload segment when the allocation strategy allows it.
	LoanSlice(n uint64) (*SampleSlice[T], liberr.Error)
	// LoanSliceUninit borrows an n-element slot without clearing it.
	LoanSliceUninit(n uint64) (*SampleSlice[T], liberr.Error)

	// SendCopy loans, copies v and sends. Returns the number of
	// subscribers that received the sample.
	SendCopy(v T) (uint64, liberr.Error)
	// SendSliceCopy loans, copies vs and sends.
	SendSliceCopy(vs []T) (uint64, liberr.Error)

	// UpdateConnections rescans the subscriber table and replays
	// history to newly connected subscribers. Send does this lazily;
	// explicit calls make late joiners catch up without traffic.
	UpdateConnections() liberr.Error

	// UnableToDeliverStrategy returns the configured strategy.
	UnableToDeliverStrategy() UnableToDeliver
}

// Subscriber is the receiving endpoint of a publish-subscribe service.
type Subscriber[T any] interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// Receive returns the oldest undelivered sample, or ok=false when
	// none is pending.
	Receive() (*Recv[T], bool, liberr.Error)
	// HasSamples peeks whether a sample is pending.
	HasSamples() (bool, liberr.Error)
}

// NewPublisher creates a publisher port on the service. The type
// parameter must match the service payload identity.
func NewPublisher[T any](s libsvc.Service, o PublisherOptions) (Publisher[T], liberr.Error) {
	return newPublisher[T](s, o)
}

// NewSubscriber creates a subscriber port on the service.
func NewSubscriber[T any](s libsvc.Service, o SubscriberOptions) (Subscriber[T], liberr.Error) {
	return newSubscriber[T](s, o)
}

func verifyPayload[T any](s libsvc.Service) liberr.Error {
	if s.Pattern() != libsvc.PatternPublishSubscribe {
		return ErrorWrongPattern.Error(nil)
	}

	// The logical name was already validated at service open; the port
	// only guards the memory layout of T against the frozen identity.
	want := s.Static().Payload
	got := libid.DetailOf[T]()

	if want.Size != got.Size || want.Alignment != got.Alignment {
		return ErrorPayloadMismatch.ErrorMessage(
			"service payload " + want.String() + " incompatible with " + got.String())
	}

	return nil
}
