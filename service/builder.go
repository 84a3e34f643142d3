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


package service

import (
	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libatt "github.com/sabouaram/zeroipc/service/attribute"
	libshm "github.com/sabouaram/zeroipc/shm"
	libvrs "github.com/sabouaram/zeroipc/version"
)

// PubSubBuilder configures and finalizes a publish-subscribe service.
// MaxPublishers, MaxSubscribers and MaxNodes double as open-time
// requirements: a value set through them must be supported by an
// existing service for Open to succeed. The other capacity setters only
// shape a service the builder creates and are not checked at open.
type PubSubBuilder struct {
	b    Binding
	name string

	payload libid.TypeDetail
	userHdr libid.TypeDetail

	c        PubSubConfig
	setPub   bool
	setSub   bool
	setNodes bool

	spec *libatt.Specifier
	verf *libatt.Verifier
}

func newPubSubBuilder(b Binding, name string, payload libid.TypeDetail) *PubSubBuilder {
	d := b.Config().Defaults().PubSub

	return &PubSubBuilder{
		b:       b,
		name:    name,
		payload: payload,
		c: PubSubConfig{
			MaxNodes:                     d.MaxNodes,
			MaxPublishers:                d.MaxPublishers,
			MaxSubscribers:               d.MaxSubscribers,
			HistorySize:                  d.HistorySize,
			SubscriberMaxBufferSize:      d.SubscriberMaxBufferSize,
			SubscriberMaxBorrowedSamples: d.SubscriberMaxBorrowedSamples,
			MaxLoanedSamples:             d.MaxLoanedSamples,
			EnableSafeOverflow:           d.EnableSafeOverflow,
			Strategy:                     uint8(libshm.StrategyStatic),
			MaxSliceLen:                  1,
		},
	}
}

// UserHeader declares a user header type carried next to every payload.
func (b *PubSubBuilder) UserHeader(t libid.TypeDetail) *PubSubBuilder {
	b.userHdr = t
	return b
}

// MaxNodes bounds the nodes attachable to the service. Zero is raised
// to one.
func (b *PubSubBuilder) MaxNodes(n uint32) *PubSubBuilder {
	b.c.MaxNodes = oneMin(n)
	b.setNodes = true
	return b
}

// MaxPublishers bounds the publisher ports. Zero is raised to one.
func (b *PubSubBuilder) MaxPublishers(n uint32) *PubSubBuilder {
	b.c.MaxPublishers = oneMin(n)
	b.setPub = true
	return b
}

// MaxSubscribers bounds the subscriber ports. Zero is raised to one.
func (b *PubSubBuilder) MaxSubscribers(n uint32) *PubSubBuilder {
	b.c.MaxSubscribers = oneMin(n)
	b.setSub = true
	return b
}

// HistorySize configures how many sent samples replay to late
// subscribers.
func (b *PubSubBuilder) HistorySize(n uint32) *PubSubBuilder {
	b.c.HistorySize = n
	return b
}

// SubscriberMaxBufferSize bounds each subscriber's receive buffer.
func (b *PubSubBuilder) SubscriberMaxBufferSize(n uint32) *PubSubBuilder {
	b.c.SubscriberMaxBufferSize = oneMin(n)
	return b
}

// SubscriberMaxBorrowedSamples bounds the samples a subscriber may hold
// at once.
func (b *PubSubBuilder) SubscriberMaxBorrowedSamples(n uint32) *PubSubBuilder {
	b.c.SubscriberMaxBorrowedSamples = oneMin(n)
	return b
}

// MaxLoanedSamples bounds the samples a publisher may have loaned at
// once.
func (b *PubSubBuilder) MaxLoanedSamples(n uint32) *PubSubBuilder {
	b.c.MaxLoanedSamples = oneMin(n)
	return b
}

// EnableSafeOverflow selects overwrite-oldest delivery on full
// subscriber buffers.
func (b *PubSubBuilder) EnableSafeOverflow(on bool) *PubSubBuilder {
	b.c.EnableSafeOverflow = on
	return b
}

// AllocationStrategy selects how slice payload segments grow.
func (b *PubSubBuilder) AllocationStrategy(s libshm.Strategy) *PubSubBuilder {
	b.c.Strategy = uint8(s)
	return b
}

// MaxSliceLen caps the element count of slice payload loans (before
// growth, when the strategy allows it).
func (b *PubSubBuilder) MaxSliceLen(n uint64) *PubSubBuilder {
	if n == 0 {
		n = 1
	}
	b.c.MaxSliceLen = n
	return b
}

// Events configures the optional companion event ids of the service.
func (b *PubSubBuilder) Events(fct func(*PubSubConfig)) *PubSubBuilder {
	fct(&b.c)
	return b
}

// Attributes defines the attribute set frozen at creation.
func (b *PubSubBuilder) Attributes(sp *libatt.Specifier) *PubSubBuilder {
	b.spec = sp
	return b
}

// Requirements states the attribute requirements checked at open.
func (b *PubSubBuilder) Requirements(v *libatt.Verifier) *PubSubBuilder {
	b.verf = v
	return b
}

func (b *PubSubBuilder) static() *StaticConfig {
	st := &StaticConfig{
		Version:    libvrs.Current(),
		Name:       b.name,
		Pattern:    PatternPublishSubscribe,
		Payload:    b.payload,
		UserHeader: b.userHdr,
		PubSub:     &b.c,
	}

	if b.spec != nil {
		st.Attributes = b.spec.Set()
	}

	return st
}

func (b *PubSubBuilder) request() *openReq {
	r := &openReq{
		pattern:  PatternPublishSubscribe,
		payload:  b.payload,
		userHdr:  b.userHdr,
		verifier: b.verf,
	}

	if b.setPub {
		r.minA = b.c.MaxPublishers
	}
	if b.setSub {
		r.minB = b.c.MaxSubscribers
	}
	if b.setNodes {
		r.minNodes = b.c.MaxNodes
	}

	return r
}

// Create creates the service, failing when it already exists.
func (b *PubSubBuilder) Create() (Service, liberr.Error) {
	return createService(b.b, b.name, b.static())
}

// Open opens the existing service, validating compatibility.
func (b *PubSubBuilder) Open() (Service, liberr.Error) {
	return openService(b.b, b.name, b.request())
}

// OpenOrCreate opens the service, creating it when absent, with a
// bounded retry on creation races.
func (b *PubSubBuilder) OpenOrCreate() (Service, liberr.Error) {
	return openOrCreateService(b.b, b.name, b.static(), b.request())
}

// EventBuilder configures and finalizes an event service.
type EventBuilder struct {
	b    Binding
	name string

	c        EventConfig
	setNot   bool
	setLis   bool
	setNodes bool

	spec *libatt.Specifier
	verf *libatt.Verifier
}

func newEventBuilder(b Binding, name string) *EventBuilder {
	d := b.Config().Defaults().Event

	return &EventBuilder{
		b:    b,
		name: name,
		c: EventConfig{
			MaxNodes:     d.MaxNodes,
			MaxNotifiers: d.MaxNotifiers,
			MaxListeners: d.MaxListeners,
			EventIdMax:   d.EventIdMax,
			Deadline:     d.Deadline,
		},
	}
}

// MaxNodes bounds the nodes attachable to the service.
func (b *EventBuilder) MaxNodes(n uint32) *EventBuilder {
	b.c.MaxNodes = oneMin(n)
	b.setNodes = true
	return b
}

// MaxNotifiers bounds the notifier ports.
func (b *EventBuilder) MaxNotifiers(n uint32) *EventBuilder {
	b.c.MaxNotifiers = oneMin(n)
	b.setNot = true
	return b
}

// MaxListeners bounds the listener ports.
func (b *EventBuilder) MaxListeners(n uint32) *EventBuilder {
	b.c.MaxListeners = oneMin(n)
	b.setLis = true
	return b
}

// EventIdMax caps the event id value deliverable on the service.
func (b *EventBuilder) EventIdMax(n uint32) *EventBuilder {
	if n == 0 {
		n = 1
	}
	b.c.EventIdMax = n
	return b
}

// Deadline configures the maximum interval between notifications before
// a miss is reported.
func (b *EventBuilder) Deadline(d libdur.Duration) *EventBuilder {
	b.c.Deadline = d
	return b
}

// NotifierCreatedEvent emits the given id whenever a notifier is
// created on the service.
func (b *EventBuilder) NotifierCreatedEvent(id uint64) *EventBuilder {
	b.c.NotifierCreatedEvent = SomeId(id)
	return b
}

// NotifierDroppedEvent emits the given id whenever a notifier is
// gracefully dropped.
func (b *EventBuilder) NotifierDroppedEvent(id uint64) *EventBuilder {
	b.c.NotifierDroppedEvent = SomeId(id)
	return b
}

// NotifierDeadEvent emits the given id when a dead node holding a
// notifier is reclaimed.
func (b *EventBuilder) NotifierDeadEvent(id uint64) *EventBuilder {
	b.c.NotifierDeadEvent = SomeId(id)
	return b
}

// Attributes defines the attribute set frozen at creation.
func (b *EventBuilder) Attributes(sp *libatt.Specifier) *EventBuilder {
	b.spec = sp
	return b
}

// Requirements states the attribute requirements checked at open.
func (b *EventBuilder) Requirements(v *libatt.Verifier) *EventBuilder {
	b.verf = v
	return b
}

func (b *EventBuilder) static() *StaticConfig {
	st := &StaticConfig{
		Version: libvrs.Current(),
		Name:    b.name,
		Pattern: PatternEvent,
		Event:   &b.c,
	}

	if b.spec != nil {
		st.Attributes = b.spec.Set()
	}

	return st
}

func (b *EventBuilder) request() *openReq {
	r := &openReq{
		pattern:  PatternEvent,
		verifier: b.verf,
	}

	if b.setNot {
		r.minA = b.c.MaxNotifiers
	}
	if b.setLis {
		r.minB = b.c.MaxListeners
	}
	if b.setNodes {
		r.minNodes = b.c.MaxNodes
	}

	return r
}

// Create creates the service, failing when it already exists.
func (b *EventBuilder) Create() (Service, liberr.Error) {
	return createService(b.b, b.name, b.static())
}

// Open opens the existing service, validating compatibility.
func (b *EventBuilder) Open() (Service, liberr.Error) {
	return openService(b.b, b.name, b.request())
}

// OpenOrCreate opens the service, creating it when absent.
func (b *EventBuilder) OpenOrCreate() (Service, liberr.Error) {
	return openOrCreateService(b.b, b.name, b.static(), b.request())
}

// ReqResBuilder configures and finalizes a request-response service.
type ReqResBuilder struct {
	b    Binding
	name string

	request     libid.TypeDetail
	requestHdr  libid.TypeDetail
	response    libid.TypeDetail
	responseHdr libid.TypeDetail

	c        ReqResConfig
	setCli   bool
	setSrv   bool
	setNodes bool

	spec *libatt.Specifier
	verf *libatt.Verifier
}

func newReqResBuilder(b Binding, name string, request, response libid.TypeDetail) *ReqResBuilder {
	d := b.Config().Defaults().ReqRes

	return &ReqResBuilder{
		b:        b,
		name:     name,
		request:  request,
		response: response,
		c: ReqResConfig{
			MaxNodes:                   d.MaxNodes,
			MaxClients:                 d.MaxClients,
			MaxServers:                 d.MaxServers,
			MaxActiveRequestsPerClient: d.MaxActiveRequestsPerClient,
			MaxResponseBufferSize:      d.MaxResponseBufferSize,
			MaxLoanedRequests:          d.MaxLoanedRequests,
			EnableSafeOverflowRequests: d.EnableSafeOverflowRequests,
			EnableSafeOverflowResponse: d.EnableSafeOverflowResponse,
			EnableFireAndForget:        d.EnableFireAndForget,
		},
	}
}

// RequestHeader declares a user header type on requests.
func (b *ReqResBuilder) RequestHeader(t libid.TypeDetail) *ReqResBuilder {
	b.requestHdr = t
	return b
}

// ResponseHeader declares a user header type on responses.
func (b *ReqResBuilder) ResponseHeader(t libid.TypeDetail) *ReqResBuilder {
	b.responseHdr = t
	return b
}

// MaxNodes bounds the nodes attachable to the service.
func (b *ReqResBuilder) MaxNodes(n uint32) *ReqResBuilder {
	b.c.MaxNodes = oneMin(n)
	b.setNodes = true
	return b
}

// MaxClients bounds the client ports.
func (b *ReqResBuilder) MaxClients(n uint32) *ReqResBuilder {
	b.c.MaxClients = oneMin(n)
	b.setCli = true
	return b
}

// MaxServers bounds the server ports.
func (b *ReqResBuilder) MaxServers(n uint32) *ReqResBuilder {
	b.c.MaxServers = oneMin(n)
	b.setSrv = true
	return b
}

// MaxActiveRequestsPerClient bounds the requests one client may have in
// flight.
func (b *ReqResBuilder) MaxActiveRequestsPerClient(n uint32) *ReqResBuilder {
	b.c.MaxActiveRequestsPerClient = oneMin(n)
	return b
}

// MaxResponseBufferSize bounds each pending response's buffered stream.
func (b *ReqResBuilder) MaxResponseBufferSize(n uint32) *ReqResBuilder {
	b.c.MaxResponseBufferSize = oneMin(n)
	return b
}

// MaxLoanedRequests bounds the requests a client may have loaned.
func (b *ReqResBuilder) MaxLoanedRequests(n uint32) *ReqResBuilder {
	b.c.MaxLoanedRequests = oneMin(n)
	return b
}

// EnableSafeOverflowForRequests selects overwrite-oldest on full
// request queues.
func (b *ReqResBuilder) EnableSafeOverflowForRequests(on bool) *ReqResBuilder {
	b.c.EnableSafeOverflowRequests = on
	return b
}

// EnableSafeOverflowForResponses selects overwrite-oldest on full
// response streams.
func (b *ReqResBuilder) EnableSafeOverflowForResponses(on bool) *ReqResBuilder {
	b.c.EnableSafeOverflowResponse = on
	return b
}

// EnableFireAndForget allows clients to send without keeping a pending
// response.
func (b *ReqResBuilder) EnableFireAndForget(on bool) *ReqResBuilder {
	b.c.EnableFireAndForget = on
	return b
}

// Attributes defines the attribute set frozen at creation.
func (b *ReqResBuilder) Attributes(sp *libatt.Specifier) *ReqResBuilder {
	b.spec = sp
	return b
}

// Requirements states the attribute requirements checked at open.
func (b *ReqResBuilder) Requirements(v *libatt.Verifier) *ReqResBuilder {
	b.verf = v
	return b
}

func (b *ReqResBuilder) static() *StaticConfig {
	st := &StaticConfig{
		Version:        libvrs.Current(),
		Name:           b.name,
		Pattern:        PatternRequestResponse,
		Request:        b.request,
		RequestHeader:  b.requestHdr,
		Response:       b.response,
		ResponseHeader: b.responseHdr,
		ReqRes:         &b.c,
	}

	if b.spec != nil {
		st.Attributes = b.spec.Set()
	}

	return st
}

func (b *ReqResBuilder) openRequirements() *openReq {
	r := &openReq{
		pattern:     PatternRequestResponse,
		request:     b.request,
		requestHdr:  b.requestHdr,
		response:    b.response,
		responseHdr: b.responseHdr,
		verifier:    b.verf,
	}

	if b.setCli {
		r.minA = b.c.MaxClients
	}
	if b.setSrv {
		r.minB = b.c.MaxServers
	}
	if b.setNodes {
		r.minNodes = b.c.MaxNodes
	}

	return r
}

// Create creates the service, failing when it already exists.
func (b *ReqResBuilder) Create() (Service, liberr.Error) {
	return createService(b.b, b.name, b.static())
}

// Open opens the existing service, validating compatibility.
func (b *ReqResBuilder) Open() (Service, liberr.Error) {
	return openService(b.b, b.name, b.openRequirements())
}

// OpenOrCreate opens the service, creating it when absent.
func (b *ReqResBuilder) OpenOrCreate() (Service, liberr.Error) {
	return openOrCreateService(b.b, b.name, b.static(), b.openRequirements())
}

func oneMin(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return n
}
