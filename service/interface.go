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


// Package service implements the service directory: the named, typed
// endpoint families that unrelated processes discover, create and open.
//
// A service is persisted as an immutable static configuration file plus
// a shared-memory dynamic registry of its attached nodes and live
// ports. Creation is serialized through an exclusive creator lock file
// so that exactly one racing creator observes success; opening
// validates the messaging pattern, the payload and header type
// identities, the attribute requirements and the requested capacities
// against the frozen configuration.
//
// Services are built through the fluent selector returned by New:
//
//	svc, err := service.New(node, "radar/targets").
//	    PublishSubscribe(ident.DetailOf[Target]()).
//	    MaxPublishers(2).
//	    HistorySize(3).
//	    OpenOrCreate()
package service

import (
	"io"
	"time"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	liblog "github.com/sabouaram/zeroipc/logger"
	libatt "github.com/sabouaram/zeroipc/service/attribute"
)

// Binding is the view of the owning node a service needs. It is
// implemented by the node package; defining it here keeps the package
// graph acyclic while node-level reclamation may walk services.
type Binding interface {
	// NodeId returns the id of the owning node.
	NodeId() libid.NodeId
	// Config returns the immutable configuration bound to the node.
	Config() libcfg.Config
	// Logger returns the node's logger.
	Logger() liblog.Logger
	// CreationTime returns the node creation instant used in port ids.
	CreationTime() time.Time
	// NextPortCounter mints the next port-local monotonic counter.
	NextPortCounter() uint64
	// RegisterCloser enrolls a resource dropped when the node closes,
	// returning the function removing the registration.
	RegisterCloser(c io.Closer) func()
	// TagService marks the node as attached to the service, so that
	// reclamation after a crash finds the services to repair.
	TagService(sid string) liberr.Error
	// UntagService removes the mark.
	UntagService(sid string)
}

// Service is an opened or created service handle.
type Service interface {
	io.Closer

	// Id returns the deterministic service id.
	Id() libid.ServiceId
	// Name returns the fully qualified service name.
	Name() string
	// Pattern returns the messaging pattern.
	Pattern() Pattern
	// Static returns the frozen configuration.
	Static() *StaticConfig
	// Attributes returns the attribute set frozen at creation.
	Attributes() libatt.Set
	// Dynamic returns the shared-memory registry of nodes and ports.
	Dynamic() *Dynamic
	// Binding returns the owning node view.
	Binding() Binding
	// Config returns the node configuration.
	Config() libcfg.Config

	// WasCreated reports whether this handle created the service.
	WasCreated() bool
}

// New returns the pattern selector for the given service name on the
// given node.
func New(b Binding, name string) *Selector {
	return &Selector{b: b, name: name}
}

// Selector picks the messaging pattern and returns the matching
// builder.
type Selector struct {
	b    Binding
	name string
}

// PublishSubscribe selects the publish-subscribe pattern with the given
// payload type identity.
func (s *Selector) PublishSubscribe(payload libid.TypeDetail) *PubSubBuilder {
	return newPubSubBuilder(s.b, s.name, payload)
}

// Event selects the event pattern.
func (s *Selector) Event() *EventBuilder {
	return newEventBuilder(s.b, s.name)
}

// RequestResponse selects the request-response pattern with the given
// request and response payload identities.
func (s *Selector) RequestResponse(request, response libid.TypeDetail) *ReqResBuilder {
	return newReqResBuilder(s.b, s.name, request, response)
}
