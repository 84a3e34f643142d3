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
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libatt "github.com/sabouaram/zeroipc/service/attribute"
	libshm "github.com/sabouaram/zeroipc/shm"
	libvrs "github.com/sabouaram/zeroipc/version"
)

// OptionalId is an event id constant that may be left unconfigured.
type OptionalId struct {
	Set bool   `cbor:"1,keyasint" json:"set"`
	Id  uint64 `cbor:"2,keyasint" json:"id"`
}

// SomeId returns a configured OptionalId.
func SomeId(id uint64) OptionalId {
	return OptionalId{Set: true, Id: id}
}

// PubSubConfig is the frozen capacity configuration of a
// publish-subscribe service.
type PubSubConfig struct {
	MaxNodes                     uint32 `cbor:"1,keyasint"`
	MaxPublishers                uint32 `cbor:"2,keyasint"`
	MaxSubscribers               uint32 `cbor:"3,keyasint"`
	HistorySize                  uint32 `cbor:"4,keyasint"`
	SubscriberMaxBufferSize      uint32 `cbor:"5,keyasint"`
	SubscriberMaxBorrowedSamples uint32 `cbor:"6,keyasint"`
	MaxLoanedSamples             uint32 `cbor:"7,keyasint"`
	EnableSafeOverflow           bool   `cbor:"8,keyasint"`

	Strategy    uint8  `cbor:"9,keyasint"`
	MaxSliceLen uint64 `cbor:"10,keyasint"`

	// Optional companion event ids propagated on port lifecycle and on
	// dead-node reclamation, delivered through the event service of the
	// same name.
	PublisherConnected    OptionalId `cbor:"11,keyasint"`
	PublisherDisconnected OptionalId `cbor:"12,keyasint"`
	SubscriberConnected   OptionalId `cbor:"13,keyasint"`
	SubscriberDisconnected OptionalId `cbor:"14,keyasint"`
	ProcessDied           OptionalId `cbor:"15,keyasint"`
}

// EventConfig is the frozen configuration of an event service.
type EventConfig struct {
	MaxNodes     uint32          `cbor:"1,keyasint"`
	MaxNotifiers uint32          `cbor:"2,keyasint"`
	MaxListeners uint32          `cbor:"3,keyasint"`
	EventIdMax   uint32          `cbor:"4,keyasint"`
	Deadline     libdur.Duration `cbor:"5,keyasint"`

	NotifierCreatedEvent OptionalId `cbor:"6,keyasint"`
	NotifierDroppedEvent OptionalId `cbor:"7,keyasint"`
	NotifierDeadEvent    OptionalId `cbor:"8,keyasint"`
}

// ReqResConfig is the frozen configuration of a request-response
// service.
type ReqResConfig struct {
	MaxNodes                   uint32 `cbor:"1,keyasint"`
	MaxClients                 uint32 `cbor:"2,keyasint"`
	MaxServers                 uint32 `cbor:"3,keyasint"`
	MaxActiveRequestsPerClient uint32 `cbor:"4,keyasint"`
	MaxResponseBufferSize      uint32 `cbor:"5,keyasint"`
	MaxLoanedRequests          uint32 `cbor:"6,keyasint"`
	EnableSafeOverflowRequests bool   `cbor:"7,keyasint"`
	EnableSafeOverflowResponse bool   `cbor:"8,keyasint"`
	EnableFireAndForget        bool   `cbor:"9,keyasint"`
}

// StaticConfig is the immutable service metadata frozen at creation and
// persisted under the service directory.
type StaticConfig struct {
	Version libvrs.Info `cbor:"1,keyasint"`
	Name    string      `cbor:"2,keyasint"`
	Pattern Pattern     `cbor:"3,keyasint"`

	Payload    libid.TypeDetail `cbor:"4,keyasint"`
	UserHeader libid.TypeDetail `cbor:"5,keyasint"`

	Request        libid.TypeDetail `cbor:"6,keyasint"`
	RequestHeader  libid.TypeDetail `cbor:"7,keyasint"`
	Response       libid.TypeDetail `cbor:"8,keyasint"`
	ResponseHeader libid.TypeDetail `cbor:"9,keyasint"`

	PubSub *PubSubConfig `cbor:"10,keyasint"`
	Event  *EventConfig  `cbor:"11,keyasint"`
	ReqRes *ReqResConfig `cbor:"12,keyasint"`

	Attributes libatt.Set `cbor:"13,keyasint"`
}

// MaxNodes returns the node capacity of the service.
func (s *StaticConfig) MaxNodes() uint32 {
	switch {
	case s.PubSub != nil:
		return s.PubSub.MaxNodes
	case s.Event != nil:
		return s.Event.MaxNodes
	case s.ReqRes != nil:
		return s.ReqRes.MaxNodes
	}

	return 1
}

// maxPorts returns the capacity of the two dynamic port tables.
func (s *StaticConfig) maxPorts() (a uint32, b uint32) {
	switch {
	case s.PubSub != nil:
		return s.PubSub.MaxPublishers, s.PubSub.MaxSubscribers
	case s.Event != nil:
		return s.Event.MaxNotifiers, s.Event.MaxListeners
	case s.ReqRes != nil:
		return s.ReqRes.MaxClients, s.ReqRes.MaxServers
	}

	return 1, 1
}

// MaxPorts returns the capacity for one port kind.
func (s *StaticConfig) MaxPorts(k PortKind) uint32 {
	a, b := s.maxPorts()

	if k.table() == 0 {
		return a
	}

	return b
}

// AllocationStrategy returns the payload growth strategy.
func (s *StaticConfig) AllocationStrategy() libshm.Strategy {
	if s.PubSub != nil {
		return libshm.Strategy(s.PubSub.Strategy)
	}

	return libshm.StrategyStatic
}

// writeStatic persists the config atomically: full write to a temporary
// file in the same directory, then rename.
func writeStatic(path string, s *StaticConfig) liberr.Error {
	p, e := cbor.Marshal(s)
	if e != nil {
		return ErrorInternal.Error(e)
	}

	tmp := path + ".tmp"

	if e = os.WriteFile(tmp, p, 0o640); e != nil {
		if os.IsPermission(e) {
			return ErrorPermissions.Error(e)
		}
		return ErrorInternal.Error(e)
	}

	if e = os.Rename(tmp, path); e != nil {
		_ = os.Remove(tmp)
		return ErrorInternal.Error(e)
	}

	return nil
}

// readStatic loads and version-checks a persisted config.
func readStatic(path string) (*StaticConfig, liberr.Error) {
	p, e := os.ReadFile(path)

	if e != nil {
		if os.IsNotExist(e) {
			return nil, ErrorDoesNotExist.Error(e)
		}
		if os.IsPermission(e) {
			return nil, ErrorPermissions.Error(e)
		}
		return nil, ErrorInternal.Error(e)
	}

	var s StaticConfig

	if e = cbor.Unmarshal(p, &s); e != nil {
		return nil, ErrorCorrupted.Error(e)
	}

	if !s.Version.IsCompatible() {
		return nil, ErrorVersionMismatch.ErrorMessage(
			"service written by incompatible version " + s.Version.String())
	}

	return &s, nil
}

func staticExists(path string) bool {
	_, e := os.Stat(path)
	return e == nil
}

func ensureDir(path string) liberr.Error {
	if e := os.MkdirAll(filepath.Dir(path), 0o750); e != nil {
		if os.IsPermission(e) {
			return ErrorPermissions.Error(e)
		}
		return ErrorInternal.Error(e)
	}

	return nil
}
