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


// Package node implements the participant lifecycle: a node is the
// process-local membership handle owning every port it creates, holding
// a file lock that survives only as long as the process, and monitored
// by every other participant of the domain.
//
// A node's monitor artifact is a flock'd file under the domain's nodes
// directory. Probing another node's lock classifies it as Alive (lock
// held), Dead (lock free, owning process gone), Inaccessible
// (permissions forbid probing) or Undefined (artifact corrupt).
//
// Stale-resource reclamation for dead nodes is idempotent: racing
// survivors serialize on a per-node cleanup token, so cleaning twice
// has exactly the effect of cleaning once.
package node

import (
	"io"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	liblog "github.com/sabouaram/zeroipc/logger"
	libsvc "github.com/sabouaram/zeroipc/service"
	libvrs "github.com/sabouaram/zeroipc/version"
)

// Node is a live participant handle. It implements service.Binding so
// services and ports can be built on it.
type Node interface {
	io.Closer
	libsvc.Binding

	// Id returns the node id.
	Id() libid.NodeId
	// Name returns the optional human-readable node name.
	Name() string

	// ServiceBuilder returns the service selector for the given name.
	ServiceBuilder(name string) *libsvc.Selector

	// Log returns the node logger.
	Log() liblog.Logger
}

// Details is the published metadata of a node, readable by other
// participants when permissions allow.
type Details struct {
	Name      string      `cbor:"1,keyasint" json:"name"`
	Pid       uint32      `cbor:"2,keyasint" json:"pid"`
	Timestamp int64       `cbor:"3,keyasint" json:"timestamp"`
	Version   libvrs.Info `cbor:"4,keyasint" json:"version"`
}

// StateKind discriminates the four node states.
type StateKind uint8

const (
	// StateAlive marks a node whose monitor lock is held.
	StateAlive StateKind = iota + 1
	// StateDead marks a node whose lock is free and process is gone.
	StateDead
	// StateInaccessible marks a node whose artifacts cannot be probed.
	StateInaccessible
	// StateUndefined marks a node with corrupt artifacts.
	StateUndefined
)

// String returns the lowercase state name.
func (k StateKind) String() string {
	switch k {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	case StateInaccessible:
		return "inaccessible"
	case StateUndefined:
		return "undefined"
	}

	return "unknown"
}

// State is the probed state of one node. Callers dispatch on Kind and
// cover all four cases.
type State struct {
	kind    StateKind
	id      string
	details *Details
}

// Kind returns the state discriminator.
func (s State) Kind() StateKind {
	return s.kind
}

// Id returns the hex node id the state refers to.
func (s State) Id() string {
	return s.id
}

// Details returns the published metadata, nil when unavailable. Alive
// and Dead states carry details; Undefined carries them only when the
// artifact was readable but contradictory.
func (s State) Details() *Details {
	return s.details
}

// New creates a node bound to the given configuration. An empty name is
// allowed.
func New(cfg libcfg.Config, name string) (Node, liberr.Error) {
	return newNode(cfg, name)
}

// List enumerates the nodes of the domain and invokes fct with each
// probed state until it returns false.
func List(cfg libcfg.Config, fct func(State) bool) liberr.Error {
	return listNodes(cfg, fct)
}

// Cleanup reclaims every stale resource of one dead node, identified by
// its hex id. Idempotent.
func Cleanup(cfg libcfg.Config, nid string) liberr.Error {
	return cleanupNode(cfg, nid)
}

// CleanupDead probes every node of the domain and reclaims the dead
// ones. Returns the number of nodes cleaned.
func CleanupDead(cfg libcfg.Config) (int, liberr.Error) {
	var (
		cleaned int
		first   liberr.Error
	)

	err := listNodes(cfg, func(st State) bool {
		if st.Kind() != StateDead {
			return true
		}

		if e := cleanupNode(cfg, st.Id()); e != nil {
			if first == nil {
				first = e
			}
			return true
		}

		cleaned++
		return true
	})

	if err != nil {
		return cleaned, err
	}

	return cleaned, first
}
