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


// Package ident mints the 128-bit identifiers used across the system:
// node ids, unique port ids and deterministic service ids, plus the
// runtime type identity compared when opening a service.
//
// Node and port ids are unique per machine lifetime: they embed the
// owning process id, the node creation timestamp and a monotonic
// counter, so an id is never reused after its owner is gone. Service
// ids are deterministic fingerprints: two processes computing the id of
// the same (domain, name, pattern) always agree.
package ident

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Id is a 128-bit identifier.
type Id [16]byte

// NodeId identifies one node (participant) on the machine.
type NodeId struct {
	Pid       uint32
	Timestamp int64 // unix nanoseconds at node creation
	Counter   uint32
}

// PortId is the unique identifier of one port.
type PortId = Id

// ServiceId is the deterministic fingerprint of one service.
type ServiceId = Id

// nodeCounter backs the process-local monotonic component of NodeId.
var nodeCounter atomic.Uint32

// NewNodeId mints a node id for the calling process.
func NewNodeId() NodeId {
	return NodeId{
		Pid:       uint32(os.Getpid()),
		Timestamp: time.Now().UnixNano(),
		Counter:   nodeCounter.Add(1),
	}
}

// Encode returns the node id as a 16-byte value.
func (n NodeId) Encode() Id {
	var i Id

	binary.LittleEndian.PutUint32(i[0:4], n.Pid)
	binary.LittleEndian.PutUint64(i[4:12], uint64(n.Timestamp))
	binary.LittleEndian.PutUint32(i[12:16], n.Counter)

	return i
}

// DecodeNodeId rebuilds a NodeId from its 16-byte form.
func DecodeNodeId(i Id) NodeId {
	return NodeId{
		Pid:       binary.LittleEndian.Uint32(i[0:4]),
		Timestamp: int64(binary.LittleEndian.Uint64(i[4:12])),
		Counter:   binary.LittleEndian.Uint32(i[12:16]),
	}
}

// String returns the hex form of the encoded node id.
func (n NodeId) String() string {
	return n.Encode().String()
}

// Less orders node ids by (timestamp, counter).
func (n NodeId) Less(o NodeId) bool {
	if n.Timestamp != o.Timestamp {
		return n.Timestamp < o.Timestamp
	}
	return n.Counter < o.Counter
}

// MintPortId derives the unique port id number c for the given node.
// A port calls this exactly once; the result is never minted again for
// another port of the same node.
func MintPortId(n NodeId, c uint64) PortId {
	var buf [24]byte

	binary.LittleEndian.PutUint32(buf[0:4], n.Pid)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(n.Timestamp))
	binary.LittleEndian.PutUint32(buf[12:16], n.Counter)
	binary.LittleEndian.PutUint64(buf[16:24], c)

	return fingerprint(buf[:])
}

// NewServiceId computes the deterministic fingerprint of a service from
// its domain, fully qualified name and messaging pattern. Payload and
// header identities are deliberately not part of the fingerprint: an
// open with a mismatched type must still find the service so it can be
// rejected with a type incompatibility instead of a missing service.
func NewServiceId(domain, name, pattern string) ServiceId {
	var b bytes.Buffer

	b.WriteString(domain)
	b.WriteByte(0)
	b.WriteString(name)
	b.WriteByte(0)
	b.WriteString(pattern)

	return fingerprint(b.Bytes())
}

func fingerprint(p []byte) Id {
	var i Id

	h := blake2b.Sum256(p)
	copy(i[:], h[:16])

	return i
}

// String returns the id in lowercase hex.
func (i Id) String() string {
	return hex.EncodeToString(i[:])
}

// IsZero reports whether the id is all zeroes.
func (i Id) IsZero() bool {
	return i == Id{}
}

// ParseId parses a 32-character hex string into an Id.
func ParseId(s string) (Id, bool) {
	var i Id

	if len(s) != 32 {
		return i, false
	}

	p, e := hex.DecodeString(s)
	if e != nil {
		return i, false
	}

	copy(i[:], p)
	return i, true
}
