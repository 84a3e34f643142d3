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


package node_test

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcfg "github.com/sabouaram/zeroipc/config"
	libid "github.com/sabouaram/zeroipc/ident"
	libnod "github.com/sabouaram/zeroipc/node"
	libvrs "github.com/sabouaram/zeroipc/version"
)

// ghostPid is above the kernel's pid_max (4194304), so no process with
// this id can exist and the liveness probe classifies it as gone.
const ghostPid = uint32(1) << 30

var ghostCounter atomic.Uint32

// fabricateNode writes the artifacts a node leaves behind when it
// stops without cleanup: a monitor file nobody locks and the published
// details, both recording the given process id.
func fabricateNode(cfg libcfg.Config, name string, pid uint32) libid.NodeId {
	id := libid.NodeId{
		Pid:       pid,
		Timestamp: time.Now().UnixNano(),
		Counter:   ghostCounter.Add(1),
	}
	hex := id.String()

	Expect(os.MkdirAll(cfg.NodeEntryDir(hex), 0o750)).To(Succeed())

	det := libnod.Details{
		Name:      name,
		Pid:       id.Pid,
		Timestamp: id.Timestamp,
		Version:   libvrs.Current(),
	}

	p, e := cbor.Marshal(det)
	Expect(e).ToNot(HaveOccurred())

	Expect(os.WriteFile(cfg.MonitorPath(hex), p, 0o640)).To(Succeed())
	Expect(os.WriteFile(cfg.NodeInfoPath(hex), p, 0o640)).To(Succeed())

	return id
}

// fabricateDeadNode leaves the traces of a node whose process is gone.
func fabricateDeadNode(cfg libcfg.Config, name string) libid.NodeId {
	return fabricateNode(cfg, name, ghostPid)
}

var _ = Describe("Node", func() {
	var (
		dir string
		cfg libcfg.Config
	)

	BeforeEach(func() {
		var e error

		dir, e = os.MkdirTemp("", "node-*")
		Expect(e).ToNot(HaveOccurred())

		var err error

		cfg, err = libcfg.New(libcfg.Options{Domain: "unit", RootDir: dir, ShmDir: dir})
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("New", func() {
		It("should create the monitor artifacts", func() {
			n, err := libnod.New(cfg, "alpha")

			Expect(err).To(BeNil())

			hex := n.Id().String()

			_, e := os.Stat(cfg.MonitorPath(hex))
			Expect(e).ToNot(HaveOccurred())

			_, e = os.Stat(cfg.NodeInfoPath(hex))
			Expect(e).ToNot(HaveOccurred())

			Expect(n.Close()).To(Succeed())
		})

		It("should remove its artifacts on close", func() {
			n, err := libnod.New(cfg, "alpha")
			Expect(err).To(BeNil())

			hex := n.Id().String()

			Expect(n.Close()).To(Succeed())

			_, e := os.Stat(cfg.NodeEntryDir(hex))
			Expect(os.IsNotExist(e)).To(BeTrue())
		})

		It("should mint distinct ids per node", func() {
			a, err := libnod.New(cfg, "a")
			Expect(err).To(BeNil())

			b, err := libnod.New(cfg, "b")
			Expect(err).To(BeNil())

			Expect(a.Id()).ToNot(Equal(b.Id()))

			Expect(a.Close()).To(Succeed())
			Expect(b.Close()).To(Succeed())
		})
	})

	Describe("List", func() {
		It("should classify a live node as alive with details", func() {
			n, err := libnod.New(cfg, "alpha")
			Expect(err).To(BeNil())

			defer func() {
				Expect(n.Close()).To(Succeed())
			}()

			var states []libnod.State

			Expect(libnod.List(cfg, func(s libnod.State) bool {
				states = append(states, s)
				return true
			})).To(BeNil())

			Expect(states).To(HaveLen(1))
			Expect(states[0].Kind()).To(Equal(libnod.StateAlive))
			Expect(states[0].Details()).ToNot(BeNil())
			Expect(states[0].Details().Name).To(Equal("alpha"))
		})

		It("should classify an unlocked monitor as dead", func() {
			fabricateDeadNode(cfg, "ghost")

			var dead int

			Expect(libnod.List(cfg, func(s libnod.State) bool {
				if s.Kind() == libnod.StateDead {
					dead++
					Expect(s.Details()).ToNot(BeNil())
					Expect(s.Details().Name).To(Equal("ghost"))
				}
				return true
			})).To(BeNil())

			Expect(dead).To(Equal(1))
		})

		It("should classify a free lock with a live owner as undefined", func() {
			// The recorded process still runs: the node leaked its
			// monitor without dying, so it must not be reclaimed.
			fabricateNode(cfg, "leaky", uint32(os.Getpid()))

			var kinds []libnod.StateKind

			Expect(libnod.List(cfg, func(s libnod.State) bool {
				kinds = append(kinds, s.Kind())
				return true
			})).To(BeNil())

			Expect(kinds).To(Equal([]libnod.StateKind{libnod.StateUndefined}))
		})

		It("should classify a torn entry as undefined", func() {
			Expect(os.MkdirAll(cfg.NodeEntryDir("deadbeef"), 0o750)).To(Succeed())

			var kinds []libnod.StateKind

			Expect(libnod.List(cfg, func(s libnod.State) bool {
				kinds = append(kinds, s.Kind())
				return true
			})).To(BeNil())

			Expect(kinds).To(Equal([]libnod.StateKind{libnod.StateUndefined}))
		})

		It("should stop when the callback returns false", func() {
			fabricateDeadNode(cfg, "a")
			fabricateDeadNode(cfg, "b")

			var n int

			Expect(libnod.List(cfg, func(libnod.State) bool {
				n++
				return false
			})).To(BeNil())

			Expect(n).To(Equal(1))
		})
	})

	Describe("Cleanup", func() {
		It("should remove a dead node's directory entry", func() {
			id := fabricateDeadNode(cfg, "ghost")
			hex := id.String()

			Expect(libnod.Cleanup(cfg, hex)).To(BeNil())

			_, e := os.Stat(cfg.NodeEntryDir(hex))
			Expect(os.IsNotExist(e)).To(BeTrue())
		})

		It("should be idempotent", func() {
			id := fabricateDeadNode(cfg, "ghost")
			hex := id.String()

			Expect(libnod.Cleanup(cfg, hex)).To(BeNil())
			Expect(libnod.Cleanup(cfg, hex)).To(BeNil())
		})

		It("should sweep every dead node at once", func() {
			fabricateDeadNode(cfg, "a")
			fabricateDeadNode(cfg, "b")

			n, err := libnod.CleanupDead(cfg)

			Expect(err).To(BeNil())
			Expect(n).To(Equal(2))
		})

		It("should not sweep a torn artifact with a live owner", func() {
			fabricateNode(cfg, "leaky", uint32(os.Getpid()))

			n, err := libnod.CleanupDead(cfg)

			Expect(err).To(BeNil())
			Expect(n).To(Equal(0))
		})

		It("should leave living nodes alone", func() {
			alive, err := libnod.New(cfg, "alive")
			Expect(err).To(BeNil())

			defer func() {
				Expect(alive.Close()).To(Succeed())
			}()

			fabricateDeadNode(cfg, "ghost")

			n, cerr := libnod.CleanupDead(cfg)

			Expect(cerr).To(BeNil())
			Expect(n).To(Equal(1))

			_, e := os.Stat(cfg.NodeEntryDir(alive.Id().String()))
			Expect(e).ToNot(HaveOccurred())
		})
	})
})
