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


package node

import (
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libvrs "github.com/sabouaram/zeroipc/version"
)

// monitor is the per-node liveness artifact: a file holding an
// exclusive advisory lock for the node's lifetime, plus the published
// details file.
type monitor struct {
	fd   int
	path string
	info string
}

func monitorCreate(cfg libcfg.Config, id libid.NodeId, name string) (*monitor, liberr.Error) {
	hex := id.String()

	if e := os.MkdirAll(cfg.NodeEntryDir(hex), 0o750); e != nil {
		if os.IsPermission(e) {
			return nil, ErrorPermissions.Error(e)
		}
		return nil, ErrorInternal.Error(e)
	}

	path := cfg.MonitorPath(hex)

	fd, e := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0o640)
	if e != nil {
		return nil, ErrorInternal.Error(e)
	}

	// The lock drops automatically with the process, crash included.
	if e = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); e != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(e)
	}

	det := Details{
		Name:      name,
		Pid:       id.Pid,
		Timestamp: id.Timestamp,
		Version:   libvrs.Current(),
	}

	p, ce := cbor.Marshal(det)
	if ce != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(ce)
	}

	if _, e = unix.Write(fd, p); e != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(e)
	}

	info := cfg.NodeInfoPath(hex)

	if ce = os.WriteFile(info, p, 0o640); ce != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(ce)
	}

	return &monitor{fd: fd, path: path, info: info}, nil
}

func (m *monitor) close() error {
	if m.fd < 0 {
		return nil
	}

	_ = unix.Flock(m.fd, unix.LOCK_UN)
	e := unix.Close(m.fd)
	m.fd = -1

	_ = os.Remove(m.path)
	_ = os.Remove(m.info)

	return e
}

// probe classifies the node behind the given hex id.
func probe(cfg libcfg.Config, hex string) State {
	det := readDetails(cfg.NodeInfoPath(hex))

	fd, e := unix.Open(cfg.MonitorPath(hex), unix.O_RDONLY|unix.O_CLOEXEC, 0)

	if e != nil {
		if e == unix.EACCES || e == unix.EPERM {
			return State{kind: StateInaccessible, id: hex}
		}
		if e == unix.ENOENT {
			// The directory exists without its monitor: either a node
			// mid-creation or a torn removal.
			return State{kind: StateUndefined, id: hex}
		}
		return State{kind: StateUndefined, id: hex}
	}

	defer func() {
		_ = unix.Close(fd)
	}()

	if e = unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); e == unix.EWOULDBLOCK {
		return State{kind: StateAlive, id: hex, details: det}
	} else if e != nil {
		return State{kind: StateUndefined, id: hex}
	}

	_ = unix.Flock(fd, unix.LOCK_UN)

	if det == nil {
		return State{kind: StateUndefined, id: hex}
	}

	// The free lock alone only proves the lock holder is gone; the
	// recorded process must be gone too before the node counts as dead.
	// A pid that still runs while its own monitor lock is free is a
	// torn artifact: reclaiming it could pull resources out from under
	// a live process.
	if alive, _ := process.PidExists(int32(det.Pid)); alive {
		if id, valid := libid.ParseId(hex); valid &&
			libid.DecodeNodeId(id).Pid == det.Pid {
			return State{kind: StateUndefined, id: hex, details: det}
		}
	}

	return State{kind: StateDead, id: hex, details: det}
}

func readDetails(path string) *Details {
	p, e := os.ReadFile(path)
	if e != nil {
		return nil
	}

	var d Details
	if cbor.Unmarshal(p, &d) != nil {
		return nil
	}

	return &d
}

func listNodes(cfg libcfg.Config, fct func(State) bool) liberr.Error {
	entries, e := os.ReadDir(cfg.NodeDir())

	if e != nil {
		if os.IsNotExist(e) {
			return nil
		}
		if os.IsPermission(e) {
			return ErrorPermissions.Error(e)
		}
		return ErrorInternal.Error(e)
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		if !fct(probe(cfg, ent.Name())) {
			return nil
		}
	}

	return nil
}
