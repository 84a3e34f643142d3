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
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	liblog "github.com/sabouaram/zeroipc/logger"
	libsvc "github.com/sabouaram/zeroipc/service"
)

type nde struct {
	m    sync.Mutex
	id   libid.NodeId
	name string
	cfg  libcfg.Config
	log  liblog.Logger
	mon  *monitor

	portCtr atomic.Uint64
	closers []io.Closer
	closed  bool
}

func newNode(cfg libcfg.Config, name string) (Node, liberr.Error) {
	id := libid.NewNodeId()
	log := liblog.New("node/" + id.String())

	mon, err := monitorCreate(cfg, id, name)
	if err != nil {
		return nil, err
	}

	n := &nde{
		id:   id,
		name: name,
		cfg:  cfg,
		log:  log,
		mon:  mon,
	}

	log.Debug("node created: pid=%d", id.Pid)

	return n, nil
}

func (n *nde) Id() libid.NodeId {
	return n.id
}

func (n *nde) Name() string {
	return n.name
}

func (n *nde) NodeId() libid.NodeId {
	return n.id
}

func (n *nde) Config() libcfg.Config {
	return n.cfg
}

func (n *nde) Logger() liblog.Logger {
	return n.log
}

func (n *nde) Log() liblog.Logger {
	return n.log
}

func (n *nde) CreationTime() time.Time {
	return time.Unix(0, n.id.Timestamp)
}

func (n *nde) NextPortCounter() uint64 {
	return n.portCtr.Add(1)
}

func (n *nde) RegisterCloser(c io.Closer) func() {
	n.m.Lock()
	defer n.m.Unlock()

	n.closers = append(n.closers, c)

	return func() {
		n.m.Lock()
		defer n.m.Unlock()

		for i, v := range n.closers {
			if v == c {
				n.closers = append(n.closers[:i], n.closers[i+1:]...)
				return
			}
		}
	}
}

func (n *nde) TagService(sid string) liberr.Error {
	f, e := os.OpenFile(n.cfg.ServiceTagPath(n.id.String(), sid),
		os.O_CREATE|os.O_WRONLY, 0o640)

	if e != nil {
		if os.IsPermission(e) {
			return ErrorPermissions.Error(e)
		}
		return ErrorInternal.Error(e)
	}

	return ErrorInternal.IfError(f.Close())
}

func (n *nde) UntagService(sid string) {
	_ = os.Remove(n.cfg.ServiceTagPath(n.id.String(), sid))
}

func (n *nde) ServiceBuilder(name string) *libsvc.Selector {
	return libsvc.New(n, name)
}

// Close drops the node: ports and services first (children before the
// parent), then the monitor artifacts.
func (n *nde) Close() error {
	n.m.Lock()

	if n.closed {
		n.m.Unlock()
		return nil
	}

	n.closed = true
	closers := n.closers
	n.closers = nil
	n.m.Unlock()

	// Newest first: ports registered after their service close before it.
	for i := len(closers) - 1; i >= 0; i-- {
		if e := closers[i].Close(); e != nil {
			n.log.Warning("closing owned resource failed: %s", e.Error())
		}
	}

	e := n.mon.close()
	_ = os.Remove(n.cfg.NodeEntryDir(n.id.String()))

	n.log.Debug("node closed")

	return e
}
