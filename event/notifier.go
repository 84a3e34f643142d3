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


package event

import (
	"sync"
	"time"

	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libque "github.com/sabouaram/zeroipc/queue"
	libsvc "github.com/sabouaram/zeroipc/service"
)

type notConn struct {
	lis libid.PortId
	sig *libque.Signal
}

type ntf struct {
	m   sync.Mutex
	svc libsvc.Service
	id  libid.PortId

	epoch      uint64
	conns      []notConn
	lastNotify time.Time

	unreg  func()
	closed bool
}

func newNotifier(s libsvc.Service) (Notifier, liberr.Error) {
	if s.Pattern() != libsvc.PatternEvent {
		return nil, ErrorWrongPattern.Error(nil)
	}

	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	if _, err := s.Dynamic().AddPort(libsvc.KindNotifier, pid, nid.Encode(), 0); err != nil {
		if err.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(err)
		}
		return nil, ErrorInternal.Error(err)
	}

	n := &ntf{
		svc:        s,
		id:         pid,
		lastNotify: time.Now(),
	}

	n.unreg = s.Binding().RegisterCloser(n)

	if ev := s.Static().Event.NotifierCreatedEvent; ev.Set {
		_, _ = n.deliver(EventId(ev.Id))
	}

	return n, nil
}

func (n *ntf) Id() libid.PortId {
	return n.id
}

// refreshConnections is called under the port lock.
func (n *ntf) refreshConnections() {
	dyn := n.svc.Dynamic()

	epoch := dyn.Epoch()
	if epoch == n.epoch && n.epoch != 0 {
		return
	}

	cfg := n.svc.Config()
	sid := n.svc.Id().String()

	live := map[libid.PortId]bool{}

	dyn.Ports(libsvc.KindListener, func(pid, _ libid.Id, _ uint64) bool {
		live[pid] = true
		return true
	})

	kept := n.conns[:0]

	for _, c := range n.conns {
		if live[c.lis] {
			kept = append(kept, c)
			delete(live, c.lis)
			continue
		}

		_ = c.sig.Close()
	}

	n.conns = kept

	for lis := range live {
		sig, err := libque.OpenSignal(cfg.EventConnPath(sid, lis.String()))
		if err != nil {
			continue // listener mid-creation or mid-teardown
		}

		n.conns = append(n.conns, notConn{lis: lis, sig: sig})
	}

	n.epoch = epoch
}

func (n *ntf) Notify() (uint64, liberr.Error) {
	return n.NotifyWithCustomEventId(DefaultEventId)
}

func (n *ntf) NotifyWithCustomEventId(id EventId) (uint64, liberr.Error) {
	n.m.Lock()

	if n.closed {
		n.m.Unlock()
		return 0, ErrorPortClosed.Error(nil)
	}

	ec := n.svc.Static().Event

	if uint64(id) > uint64(ec.EventIdMax) {
		n.m.Unlock()
		return 0, ErrorEventIdTooLarge.Error(nil)
	}

	var missed bool

	if !ec.Deadline.IsZero() {
		missed = time.Since(n.lastNotify) > ec.Deadline.Time()
	}

	n.lastNotify = time.Now()
	n.m.Unlock()

	reached, err := n.deliver(id)

	if err == nil && missed {
		// The notification went out; the caller still learns the
		// deadline was violated.
		err = ErrorMissedDeadline.Error(nil)
	}

	return reached, err
}

func (n *ntf) deliver(id EventId) (uint64, liberr.Error) {
	n.m.Lock()
	defer n.m.Unlock()

	n.refreshConnections()

	var reached uint64

	for _, c := range n.conns {
		if c.sig.Notify(uint64(id)) == nil {
			reached++
		}
	}

	return reached, nil
}

func (n *ntf) Close() error {
	n.m.Lock()

	if n.closed {
		n.m.Unlock()
		return nil
	}

	n.m.Unlock()

	if ev := n.svc.Static().Event.NotifierDroppedEvent; ev.Set {
		_, _ = n.deliver(EventId(ev.Id))
	}

	n.m.Lock()
	n.closed = true

	for _, c := range n.conns {
		_ = c.sig.Close()
	}

	n.conns = nil
	n.m.Unlock()

	if n.unreg != nil {
		n.unreg()
	}

	n.svc.Dynamic().RemovePort(libsvc.KindNotifier, n.id)

	return nil
}
