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

type lst struct {
	m   sync.Mutex
	svc libsvc.Service
	id  libid.PortId
	sig *libque.Signal

	pending []EventId

	unreg  func()
	closed bool
}

func newListener(s libsvc.Service) (Listener, liberr.Error) {
	if s.Pattern() != libsvc.PatternEvent {
		return nil, ErrorWrongPattern.Error(nil)
	}

	cfg := s.Config()
	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	sig, err := libque.CreateSignal(cfg.EventConnPath(s.Id().String(), pid.String()))
	if err != nil {
		return nil, ErrorInternal.Error(err)
	}

	if _, aerr := s.Dynamic().AddPort(libsvc.KindListener, pid, nid.Encode(), 0); aerr != nil {
		_ = sig.Close()
		_ = sig.Unlink()

		if aerr.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(aerr)
		}
		return nil, ErrorInternal.Error(aerr)
	}

	l := &lst{svc: s, id: pid, sig: sig}
	l.unreg = s.Binding().RegisterCloser(l)

	return l, nil
}

func (l *lst) Id() libid.PortId {
	return l.id
}

func (l *lst) Fd() int {
	return l.sig.Fd()
}

func (l *lst) Deadline() (time.Duration, bool) {
	d := l.svc.Static().Event.Deadline

	if d.IsZero() {
		return 0, false
	}

	return d.Time(), true
}

func (l *lst) maxId() uint32 {
	return l.svc.Static().Event.EventIdMax
}

// fill drains the signal into the pending list. Called under the lock.
func (l *lst) fill(timeout time.Duration, block bool) liberr.Error {
	var (
		ids []uint64
		err liberr.Error
	)

	switch {
	case block:
		ids, err = l.sig.Wait(0, l.maxId())
	case timeout > 0:
		ids, err = l.sig.Wait(timeout, l.maxId())
	default:
		ids, err = l.sig.TryWait(l.maxId())
	}

	if err != nil {
		if err.IsCode(libque.ErrorSignalInterrupted) {
			return ErrorInterrupted.Error(err)
		}
		return ErrorInternal.Error(err)
	}

	for _, id := range ids {
		l.pending = append(l.pending, EventId(id))
	}

	return nil
}

func (l *lst) waitOne(timeout time.Duration, block bool) (EventId, bool, liberr.Error) {
	l.m.Lock()
	defer l.m.Unlock()

	if l.closed {
		return 0, false, ErrorPortClosed.Error(nil)
	}

	if len(l.pending) == 0 {
		if err := l.fill(timeout, block); err != nil {
			return 0, false, err
		}
	}

	if len(l.pending) == 0 {
		return 0, false, nil
	}

	id := l.pending[0]
	l.pending = l.pending[1:]

	return id, true, nil
}

func (l *lst) TryWaitOne() (EventId, bool, liberr.Error) {
	return l.waitOne(0, false)
}

func (l *lst) TimedWaitOne(timeout time.Duration) (EventId, bool, liberr.Error) {
	return l.waitOne(timeout, false)
}

func (l *lst) BlockingWaitOne() (EventId, bool, liberr.Error) {
	return l.waitOne(0, true)
}

func (l *lst) waitAll(fct func(EventId), timeout time.Duration, block bool) liberr.Error {
	l.m.Lock()
	defer l.m.Unlock()

	if l.closed {
		return ErrorPortClosed.Error(nil)
	}

	if err := l.fill(timeout, block); err != nil {
		return err
	}

	pend := l.pending
	l.pending = nil

	for _, id := range pend {
		fct(id)
	}

	return nil
}

func (l *lst) TryWaitAll(fct func(EventId)) liberr.Error {
	return l.waitAll(fct, 0, false)
}

func (l *lst) TimedWaitAll(fct func(EventId), timeout time.Duration) liberr.Error {
	return l.waitAll(fct, timeout, false)
}

func (l *lst) BlockingWaitAll(fct func(EventId)) liberr.Error {
	return l.waitAll(fct, 0, true)
}

func (l *lst) Close() error {
	l.m.Lock()

	if l.closed {
		l.m.Unlock()
		return nil
	}

	l.closed = true
	l.m.Unlock()

	if l.unreg != nil {
		l.unreg()
	}

	l.svc.Dynamic().RemovePort(libsvc.KindListener, l.id)

	e := l.sig.Close()
	_ = l.sig.Unlink()

	return e
}
