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


package waitset

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/zeroipc/errors"
)

type attachKind uint8

const (
	attachNotification attachKind = iota + 1
	attachDeadline
	attachInterval
	attachRawFd
)

type attachment struct {
	token uint64
	kind  attachKind
	fd    int
	d     time.Duration
	last  time.Time // last event (deadline) or last tick (interval)
}

type wst struct {
	tokens  uint64
	attach  []*attachment
	sigR    int
	sigW    int
	sigCh   chan os.Signal
	closed  bool
}

func newWaitSet(handleSignals bool) (WaitSet, liberr.Error) {
	w := &wst{sigR: -1, sigW: -1}

	if handleSignals {
		// Self-pipe: the signal handler writes a byte, the poll wakes.
		var fds [2]int

		if e := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); e != nil {
			return nil, ErrorInternal.Error(e)
		}

		w.sigR, w.sigW = fds[0], fds[1]
		w.sigCh = make(chan os.Signal, 1)

		signal.Notify(w.sigCh, syscall.SIGINT, syscall.SIGTERM)

		go func(ch <-chan os.Signal, fd int) {
			for range ch {
				_, _ = unix.Write(fd, []byte{0})
			}
		}(w.sigCh, w.sigW)
	}

	return w, nil
}

func (w *wst) newToken() uint64 {
	w.tokens++
	return w.tokens
}

func (w *wst) AttachNotification(s Source) (uint64, liberr.Error) {
	if s == nil || s.Fd() < 0 {
		return 0, ErrorInvalidAttachment.Error(nil)
	}

	a := &attachment{token: w.newToken(), kind: attachNotification, fd: s.Fd()}
	w.attach = append(w.attach, a)

	return a.token, nil
}

func (w *wst) AttachDeadline(s Source, d time.Duration) (uint64, liberr.Error) {
	if s == nil || s.Fd() < 0 || d <= 0 {
		return 0, ErrorInvalidAttachment.Error(nil)
	}

	a := &attachment{
		token: w.newToken(),
		kind:  attachDeadline,
		fd:    s.Fd(),
		d:     d,
		last:  time.Now(),
	}
	w.attach = append(w.attach, a)

	return a.token, nil
}

func (w *wst) AttachInterval(d time.Duration) (uint64, liberr.Error) {
	if d <= 0 {
		return 0, ErrorInvalidAttachment.Error(nil)
	}

	a := &attachment{
		token: w.newToken(),
		kind:  attachInterval,
		fd:    -1,
		d:     d,
		last:  time.Now(),
	}
	w.attach = append(w.attach, a)

	return a.token, nil
}

func (w *wst) AttachFd(fd int) (uint64, liberr.Error) {
	if fd < 0 {
		return 0, ErrorInvalidAttachment.Error(nil)
	}

	a := &attachment{token: w.newToken(), kind: attachRawFd, fd: fd}
	w.attach = append(w.attach, a)

	return a.token, nil
}

func (w *wst) Detach(token uint64) {
	for i, a := range w.attach {
		if a.token == token {
			w.attach = append(w.attach[:i], w.attach[i+1:]...)
			return
		}
	}
}

func (w *wst) Len() int {
	return len(w.attach)
}

// nextTimeout computes the poll timeout from the nearest deadline or
// interval expiry. Returns -1 when only descriptors are attached.
func (w *wst) nextTimeout(now time.Time) int {
	var nearest time.Duration = -1

	for _, a := range w.attach {
		if a.kind != attachDeadline && a.kind != attachInterval {
			continue
		}

		left := a.d - now.Sub(a.last)
		if left < 0 {
			left = 0
		}

		if nearest < 0 || left < nearest {
			nearest = left
		}
	}

	if nearest < 0 {
		return -1
	}

	ms := int(nearest.Milliseconds())
	if ms == 0 && nearest > 0 {
		ms = 1
	}

	return ms
}

// cycle performs one poll and dispatch round.
func (w *wst) cycle(fct func(AttachmentId) Action) (stopped bool, res RunResult, err liberr.Error) {
	if len(w.attach) == 0 {
		return true, RunEmpty, nil
	}

	now := time.Now()

	fds := make([]unix.PollFd, 0, len(w.attach)+1)
	idx := make([]*attachment, 0, len(w.attach))

	for _, a := range w.attach {
		if a.fd >= 0 {
			fds = append(fds, unix.PollFd{Fd: int32(a.fd), Events: unix.POLLIN})
			idx = append(idx, a)
		}
	}

	sigSlot := -1

	if w.sigR >= 0 {
		sigSlot = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(w.sigR), Events: unix.POLLIN})
	}

	_, e := unix.Poll(fds, w.nextTimeout(now))

	if e == unix.EINTR {
		return true, RunInterrupted, nil
	}
	if e != nil {
		return true, 0, ErrorInternal.Error(e)
	}

	if sigSlot >= 0 && fds[sigSlot].Revents&unix.POLLIN != 0 {
		var buf [16]byte
		_, _ = unix.Read(w.sigR, buf[:])
		return true, RunInterrupted, nil
	}

	now = time.Now()
	stop := false

	// Readiness first, then elapsed timers: a notification arriving on
	// time must beat its own deadline report.
	for i, a := range idx {
		if fds[i].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
			continue
		}

		if a.kind == attachDeadline {
			a.last = now
		}

		if fct(AttachmentId{token: a.token, kind: HasEvent}) == Stop {
			stop = true
		}
	}

	for _, a := range w.attach {
		switch a.kind {
		case attachDeadline:
			if now.Sub(a.last) > a.d {
				a.last = now

				if fct(AttachmentId{token: a.token, kind: MissedDeadline}) == Stop {
					stop = true
				}
			}

		case attachInterval:
			if now.Sub(a.last) >= a.d {
				a.last = now

				if fct(AttachmentId{token: a.token, kind: Tick}) == Stop {
					stop = true
				}
			}
		}
	}

	if stop {
		return true, RunStopped, nil
	}

	return false, 0, nil
}

func (w *wst) WaitAndProcess(fct func(AttachmentId) Action) (RunResult, liberr.Error) {
	if w.closed {
		return 0, ErrorClosed.Error(nil)
	}

	for {
		stopped, res, err := w.cycle(fct)
		if err != nil {
			return 0, err
		}

		if stopped {
			return res, nil
		}
	}
}

func (w *wst) WaitAndProcessOnce(fct func(AttachmentId) Action) (RunResult, liberr.Error) {
	if w.closed {
		return 0, ErrorClosed.Error(nil)
	}

	stopped, res, err := w.cycle(fct)
	if err != nil {
		return 0, err
	}

	if stopped {
		return res, nil
	}

	return RunStopped, nil
}

func (w *wst) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if w.sigCh != nil {
		signal.Stop(w.sigCh)
		close(w.sigCh)
	}

	if w.sigR >= 0 {
		_ = unix.Close(w.sigR)
		_ = unix.Close(w.sigW)
	}

	w.attach = nil

	return nil
}
