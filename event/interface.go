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


// Package event implements the event messaging pattern: notifiers
// deposit small event ids, listeners wake up and collect them. The
// cross-process wakeup rides on the named-pipe signal primitive; ids
// delivered within one batch keep their order, distinct notifiers are
// unordered relative to each other.
//
// An event service may carry a deadline: the maximum interval between
// two notifications. A notifier exceeding it still delivers, but its
// Notify call reports the miss; wait-sets attached to the listener
// side surface misses out-of-band.
package event

import (
	"io"
	"time"

	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libsvc "github.com/sabouaram/zeroipc/service"
)

// EventId is the value carried by one notification.
type EventId uint64

// DefaultEventId is used by Notify when no custom id is given.
const DefaultEventId EventId = 0

// Notifier is the sending endpoint of an event service.
type Notifier interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// Notify delivers the default event id to every listener. Returns
	// the number of listeners reached. A configured deadline that was
	// exceeded since the previous notification yields ErrorMissedDeadline
	// while the notification is still delivered.
	Notify() (uint64, liberr.Error)

	// NotifyWithCustomEventId delivers the given id.
	NotifyWithCustomEventId(id EventId) (uint64, liberr.Error)
}

// Listener is the receiving endpoint of an event service.
type Listener interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// TryWaitOne returns one pending event id without blocking.
	TryWaitOne() (EventId, bool, liberr.Error)
	// TimedWaitOne blocks up to timeout for one event id.
	TimedWaitOne(timeout time.Duration) (EventId, bool, liberr.Error)
	// BlockingWaitOne blocks until an event id arrives or a process
	// signal interrupts the wait.
	BlockingWaitOne() (EventId, bool, liberr.Error)

	// TryWaitAll invokes fct per distinct pending id in arrival order.
	TryWaitAll(fct func(EventId)) liberr.Error
	// TimedWaitAll blocks up to timeout, then drains like TryWaitAll.
	TimedWaitAll(fct func(EventId), timeout time.Duration) liberr.Error
	// BlockingWaitAll blocks until at least one id arrives, then drains.
	BlockingWaitAll(fct func(EventId)) liberr.Error

	// Fd exposes the wakeup descriptor for wait-set multiplexing.
	Fd() int

	// Deadline returns the configured service deadline and whether one
	// is set.
	Deadline() (time.Duration, bool)
}

// NewNotifier creates a notifier port on the event service, emitting
// the configured notifier-created event.
func NewNotifier(s libsvc.Service) (Notifier, liberr.Error) {
	return newNotifier(s)
}

// NewListener creates a listener port on the event service.
func NewListener(s libsvc.Service) (Listener, liberr.Error) {
	return newListener(s)
}
