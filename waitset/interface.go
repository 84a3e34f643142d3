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


// Package waitset multiplexes blocking waits across listeners, timers
// and raw descriptors: the event and deadline engine of an
// application's reactive loop.
//
// Attachments come in four kinds: notifications (a listener descriptor
// becoming readable), deadlines (a listener that must fire within a
// duration, reporting misses out-of-band), intervals (periodic ticks)
// and raw descriptors. WaitAndProcess blocks on all of them at once
// and invokes the callback per ready attachment until it asks to stop
// or a termination signal arrives.
//
// Signal handling is cooperative: SIGINT and SIGTERM interrupt the
// wait through a self-pipe armed at build time, so a blocked loop
// returns promptly with RunInterrupted. It can be disabled on the
// builder.
package waitset

import (
	"io"
	"time"

	liberr "github.com/sabouaram/zeroipc/errors"
)

// Source is anything exposing a pollable descriptor. Listeners of the
// event package satisfy it.
type Source interface {
	Fd() int
}

// Action is the callback's verdict after handling one attachment.
type Action uint8

const (
	// Continue keeps the processing loop running.
	Continue Action = iota
	// Stop makes WaitAndProcess return after the current batch.
	Stop
)

// EventKind classifies why an attachment fired.
type EventKind uint8

const (
	// HasEvent reports a readable notification or raw descriptor.
	HasEvent EventKind = iota + 1
	// MissedDeadline reports a deadline elapsed without notification.
	MissedDeadline
	// Tick reports an interval attachment firing.
	Tick
)

// AttachmentId identifies one firing attachment inside the callback.
type AttachmentId struct {
	token uint64
	kind  EventKind
}

// Token returns the attachment token returned at attach time.
func (a AttachmentId) Token() uint64 {
	return a.token
}

// Kind returns why the attachment fired.
func (a AttachmentId) Kind() EventKind {
	return a.kind
}

// HasEvent reports a notification firing.
func (a AttachmentId) HasEvent() bool {
	return a.kind == HasEvent
}

// HasMissedDeadline reports a deadline miss.
func (a AttachmentId) HasMissedDeadline() bool {
	return a.kind == MissedDeadline
}

// RunResult tells why WaitAndProcess returned.
type RunResult uint8

const (
	// RunStopped reports the callback returned Stop.
	RunStopped RunResult = iota + 1
	// RunInterrupted reports a termination signal.
	RunInterrupted
	// RunEmpty reports that no attachment is left to wait on.
	RunEmpty
)

// WaitSet multiplexes attachments. Not safe for concurrent use; one
// goroutine drives the loop.
type WaitSet interface {
	io.Closer

	// AttachNotification wakes on the source becoming readable.
	AttachNotification(s Source) (uint64, liberr.Error)
	// AttachDeadline wakes on readability and reports a miss when the
	// duration elapses without one.
	AttachDeadline(s Source, d time.Duration) (uint64, liberr.Error)
	// AttachInterval ticks periodically.
	AttachInterval(d time.Duration) (uint64, liberr.Error)
	// AttachFd wakes on a raw descriptor becoming readable.
	AttachFd(fd int) (uint64, liberr.Error)

	// Detach removes an attachment by token.
	Detach(token uint64)

	// Len returns the number of attachments.
	Len() int

	// WaitAndProcess blocks and dispatches until the callback returns
	// Stop, a termination signal arrives, or nothing is attached.
	WaitAndProcess(fct func(AttachmentId) Action) (RunResult, liberr.Error)

	// WaitAndProcessOnce waits for at most one readiness batch and
	// dispatches it, then returns.
	WaitAndProcessOnce(fct func(AttachmentId) Action) (RunResult, liberr.Error)
}

// Builder configures a WaitSet.
type Builder struct {
	noSignals bool
}

// NewBuilder returns a WaitSet builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// DisableSignalHandling keeps SIGINT and SIGTERM out of the wait set;
// blocking waits are then only bounded by their own attachments.
func (b *Builder) DisableSignalHandling() *Builder {
	b.noSignals = true
	return b
}

// Build creates the WaitSet.
func (b *Builder) Build() (WaitSet, liberr.Error) {
	return newWaitSet(!b.noSignals)
}
