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


package service

// Pattern is the messaging pattern of a service.
type Pattern uint8

const (
	// PatternPublishSubscribe is the one-to-many data distribution pattern.
	PatternPublishSubscribe Pattern = iota + 1
	// PatternEvent is the notifier-to-listener signaling pattern.
	PatternEvent
	// PatternRequestResponse is the client-to-server streaming pattern.
	PatternRequestResponse
	// PatternBlackboard is reserved: only the service-level lifecycle is
	// available, port semantics are not.
	PatternBlackboard
)

// String returns the lowercase pattern name used in service ids and
// diagnostics.
func (p Pattern) String() string {
	switch p {
	case PatternPublishSubscribe:
		return "publish_subscribe"
	case PatternEvent:
		return "event"
	case PatternRequestResponse:
		return "request_response"
	case PatternBlackboard:
		return "blackboard"
	}

	return "unknown"
}

// PortKind identifies one of the six port kinds.
type PortKind uint8

const (
	KindPublisher PortKind = iota + 1
	KindSubscriber
	KindNotifier
	KindListener
	KindClient
	KindServer
)

// String returns the lowercase port kind name.
func (k PortKind) String() string {
	switch k {
	case KindPublisher:
		return "publisher"
	case KindSubscriber:
		return "subscriber"
	case KindNotifier:
		return "notifier"
	case KindListener:
		return "listener"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	}

	return "unknown"
}

// table maps a port kind to one of the two dynamic-config port tables:
// producers (publishers, notifiers, clients) live in table A, consumers
// (subscribers, listeners, servers) in table B.
func (k PortKind) table() int {
	switch k {
	case KindPublisher, KindNotifier, KindClient:
		return 0
	}

	return 1
}
