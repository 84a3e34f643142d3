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


package queue

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/zeroipc/errors"
)

// Signal is the cross-process wakeup primitive behind the event pattern,
// backed by a named pipe. The waiting side creates and owns the pipe;
// any number of notifying sides open it and deposit 8-byte frames, one
// per notification, each carrying an event id. Writes of a frame are
// atomic (well under PIPE_BUF), so frames never interleave.
//
// The contract is at-least-one wakeup per notify batch; spurious
// wakeups are permitted and duplicate ids inside one wait are coalesced.
type Signal struct {
	path string
	fd   int
	rx   bool
}

const frameSize = 8

// CreateSignal creates the named pipe and opens its receiving side.
func CreateSignal(path string) (*Signal, liberr.Error) {
	if e := unix.Mkfifo(path, 0o640); e != nil && e != unix.EEXIST {
		if e == unix.EACCES || e == unix.EPERM {
			return nil, ErrorSignalPermissions.Error(e)
		}
		return nil, ErrorSignalInternal.Error(e)
	}

	fd, e := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if e != nil {
		return nil, ErrorSignalInternal.Error(e)
	}

	return &Signal{path: path, fd: fd, rx: true}, nil
}

// OpenSignal opens the notifying side of an existing named pipe.
// ErrorSignalNoReceiver is returned when the waiting side is gone.
func OpenSignal(path string) (*Signal, liberr.Error) {
	fd, e := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if e != nil {
		if e == unix.ENXIO || os.IsNotExist(e) {
			return nil, ErrorSignalNoReceiver.Error(e)
		}
		if e == unix.EACCES || e == unix.EPERM {
			return nil, ErrorSignalPermissions.Error(e)
		}
		return nil, ErrorSignalInternal.Error(e)
	}

	return &Signal{path: path, fd: fd, rx: false}, nil
}

// Fd exposes the receive descriptor for external multiplexing.
func (s *Signal) Fd() int {
	return s.fd
}

// Path returns the pipe path.
func (s *Signal) Path() string {
	return s.path
}

// Notify deposits one event id frame. Notifying side only.
func (s *Signal) Notify(id uint64) liberr.Error {
	var frame [frameSize]byte
	binary.LittleEndian.PutUint64(frame[:], id)

	for {
		_, e := unix.Write(s.fd, frame[:])

		switch e {
		case nil:
			return nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			// Pipe buffer full: the receiver is far behind but a wakeup
			// is already pending, so the notification is not lost as a
			// wakeup, only as a distinct id.
			return ErrorSignalBufferFull.Error(nil)
		case unix.EPIPE:
			return ErrorSignalNoReceiver.Error(nil)
		default:
			return ErrorSignalInternal.Error(e)
		}
	}
}

// TryWait drains all pending frames without blocking and returns the
// distinct event ids in first-arrival order, bounded by maxId.
func (s *Signal) TryWait(maxId uint32) ([]uint64, liberr.Error) {
	return s.drain(maxId)
}

// Wait blocks up to timeout for at least one frame, then drains like
// TryWait. A zero timeout blocks indefinitely. A process signal
// interrupting the wait yields ErrorSignalInterrupted.
func (s *Signal) Wait(timeout time.Duration, maxId uint32) ([]uint64, liberr.Error) {
	ids, err := s.drain(maxId)
	if err != nil || len(ids) > 0 {
		return ids, err
	}

	ms := -1
	if timeout > 0 {
		ms = int(timeout.Milliseconds())
		if ms == 0 {
			ms = 1
		}
	}

	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	n, e := unix.Poll(fds, ms)
	if e == unix.EINTR {
		return nil, ErrorSignalInterrupted.Error(nil)
	}
	if e != nil {
		return nil, ErrorSignalInternal.Error(e)
	}
	if n == 0 {
		return nil, nil // timeout
	}

	return s.drain(maxId)
}

// drain reads every complete frame currently buffered, dropping
// duplicates while keeping the first-arrival order.
func (s *Signal) drain(maxId uint32) ([]uint64, liberr.Error) {
	var (
		buf  [frameSize * 128]byte
		ids  []uint64
		seen = bitset.New(uint(maxId) + 1)
	)

	for {
		n, e := unix.Read(s.fd, buf[:])

		if e == unix.EINTR {
			continue
		}
		if e == unix.EAGAIN {
			return ids, nil
		}
		if e != nil {
			return ids, ErrorSignalInternal.Error(e)
		}
		if n == 0 {
			return ids, nil
		}

		for off := 0; off+frameSize <= n; off += frameSize {
			id := binary.LittleEndian.Uint64(buf[off : off+frameSize])

			if id > uint64(maxId) {
				id = uint64(maxId)
			}

			if !seen.Test(uint(id)) {
				seen.Set(uint(id))
				ids = append(ids, id)
			}
		}
	}
}

// Close releases the descriptor. The pipe file stays until Unlink.
func (s *Signal) Close() error {
	if s.fd < 0 {
		return nil
	}

	e := unix.Close(s.fd)
	s.fd = -1
	return e
}

// Unlink removes the pipe file. Receiving side or reclamation only.
func (s *Signal) Unlink() error {
	return unix.Unlink(s.path)
}
