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


package shm

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// initPollStep is the spin-poll interval while waiting for the creator
// to publish the initialized flag.
const initPollStep = 100 * time.Microsecond

type seg struct {
	m    sync.Mutex
	fd   int
	path string
	raw  []byte // full mapping, header included
	gen  uint32
	open bool
}

func segCreate(path string, size libsiz.Size, generation uint32) (Segment, liberr.Error) {
	total := int64(HeaderSize) + size.AlignUp(8).Int64()

	fd, e := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0o640)
	if e != nil {
		if e == unix.EEXIST {
			return nil, ErrorSegmentExists.Error(e)
		}
		if e == unix.EACCES || e == unix.EPERM {
			return nil, ErrorPermissions.Error(e)
		}
		return nil, ErrorInternal.Error(e)
	}

	if e = unix.Ftruncate(fd, total); e != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, ErrorInternal.Error(e)
	}

	raw, e := unix.Mmap(fd, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if e != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, ErrorInternal.Error(e)
	}

	U64(raw, offMagic).Store(segMagic)
	hdrWriteVersion(raw)
	U64(raw, offTotalSize).Store(uint64(total))
	U32(raw, offGeneration).Store(generation)
	U64(raw, offRefCount).Store(1)
	U64(raw, offAllocPtr).Store(0)
	// The init flag stays zero until MarkReady.

	return &seg{fd: fd, path: path, raw: raw, gen: generation, open: true}, nil
}

func segOpen(path string, timeout libdur.Duration) (Segment, liberr.Error) {
	fd, e := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if e != nil {
		if os.IsNotExist(e) || e == unix.ENOENT {
			return nil, ErrorSegmentNotFound.Error(e)
		}
		if e == unix.EACCES || e == unix.EPERM {
			return nil, ErrorPermissions.Error(e)
		}
		return nil, ErrorInternal.Error(e)
	}

	var st unix.Stat_t
	if e = unix.Fstat(fd, &st); e != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(e)
	}

	if st.Size < HeaderSize {
		_ = unix.Close(fd)
		return nil, ErrorSegmentCorrupted.Error(nil)
	}

	raw, e := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if e != nil {
		_ = unix.Close(fd)
		return nil, ErrorInternal.Error(e)
	}

	s := &seg{fd: fd, path: path, raw: raw, open: true}

	if err := s.waitReady(timeout); err != nil {
		_ = unix.Munmap(raw)
		_ = unix.Close(fd)
		return nil, err
	}

	if U64(raw, offMagic).Load() != segMagic {
		_ = unix.Munmap(raw)
		_ = unix.Close(fd)
		return nil, ErrorSegmentCorrupted.Error(nil)
	}

	if v := hdrReadVersion(raw); !v.IsCompatible() {
		_ = unix.Munmap(raw)
		_ = unix.Close(fd)
		return nil, ErrorVersionMismatch.ErrorMessage(
			"segment written by incompatible version " + v.String())
	}

	s.gen = U32(raw, offGeneration).Load()
	U64(raw, offRefCount).Add(1)

	return s, nil
}

func segOpenOrCreate(path string, size libsiz.Size, generation uint32, timeout libdur.Duration) (Segment, bool, liberr.Error) {
	s, err := segCreate(path, size, generation)

	if err == nil {
		return s, true, nil
	}

	if !err.IsCode(ErrorSegmentExists) {
		return nil, false, err
	}

	s2, err := segOpen(path, timeout)
	if err != nil {
		return nil, false, err
	}

	return s2, false, nil
}

// waitReady spin-polls the initialized flag with a bounded timeout.
func (s *seg) waitReady(timeout libdur.Duration) liberr.Error {
	limit := time.Now().Add(timeout.Time())

	for {
		if U64(s.raw, offInitFlag).Load() == 1 {
			return nil
		}

		if time.Now().After(limit) {
			return ErrorSegmentCorrupted.ErrorMessage(
				"segment " + s.path + " never became initialized")
		}

		time.Sleep(initPollStep)
	}
}

func (s *seg) Path() string {
	return s.path
}

func (s *seg) Size() libsiz.Size {
	return libsiz.Size(U64(s.raw, offTotalSize).Load() - HeaderSize)
}

func (s *seg) Generation() uint32 {
	return s.gen
}

func (s *seg) Bytes() []byte {
	return s.raw[HeaderSize:]
}

func (s *seg) Alloc(n libsiz.Size, align libsiz.Size) (uint64, liberr.Error) {
	if align.IsZero() {
		align = 8
	}

	for {
		cur := U64(s.raw, offAllocPtr).Load()
		off := libsiz.Size(cur).AlignUp(align)
		end := off + n.AlignUp(8)

		if end.Uint64() > s.Size().Uint64() {
			return 0, ErrorSegmentFull.Error(nil)
		}

		if U64(s.raw, offAllocPtr).CompareAndSwap(cur, end.Uint64()) {
			return off.Uint64(), nil
		}
	}
}

func (s *seg) MarkReady() {
	U64(s.raw, offInitFlag).Store(1)
}

func (s *seg) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if !s.open {
		return nil
	}

	s.open = false

	last := U64(s.raw, offRefCount).Add(^uint64(0)) == 0

	e1 := unix.Munmap(s.raw)
	e2 := unix.Close(s.fd)
	s.raw = nil

	if last {
		_ = unix.Unlink(s.path)
	}

	if e1 != nil {
		return e1
	}
	return e2
}

func (s *seg) Unlink() error {
	return unix.Unlink(s.path)
}
