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

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	liblog "github.com/sabouaram/zeroipc/logger"
	libatt "github.com/sabouaram/zeroipc/service/attribute"
	libshm "github.com/sabouaram/zeroipc/shm"
)

// openOrCreateRetries bounds the open/create race loop before the
// service is declared corrupted.
const openOrCreateRetries = 8

type svc struct {
	m       sync.Mutex
	b       Binding
	cfg     libcfg.Config
	log     liblog.Logger
	id      libid.ServiceId
	st      *StaticConfig
	dyn     *Dynamic
	created bool
	closed  bool
	unreg   func()
}

// openReq carries the opener's compatibility requirements.
type openReq struct {
	pattern Pattern

	payload    libid.TypeDetail
	userHdr    libid.TypeDetail
	request    libid.TypeDetail
	requestHdr libid.TypeDetail
	response   libid.TypeDetail
	responseHdr libid.TypeDetail

	// Requested support amounts; zero means no requirement.
	minA     uint32
	minB     uint32
	minNodes uint32

	verifier *libatt.Verifier
}

func createService(b Binding, name string, st *StaticConfig) (Service, liberr.Error) {
	cfg := b.Config()
	sid := libid.NewServiceId(cfg.Domain(), name, st.Pattern.String())
	hex := sid.String()
	log := b.Logger().Clone("service/" + name)

	staticPath := cfg.StaticConfigPath(hex)
	lockPath := cfg.CreatorLockPath(hex)

	if err := ensureDir(staticPath); err != nil {
		return nil, err
	}

	fd, e := unix.Open(lockPath, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_CLOEXEC, 0o640)

	if e == unix.EEXIST {
		if staticExists(staticPath) {
			return nil, ErrorAlreadyExists.Error(nil)
		}
		return nil, ErrorBeingCreated.Error(nil)
	}
	if e != nil {
		if e == unix.EACCES || e == unix.EPERM {
			return nil, ErrorPermissions.Error(e)
		}
		return nil, ErrorInternal.Error(e)
	}

	_ = unix.Close(fd)

	if staticExists(staticPath) {
		// A fully created service left its lock removed; recreate races
		// resolve on the static file.
		_ = os.Remove(lockPath)
		return nil, ErrorAlreadyExists.Error(nil)
	}

	maxA, maxB := st.maxPorts()

	seg, err := libshm.Create(
		cfg.DynamicSegmentName(hex),
		DynRequiredSize(st.MaxNodes(), maxA, maxB),
		0,
	)
	if err != nil {
		_ = os.Remove(lockPath)
		return nil, ErrorInternal.Error(err)
	}

	dyn, err := dynCreate(seg, st)
	if err != nil {
		_ = seg.Close()
		_ = os.Remove(lockPath)
		return nil, err
	}

	seg.MarkReady()

	if err = writeStatic(staticPath, st); err != nil {
		_ = seg.Close()
		_ = os.Remove(lockPath)
		return nil, err
	}

	// The service is published: late creators now observe AlreadyExists.
	_ = os.Remove(lockPath)

	s := &svc{
		b:       b,
		cfg:     cfg,
		log:     log,
		id:      sid,
		st:      st,
		dyn:     dyn,
		created: true,
	}

	if err = s.attachNode(); err != nil {
		_ = seg.Close()
		return nil, err
	}

	log.Debug("service created: id=%s pattern=%s", hex, st.Pattern.String())

	return s, nil
}

func openService(b Binding, name string, req *openReq) (Service, liberr.Error) {
	cfg := b.Config()
	sid := libid.NewServiceId(cfg.Domain(), name, req.pattern.String())
	hex := sid.String()
	log := b.Logger().Clone("service/" + name)

	staticPath := cfg.StaticConfigPath(hex)
	lockPath := cfg.CreatorLockPath(hex)

	st, err := readStatic(staticPath)

	if err != nil && err.IsCode(ErrorDoesNotExist) {
		st, err = waitForCreation(cfg, staticPath, lockPath)
	}
	if err != nil {
		return nil, err
	}

	if err = verifyOpen(st, req); err != nil {
		return nil, err
	}

	seg, serr := libshm.Open(cfg.DynamicSegmentName(hex), cfg.CreationTimeout())
	if serr != nil {
		if serr.IsCode(libshm.ErrorVersionMismatch) {
			return nil, ErrorVersionMismatch.Error(serr)
		}
		return nil, ErrorCorrupted.Error(serr)
	}

	dyn, err := dynAttach(seg)
	if err != nil {
		_ = seg.Close()
		return nil, err
	}

	s := &svc{
		b:   b,
		cfg: cfg,
		log: log,
		id:  sid,
		st:  st,
		dyn: dyn,
	}

	if err = s.attachNode(); err != nil {
		_ = seg.Close()
		return nil, err
	}

	log.Debug("service opened: id=%s pattern=%s", hex, st.Pattern.String())

	return s, nil
}

func openOrCreateService(b Binding, name string, st *StaticConfig, req *openReq) (Service, liberr.Error) {
	var last liberr.Error

	for i := 0; i < openOrCreateRetries; i++ {
		s, err := openService(b, name, req)
		if err == nil {
			return s, nil
		}

		if !err.IsCode(ErrorDoesNotExist) {
			return nil, err
		}

		s, err = createService(b, name, st)
		if err == nil {
			return s, nil
		}

		if !err.IsCode(ErrorAlreadyExists) && !err.IsCode(ErrorBeingCreated) {
			return nil, err
		}

		last = err
	}

	return nil, ErrorCorrupted.ErrorMessage(
		"open/create race never settled", last)
}

// waitForCreation distinguishes a missing service from one hanging in
// creation: while the creator lock exists the opener polls for the
// static config up to the creation timeout.
func waitForCreation(cfg libcfg.Config, staticPath, lockPath string) (*StaticConfig, liberr.Error) {
	if _, e := os.Stat(lockPath); e != nil {
		return nil, ErrorDoesNotExist.Error(nil)
	}

	limit := time.Now().Add(cfg.CreationTimeout().Time())

	for time.Now().Before(limit) {
		if st, err := readStatic(staticPath); err == nil {
			return st, nil
		} else if !err.IsCode(ErrorDoesNotExist) {
			return nil, err
		}

		time.Sleep(time.Millisecond)
	}

	return nil, ErrorHangsInCreation.Error(nil)
}

func verifyOpen(st *StaticConfig, req *openReq) liberr.Error {
	if st.Pattern != req.pattern {
		return ErrorIncompatiblePattern.Error(nil)
	}

	switch st.Pattern {
	case PatternPublishSubscribe:
		if !st.Payload.Equal(req.payload) || !st.UserHeader.Equal(req.userHdr) {
			return ErrorIncompatibleTypes.ErrorMessage(
				"stored payload " + st.Payload.String() +
					" does not match requested " + req.payload.String())
		}

	case PatternRequestResponse:
		if !st.Request.Equal(req.request) || !st.RequestHeader.Equal(req.requestHdr) {
			return ErrorIncompatibleRequestType.Error(nil)
		}
		if !st.Response.Equal(req.response) || !st.ResponseHeader.Equal(req.responseHdr) {
			return ErrorIncompatibleResponseType.Error(nil)
		}
	}

	if req.verifier != nil {
		if miss, ok := req.verifier.Verify(st.Attributes); !ok {
			return ErrorIncompatibleAttributes.ErrorMessage(
				"service does not satisfy requirement on key " + miss.Key)
		}
	}

	a, bmax := st.maxPorts()

	if req.minA > 0 && req.minA > a {
		return errUnsupportedAmount(st.Pattern, 0)
	}
	if req.minB > 0 && req.minB > bmax {
		return errUnsupportedAmount(st.Pattern, 1)
	}
	if req.minNodes > 0 && req.minNodes > st.MaxNodes() {
		return ErrorUnsupportedAmountOfNodes.Error(nil)
	}

	return nil
}

func errUnsupportedAmount(p Pattern, table int) liberr.Error {
	switch p {
	case PatternPublishSubscribe:
		if table == 0 {
			return ErrorUnsupportedAmountOfPublishers.Error(nil)
		}
		return ErrorUnsupportedAmountOfSubscribers.Error(nil)

	case PatternEvent:
		if table == 0 {
			return ErrorUnsupportedAmountOfNotifiers.Error(nil)
		}
		return ErrorUnsupportedAmountOfListeners.Error(nil)

	case PatternRequestResponse:
		if table == 0 {
			return ErrorUnsupportedAmountOfClients.Error(nil)
		}
		return ErrorUnsupportedAmountOfServers.Error(nil)
	}

	return ErrorInternal.Error(nil)
}

func (s *svc) attachNode() liberr.Error {
	nid := s.b.NodeId().Encode()

	if err := s.dyn.RegisterNode(nid); err != nil {
		return err
	}

	if err := s.b.TagService(s.id.String()); err != nil {
		s.dyn.DeregisterNode(nid)
		return err
	}

	s.unreg = s.b.RegisterCloser(s)
	return nil
}

func (s *svc) Id() libid.ServiceId {
	return s.id
}

func (s *svc) Name() string {
	return s.st.Name
}

func (s *svc) Pattern() Pattern {
	return s.st.Pattern
}

func (s *svc) Static() *StaticConfig {
	return s.st
}

func (s *svc) Attributes() libatt.Set {
	return s.st.Attributes
}

func (s *svc) Dynamic() *Dynamic {
	return s.dyn
}

func (s *svc) Binding() Binding {
	return s.b
}

func (s *svc) Config() libcfg.Config {
	return s.cfg
}

func (s *svc) WasCreated() bool {
	return s.created
}

func (s *svc) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.unreg != nil {
		s.unreg()
	}

	s.dyn.DeregisterNode(s.b.NodeId().Encode())
	s.b.UntagService(s.id.String())

	if s.dyn.NodeCount() == 0 {
		// Last node out removes the persistent artifacts; the dynamic
		// segment name goes with the refcount reaching zero below.
		removeEntry(s.cfg, s.id.String())
	}

	return s.dyn.Segment().Close()
}

// removeEntry deletes the persisted directory entry of a service whose
// last node detached. Shared with dead-node reclamation.
func removeEntry(cfg libcfg.Config, sid string) {
	_ = os.Remove(cfg.StaticConfigPath(sid))
	_ = os.Remove(cfg.CreatorLockPath(sid))
	_ = os.Remove(cfg.ServiceEntryDir(sid))
}
