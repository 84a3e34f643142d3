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
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/zeroipc/config"
	libcnx "github.com/sabouaram/zeroipc/conn"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	liblog "github.com/sabouaram/zeroipc/logger"
	libque "github.com/sabouaram/zeroipc/queue"
	libsmp "github.com/sabouaram/zeroipc/sample"
	libsvc "github.com/sabouaram/zeroipc/service"
	libshm "github.com/sabouaram/zeroipc/shm"
)

// cleanupWorkers bounds the services repaired concurrently for one dead
// node.
const cleanupWorkers = 4

func cleanupNode(cfg libcfg.Config, nid string) liberr.Error {
	log := liblog.New("cleanup/" + nid)

	dir := cfg.NodeEntryDir(nid)

	if _, e := os.Stat(dir); os.IsNotExist(e) {
		return nil // already reclaimed
	}

	// The token serializes racing survivors: exactly one proceeds, the
	// others observe the reclamation as already done.
	tok := cfg.CleanupTokenPath(nid)

	fd, e := unix.Open(tok, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_CLOEXEC, 0o640)

	switch e {
	case nil:
		if u, ue := uuid.GenerateUUID(); ue == nil {
			_, _ = unix.Write(fd, []byte(u))
		}
		_ = unix.Close(fd)

	case unix.EEXIST:
		return nil

	case unix.ENOENT:
		return nil

	case unix.EACCES, unix.EPERM:
		return ErrorPermissions.Error(e)

	default:
		return ErrorInternal.Error(e)
	}

	nodeId, ok := libid.ParseId(nid)
	if !ok {
		// Corrupt entry: drop the directory, nothing else references it.
		_ = os.RemoveAll(dir)
		return nil
	}

	sids := taggedServices(cfg, nid)

	var (
		sem = semaphore.NewWeighted(cleanupWorkers)
		ctx = context.Background()
	)

	for _, sid := range sids {
		if sem.Acquire(ctx, 1) != nil {
			break
		}

		go func(sid string) {
			defer sem.Release(1)
			cleanupService(cfg, log, nodeId, sid)
		}(sid)
	}

	_ = sem.Acquire(ctx, cleanupWorkers)

	_ = os.RemoveAll(dir)

	log.Info("dead node reclaimed: services=%d", len(sids))

	return nil
}

func taggedServices(cfg libcfg.Config, nid string) []string {
	entries, e := os.ReadDir(cfg.NodeEntryDir(nid))
	if e != nil {
		return nil
	}

	suffix := cfg.Suffixes().NodeServiceTag

	var sids []string

	for _, ent := range entries {
		if n := ent.Name(); strings.HasSuffix(n, suffix) {
			sids = append(sids, strings.TrimSuffix(n, suffix))
		}
	}

	return sids
}

// cleanupService repairs one service the dead node was attached to:
// its ports leave the dynamic registry, their connections detach, every
// sample the dead node pinned is released, its segments are unlinked
// and the configured disconnect and dead-node events fire.
func cleanupService(cfg libcfg.Config, log liblog.Logger, nodeId libid.Id, sid string) {
	st, err := libsvc.Details(cfg, sid)
	if err != nil {
		log.Warning("service %s unreadable during reclamation: %s", sid, err.Error())
		return
	}

	dyn, err := libsvc.OpenDynamic(cfg, sid, cfg.CreationTimeout())
	if err != nil {
		log.Warning("dynamic registry of %s unreachable: %s", sid, err.Error())
		return
	}

	defer func() {
		if dyn.NodeCount() == 0 {
			_ = dyn.Segment().Unlink()
			_ = os.Remove(cfg.StaticConfigPath(sid))
			_ = os.Remove(cfg.CreatorLockPath(sid))
			_ = os.Remove(cfg.ServiceEntryDir(sid))
		}
		_ = dyn.Segment().Close()
	}()

	kinds := serviceKinds(st.Pattern)

	var deadA, deadB []libid.Id

	collect := func(k libsvc.PortKind, into *[]libid.Id) {
		dyn.Ports(k, func(pid, nid libid.Id, _ uint64) bool {
			if nid == nodeId {
				*into = append(*into, pid)
			}
			return true
		})
	}

	collect(kinds[0], &deadA)
	collect(kinds[1], &deadB)

	// Dead consumers: drain their connections so every reference they
	// held flows back to its pool, then detach.
	for _, dead := range deadB {
		dyn.Ports(kinds[0], func(producer, owner libid.Id, _ uint64) bool {
			if owner != nodeId {
				releaseConsumerRefs(cfg, log, sid, producer, dead)
			}
			return true
		})

		dyn.RemovePort(kinds[1], dead)

		if st.Pattern == libsvc.PatternEvent {
			_ = os.Remove(cfg.EventConnPath(sid, dead.String()))
		}
	}

	// Dead producers: peers observe end-of-stream, segments unlink.
	for _, dead := range deadA {
		dyn.Ports(kinds[1], func(consumer, owner libid.Id, _ uint64) bool {
			if owner != nodeId {
				detachProducer(cfg, sid, dead, consumer)
			}
			return true
		})

		dyn.RemovePort(kinds[0], dead)
		unlinkPortSegments(cfg, sid, dead.String())
	}

	dyn.DeregisterNode(nodeId)

	emitDeathEvents(cfg, st, sid, len(deadA), len(deadB))
}

func serviceKinds(p libsvc.Pattern) [2]libsvc.PortKind {
	switch p {
	case libsvc.PatternEvent:
		return [2]libsvc.PortKind{libsvc.KindNotifier, libsvc.KindListener}
	case libsvc.PatternRequestResponse:
		return [2]libsvc.PortKind{libsvc.KindClient, libsvc.KindServer}
	}

	return [2]libsvc.PortKind{libsvc.KindPublisher, libsvc.KindSubscriber}
}

// releaseConsumerRefs returns every sample reference a dead consumer
// still holds, queued or borrowed, to the producer's pool.
func releaseConsumerRefs(cfg libcfg.Config, log liblog.Logger, sid string, producer, dead libid.Id) {
	path := cfg.ConnSegmentName(sid, producer.String(), dead.String())

	cx, err := libcnx.Open(path, cfg.CreationTimeout())
	if err != nil {
		return // never connected
	}

	pools := map[uint32]libsmp.Pool{}

	release := func(ref uint64) bool {
		gen, idx := libsmp.SplitRef(ref)

		p, ok := pools[gen]
		if !ok {
			seg, serr := libshm.Open(cfg.DataSegmentName(sid, producer.String(), gen), cfg.CreationTimeout())
			if serr != nil {
				return true
			}

			p, serr = libsmp.Attach(seg)
			if serr != nil {
				_ = seg.Close()
				return true
			}

			pools[gen] = p
		}

		p.Release(idx)
		return true
	}

	for {
		ref, ok := cx.Queue().Pop()
		if !ok {
			break
		}
		release(ref)
	}

	cx.Borrows(release)

	cx.MarkDetached(libque.DetachedConsumer)

	for _, p := range pools {
		_ = p.Close()
	}

	_ = cx.Close()
	_ = cx.Unlink()

	log.Debug("connection %s drained for dead consumer", path)
}

func detachProducer(cfg libcfg.Config, sid string, dead, consumer libid.Id) {
	path := cfg.ConnSegmentName(sid, dead.String(), consumer.String())

	cx, err := libcnx.Open(path, cfg.CreationTimeout())
	if err != nil {
		return
	}

	cx.MarkDetached(libque.DetachedProducer)
	_ = cx.Close()
	_ = cx.Unlink()
}

// unlinkPortSegments removes every data segment generation of a dead
// producer port. Live consumers keep their established mappings; only
// the names disappear.
func unlinkPortSegments(cfg libcfg.Config, sid, portId string) {
	base := cfg.DataSegmentName(sid, portId, 0)

	_ = os.Remove(base)

	if matches, e := filepath.Glob(base + ".g*"); e == nil {
		for _, m := range matches {
			_ = os.Remove(m)
		}
	}
}

// emitDeathEvents fires the configured disconnect and process-died
// events for the repaired service, at most once per cleanup.
func emitDeathEvents(cfg libcfg.Config, st *libsvc.StaticConfig, sid string, deadProducers, deadConsumers int) {
	switch {
	case st.Event != nil:
		// The dead node was attached to the service; whether it held a
		// notifier port at the instant of death is irrelevant to the
		// survivors observing its disappearance.
		if st.Event.NotifierDeadEvent.Set {
			notifyListeners(cfg, sid, st.Event.NotifierDeadEvent.Id)
		}

	case st.PubSub != nil:
		// Pub/sub death events travel over the event service of the
		// same name; absent that service they are silently skipped.
		evSid := libid.NewServiceId(cfg.Domain(), st.Name, libsvc.PatternEvent.String()).String()

		if deadProducers > 0 && st.PubSub.PublisherDisconnected.Set {
			notifyListeners(cfg, evSid, st.PubSub.PublisherDisconnected.Id)
		}
		if deadConsumers > 0 && st.PubSub.SubscriberDisconnected.Set {
			notifyListeners(cfg, evSid, st.PubSub.SubscriberDisconnected.Id)
		}
		if (deadProducers > 0 || deadConsumers > 0) && st.PubSub.ProcessDied.Set {
			notifyListeners(cfg, evSid, st.PubSub.ProcessDied.Id)
		}
	}
}

func notifyListeners(cfg libcfg.Config, sid string, id uint64) {
	dyn, err := libsvc.OpenDynamic(cfg, sid, cfg.CreationTimeout())
	if err != nil {
		return
	}

	defer func() {
		_ = dyn.Segment().Close()
	}()

	dyn.Ports(libsvc.KindListener, func(pid, _ libid.Id, _ uint64) bool {
		if sig, serr := libque.OpenSignal(cfg.EventConnPath(sid, pid.String())); serr == nil {
			_ = sig.Notify(id)
			_ = sig.Close()
		}
		return true
	})
}
