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

	"github.com/fsnotify/fsnotify"

	libcfg "github.com/sabouaram/zeroipc/config"
	liberr "github.com/sabouaram/zeroipc/errors"
)

// Detail is one entry of the service directory.
type Detail struct {
	// Id is the hex service id (the directory entry name).
	Id string
	// Static is the loaded configuration, nil when it was unreadable
	// (and Err carries the reason).
	Static *StaticConfig
	// Err reports why the entry could not be loaded.
	Err liberr.Error
}

// List enumerates every service of the domain and invokes fct per
// entry until it returns false. Unreadable entries are reported with a
// nil Static and the load error, letting the caller decide.
func List(cfg libcfg.Config, fct func(Detail) bool) liberr.Error {
	entries, e := os.ReadDir(cfg.ServiceDir())

	if e != nil {
		if os.IsNotExist(e) {
			return nil
		}
		if os.IsPermission(e) {
			return ErrorPermissions.Error(e)
		}
		return ErrorInternal.Error(e)
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		d := Detail{Id: ent.Name()}
		d.Static, d.Err = readStatic(cfg.StaticConfigPath(ent.Name()))

		if !fct(d) {
			return nil
		}
	}

	return nil
}

// Details loads the static configuration of one service by hex id.
func Details(cfg libcfg.Config, sid string) (*StaticConfig, liberr.Error) {
	return readStatic(cfg.StaticConfigPath(sid))
}

// DiscoveryKind classifies a discovery event.
type DiscoveryKind uint8

const (
	// DiscoveryAdded reports a service appearing in the directory.
	DiscoveryAdded DiscoveryKind = iota + 1
	// DiscoveryRemoved reports a service leaving the directory.
	DiscoveryRemoved
)

// DiscoveryEvent is one change observed in the service directory.
type DiscoveryEvent struct {
	Kind DiscoveryKind
	Id   string
}

// Watcher streams service directory changes of one domain.
type Watcher struct {
	fsw *fsnotify.Watcher
	out chan DiscoveryEvent
}

// NewWatcher starts watching the domain's service directory.
func NewWatcher(cfg libcfg.Config) (*Watcher, liberr.Error) {
	if e := os.MkdirAll(cfg.ServiceDir(), 0o750); e != nil {
		return nil, ErrorInternal.Error(e)
	}

	fsw, e := fsnotify.NewWatcher()
	if e != nil {
		return nil, ErrorInternal.Error(e)
	}

	if e = fsw.Add(cfg.ServiceDir()); e != nil {
		_ = fsw.Close()
		return nil, ErrorInternal.Error(e)
	}

	w := &Watcher{fsw: fsw, out: make(chan DiscoveryEvent, 16)}

	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	defer close(w.out)

	for ev := range w.fsw.Events {
		var k DiscoveryKind

		switch {
		case ev.Op.Has(fsnotify.Create):
			k = DiscoveryAdded
		case ev.Op.Has(fsnotify.Remove):
			k = DiscoveryRemoved
		default:
			continue
		}

		w.out <- DiscoveryEvent{Kind: k, Id: baseName(ev.Name)}
	}
}

// Events returns the discovery stream. The channel closes on Close.
func (w *Watcher) Events() <-chan DiscoveryEvent {
	return w.out
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
