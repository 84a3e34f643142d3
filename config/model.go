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


package config

import (
	"path/filepath"
	"strings"

	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
)

type cfg struct {
	opt Options
}

func newConfig(opt Options) (Config, liberr.Error) {
	opt.merge()

	if e := opt.bind(); e != nil {
		return nil, ErrorValidation.Error(e)
	}

	if !isValidDomain(opt.Domain) {
		return nil, ErrorDomainInvalid.Error(nil)
	}

	return &cfg{opt: opt}, nil
}

// isValidDomain accepts file-name-like strings: ASCII letters, digits,
// dash, underscore and dot, at most MaxDomainLen bytes, not starting
// with a dot.
func isValidDomain(s string) bool {
	if s == "" || len(s) > MaxDomainLen || s[0] == '.' {
		return false
	}

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}

	return true
}

func (c *cfg) Domain() string {
	return c.opt.Domain
}

func (c *cfg) RootDir() string {
	return c.opt.RootDir
}

func (c *cfg) ShmDir() string {
	return c.opt.ShmDir
}

func (c *cfg) ServiceDir() string {
	return filepath.Join(c.opt.RootDir, c.opt.Domain, c.opt.Suffixes.ServiceDirectory)
}

func (c *cfg) NodeDir() string {
	return filepath.Join(c.opt.RootDir, c.opt.Domain, "nodes")
}

func (c *cfg) Suffixes() Suffixes {
	return c.opt.Suffixes
}

func (c *cfg) CreationTimeout() libdur.Duration {
	return c.opt.CreationTimeout
}

func (c *cfg) Defaults() Defaults {
	return c.opt.Defaults
}

func (c *cfg) ServiceEntryDir(sid string) string {
	return filepath.Join(c.ServiceDir(), sid)
}

func (c *cfg) StaticConfigPath(sid string) string {
	return filepath.Join(c.ServiceEntryDir(sid), "static"+c.opt.Suffixes.StaticConfig)
}

func (c *cfg) CreatorLockPath(sid string) string {
	return filepath.Join(c.ServiceEntryDir(sid), "creator.lock")
}

// shmName builds a flat shared-memory object name carrying the domain
// prefix, so that segments of distinct domains never collide inside the
// shared ShmDir.
func (c *cfg) shmName(parts ...string) string {
	return "zipc_" + c.opt.Domain + "_" + strings.Join(parts, "_")
}

func (c *cfg) DynamicSegmentName(sid string) string {
	return filepath.Join(c.opt.ShmDir, c.shmName(sid)+c.opt.Suffixes.DynamicConfig)
}

func (c *cfg) DataSegmentName(sid, portId string, generation uint32) string {
	n := filepath.Join(c.opt.ShmDir, c.shmName(sid, portId)+c.opt.Suffixes.DataSegment)
	if generation > 0 {
		n += "." + genSuffix(generation)
	}
	return n
}

func (c *cfg) ConnSegmentName(sid, producer, consumer string) string {
	return filepath.Join(c.opt.ShmDir, c.shmName(sid, producer, consumer)+c.opt.Suffixes.Connection)
}

func (c *cfg) RequestQueueName(sid, server string) string {
	return filepath.Join(c.opt.ShmDir, c.shmName(sid, server, "requests")+c.opt.Suffixes.Connection)
}

func (c *cfg) EventConnPath(sid, listener string) string {
	return filepath.Join(c.opt.ShmDir, c.shmName(sid, listener)+c.opt.Suffixes.EventConnection)
}

func (c *cfg) NodeEntryDir(nid string) string {
	return filepath.Join(c.NodeDir(), nid)
}

func (c *cfg) MonitorPath(nid string) string {
	return filepath.Join(c.NodeEntryDir(nid), "monitor"+c.opt.Suffixes.NodeMonitor)
}

func (c *cfg) NodeInfoPath(nid string) string {
	return filepath.Join(c.NodeEntryDir(nid), "info"+c.opt.Suffixes.NodeStaticConfig)
}

func (c *cfg) CleanupTokenPath(nid string) string {
	return filepath.Join(c.NodeEntryDir(nid), "cleanup.token")
}

func (c *cfg) ServiceTagPath(nid, sid string) string {
	return filepath.Join(c.NodeEntryDir(nid), sid+c.opt.Suffixes.NodeServiceTag)
}

func genSuffix(generation uint32) string {
	const digits = "0123456789"

	if generation == 0 {
		return "g0"
	}

	var buf [12]byte
	i := len(buf)

	for generation > 0 {
		i--
		buf[i] = digits[generation%10]
		generation /= 10
	}

	return "g" + string(buf[i:])
}
