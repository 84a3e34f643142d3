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
	"strings"

	libval "github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	libdur "github.com/sabouaram/zeroipc/duration"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// EnvPrefix is the viper environment prefix: the domain, root_dir and
// shm_dir options may be overridden with a ZEROIPC_ prefixed variable,
// e.g. ZEROIPC_DOMAIN. Other options are not read from the environment.
const EnvPrefix = "ZEROIPC"

// Options is the mutable input to New. The zero value yields a fully
// defaulted configuration.
type Options struct {
	Domain          string          `mapstructure:"domain" validate:"omitempty,max=32"`
	RootDir         string          `mapstructure:"root_dir" validate:"omitempty"`
	ShmDir          string          `mapstructure:"shm_dir" validate:"omitempty"`
	CreationTimeout libdur.Duration `mapstructure:"creation_timeout"`
	Suffixes        Suffixes        `mapstructure:"suffixes"`
	Defaults        Defaults        `mapstructure:"defaults"`
}

func defaultOptions() Options {
	return Options{
		Domain:          DefaultDomain,
		RootDir:         "/tmp/zeroipc",
		ShmDir:          "/dev/shm",
		CreationTimeout: 500 * libdur.Millisecond,
		Suffixes: Suffixes{
			ServiceDirectory: "services",
			DataSegment:      ".data",
			StaticConfig:     ".service",
			DynamicConfig:    ".dynamic",
			Connection:       ".connection",
			EventConnection:  ".event",
			NodeMonitor:      ".node_monitor",
			NodeStaticConfig: ".details",
			NodeServiceTag:   ".service_tag",
		},
		Defaults: Defaults{
			PubSub: PubSubDefaults{
				MaxNodes:                     16,
				MaxPublishers:                4,
				MaxSubscribers:               8,
				HistorySize:                  0,
				SubscriberMaxBufferSize:      2,
				SubscriberMaxBorrowedSamples: 2,
				MaxLoanedSamples:             2,
				EnableSafeOverflow:           true,
			},
			Event: EventDefaults{
				MaxNodes:     36,
				MaxNotifiers: 16,
				MaxListeners: 16,
				EventIdMax:   255,
			},
			ReqRes: ReqResDefaults{
				MaxNodes:                   16,
				MaxClients:                 8,
				MaxServers:                 2,
				MaxActiveRequestsPerClient: 4,
				MaxResponseBufferSize:      2,
				MaxLoanedRequests:          2,
				EnableSafeOverflowRequests: true,
				EnableSafeOverflowResponse: true,
				EnableFireAndForget:        true,
			},
			MaxSliceLen:      8 * libsiz.SizeKilo,
			SegmentChunkSize: 64 * libsiz.SizeKilo,
		},
	}
}

// merge fills the zero fields of the options with the defaults and
// adjusts capacities: a zero maximum is raised to one so that a service
// stays usable.
func (o *Options) merge() {
	def := defaultOptions()

	if strings.TrimSpace(o.Domain) == "" {
		o.Domain = def.Domain
	}
	if strings.TrimSpace(o.RootDir) == "" {
		o.RootDir = def.RootDir
	} else if p, e := homedir.Expand(o.RootDir); e == nil {
		o.RootDir = p
	}
	if strings.TrimSpace(o.ShmDir) == "" {
		o.ShmDir = def.ShmDir
	} else if p, e := homedir.Expand(o.ShmDir); e == nil {
		o.ShmDir = p
	}
	if o.CreationTimeout.IsZero() {
		o.CreationTimeout = def.CreationTimeout
	}

	mergeSuffixes(&o.Suffixes, def.Suffixes)
	mergeDefaults(&o.Defaults, def.Defaults)
}

func mergeSuffixes(s *Suffixes, def Suffixes) {
	if s.ServiceDirectory == "" {
		s.ServiceDirectory = def.ServiceDirectory
	}
	if s.DataSegment == "" {
		s.DataSegment = def.DataSegment
	}
	if s.StaticConfig == "" {
		s.StaticConfig = def.StaticConfig
	}
	if s.DynamicConfig == "" {
		s.DynamicConfig = def.DynamicConfig
	}
	if s.Connection == "" {
		s.Connection = def.Connection
	}
	if s.EventConnection == "" {
		s.EventConnection = def.EventConnection
	}
	if s.NodeMonitor == "" {
		s.NodeMonitor = def.NodeMonitor
	}
	if s.NodeStaticConfig == "" {
		s.NodeStaticConfig = def.NodeStaticConfig
	}
	if s.NodeServiceTag == "" {
		s.NodeServiceTag = def.NodeServiceTag
	}
}

func mergeDefaults(d *Defaults, def Defaults) {
	adj := func(v *uint32, dv uint32) {
		if *v == 0 {
			*v = dv
		}
		if *v == 0 {
			*v = 1
		}
	}

	adj(&d.PubSub.MaxNodes, def.PubSub.MaxNodes)
	adj(&d.PubSub.MaxPublishers, def.PubSub.MaxPublishers)
	adj(&d.PubSub.MaxSubscribers, def.PubSub.MaxSubscribers)
	adj(&d.PubSub.SubscriberMaxBufferSize, def.PubSub.SubscriberMaxBufferSize)
	adj(&d.PubSub.SubscriberMaxBorrowedSamples, def.PubSub.SubscriberMaxBorrowedSamples)
	adj(&d.PubSub.MaxLoanedSamples, def.PubSub.MaxLoanedSamples)

	adj(&d.Event.MaxNodes, def.Event.MaxNodes)
	adj(&d.Event.MaxNotifiers, def.Event.MaxNotifiers)
	adj(&d.Event.MaxListeners, def.Event.MaxListeners)
	adj(&d.Event.EventIdMax, def.Event.EventIdMax)

	adj(&d.ReqRes.MaxNodes, def.ReqRes.MaxNodes)
	adj(&d.ReqRes.MaxClients, def.ReqRes.MaxClients)
	adj(&d.ReqRes.MaxServers, def.ReqRes.MaxServers)
	adj(&d.ReqRes.MaxActiveRequestsPerClient, def.ReqRes.MaxActiveRequestsPerClient)
	adj(&d.ReqRes.MaxResponseBufferSize, def.ReqRes.MaxResponseBufferSize)
	adj(&d.ReqRes.MaxLoanedRequests, def.ReqRes.MaxLoanedRequests)

	if d.MaxSliceLen.IsZero() {
		d.MaxSliceLen = def.MaxSliceLen
	}
	if d.SegmentChunkSize.IsZero() {
		d.SegmentChunkSize = def.SegmentChunkSize
	}
}

// bind reads environment overrides through viper, then validates.
func (o *Options) bind() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range []string{"domain", "root_dir", "shm_dir"} {
		if val := v.GetString(k); val != "" {
			switch k {
			case "domain":
				o.Domain = val
			case "root_dir":
				o.RootDir = val
			case "shm_dir":
				o.ShmDir = val
			}
		}
	}

	return libval.New().Struct(o)
}
