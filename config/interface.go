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


// Package config provides the immutable global configuration bound to a
// node: the domain prefix isolating one deployment, the directories where
// persistent resources live, the configurable file suffixes, and the
// per-messaging-pattern capacity defaults.
//
// A Config is built once with New (viper-backed: values may come from
// explicit options, environment overrides or a config file read by the
// embedding application) and never changes after a node is bound to it.
package config

import (
	liberr "github.com/sabouaram/zeroipc/errors"
	libdur "github.com/sabouaram/zeroipc/duration"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// DefaultDomain is the domain used when none is configured.
const DefaultDomain = "default"

// MaxDomainLen bounds the domain prefix length in bytes.
const MaxDomainLen = 32

// Config is the immutable configuration view handed to nodes, services
// and ports. All methods are safe for concurrent use.
type Config interface {
	// Domain returns the namespace prefix isolating this deployment.
	Domain() string
	// RootDir returns the directory holding services and nodes metadata.
	RootDir() string
	// ShmDir returns the directory backing shared-memory segments.
	ShmDir() string
	// ServiceDir returns the per-domain services directory.
	ServiceDir() string
	// NodeDir returns the per-domain nodes directory.
	NodeDir() string

	// Suffixes returns the configured resource name suffixes.
	Suffixes() Suffixes

	// CreationTimeout bounds service and segment initialization waits.
	CreationTimeout() libdur.Duration

	// Defaults returns the per-pattern capacity defaults.
	Defaults() Defaults

	// Paths derived from the layout. All take resource identifiers as
	// their hex string form.
	StaticConfigPath(sid string) string
	CreatorLockPath(sid string) string
	ServiceEntryDir(sid string) string
	DynamicSegmentName(sid string) string
	DataSegmentName(sid, portId string, generation uint32) string
	ConnSegmentName(sid, producer, consumer string) string
	RequestQueueName(sid, server string) string
	EventConnPath(sid, listener string) string
	MonitorPath(nid string) string
	NodeInfoPath(nid string) string
	CleanupTokenPath(nid string) string
	NodeEntryDir(nid string) string
	ServiceTagPath(nid, sid string) string
}

// Suffixes holds the configurable suffix strings appended to persistent
// resource names.
type Suffixes struct {
	ServiceDirectory string `mapstructure:"service_directory" validate:"required"`
	DataSegment      string `mapstructure:"data_segment" validate:"required"`
	StaticConfig     string `mapstructure:"static_config" validate:"required"`
	DynamicConfig    string `mapstructure:"dynamic_config" validate:"required"`
	Connection       string `mapstructure:"connection" validate:"required"`
	EventConnection  string `mapstructure:"event_connection" validate:"required"`
	NodeMonitor      string `mapstructure:"node_monitor" validate:"required"`
	NodeStaticConfig string `mapstructure:"node_static_config" validate:"required"`
	NodeServiceTag   string `mapstructure:"node_service_tag" validate:"required"`
}

// PubSubDefaults carries the publish-subscribe capacity defaults.
type PubSubDefaults struct {
	MaxNodes                     uint32 `mapstructure:"max_nodes"`
	MaxPublishers                uint32 `mapstructure:"max_publishers"`
	MaxSubscribers               uint32 `mapstructure:"max_subscribers"`
	HistorySize                  uint32 `mapstructure:"history_size"`
	SubscriberMaxBufferSize      uint32 `mapstructure:"subscriber_max_buffer_size"`
	SubscriberMaxBorrowedSamples uint32 `mapstructure:"subscriber_max_borrowed_samples"`
	MaxLoanedSamples             uint32 `mapstructure:"max_loaned_samples"`
	EnableSafeOverflow           bool   `mapstructure:"enable_safe_overflow"`
}

// EventDefaults carries the event pattern capacity defaults.
type EventDefaults struct {
	MaxNodes      uint32          `mapstructure:"max_nodes"`
	MaxNotifiers  uint32          `mapstructure:"max_notifiers"`
	MaxListeners  uint32          `mapstructure:"max_listeners"`
	EventIdMax    uint32          `mapstructure:"event_id_max_value"`
	Deadline      libdur.Duration `mapstructure:"deadline"`
}

// ReqResDefaults carries the request-response capacity defaults.
type ReqResDefaults struct {
	MaxNodes                   uint32 `mapstructure:"max_nodes"`
	MaxClients                 uint32 `mapstructure:"max_clients"`
	MaxServers                 uint32 `mapstructure:"max_servers"`
	MaxActiveRequestsPerClient uint32 `mapstructure:"max_active_requests_per_client"`
	MaxResponseBufferSize      uint32 `mapstructure:"max_response_buffer_size"`
	MaxLoanedRequests          uint32 `mapstructure:"max_loaned_requests"`
	EnableSafeOverflowRequests bool   `mapstructure:"enable_safe_overflow_for_requests"`
	EnableSafeOverflowResponse bool   `mapstructure:"enable_safe_overflow_for_responses"`
	EnableFireAndForget        bool   `mapstructure:"enable_fire_and_forget"`
}

// Defaults groups the per-pattern defaults plus the shared allocation
// settings for growable payload segments.
type Defaults struct {
	PubSub PubSubDefaults `mapstructure:"publish_subscribe"`
	Event  EventDefaults  `mapstructure:"event"`
	ReqRes ReqResDefaults `mapstructure:"request_response"`

	MaxSliceLen      libsiz.Size `mapstructure:"max_slice_len"`
	SegmentChunkSize libsiz.Size `mapstructure:"segment_chunk_size"`
}

// New binds the given options (zero value accepted) against the defaults
// and environment overrides, validates the result and returns the
// immutable Config.
func New(opt Options) (Config, liberr.Error) {
	return newConfig(opt)
}
