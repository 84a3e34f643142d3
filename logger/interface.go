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


// Package logger provides the leveled logging used across this module.
//
// The logger is backed by logrus and exposes two integration points
// required by embedding applications:
//   - a host hook function receiving (level, origin, message) for every
//     entry, so the host can route entries into its own sink
//   - an environment-variable initializer reading ZeroIPCLogLevel and
//     mapping its value to a level, defaulting to Info
//
// Each subsystem creates its logger with New(origin); the origin tags
// every entry.
package logger

import (
	"os"

	loglvl "github.com/sabouaram/zeroipc/logger/level"
)

// ZeroIPCLogLevel is the environment variable read by LevelFromEnv.
const ZeroIPCLogLevel = "ZEROIPC_LOG_LEVEL"

// FuncLog is a function type that returns a Logger instance. This is used
// for dependency injection and lazy initialization of loggers.
type FuncLog func() Logger

// HookFunc is the host-provided sink invoked for every entry with the
// entry level, the origin of the logger and the formatted message.
type HookFunc func(lvl loglvl.Level, origin string, message string)

// Logger is the main interface for leveled logging operations.
type Logger interface {
	// SetLevel changes the minimal level of logged messages.
	SetLevel(lvl loglvl.Level)
	// GetLevel returns the minimal level of logged messages.
	GetLevel() loglvl.Level

	// SetHook registers the host-provided sink. A nil hook removes it.
	SetHook(fct HookFunc)

	// Clone duplicates the logger with a new origin, sharing level and hook.
	Clone(origin string) Logger

	// Trace adds an entry with TraceLevel to the logger.
	Trace(message string, args ...interface{})
	// Debug adds an entry with DebugLevel to the logger.
	Debug(message string, args ...interface{})
	// Info adds an entry with InfoLevel to the logger.
	Info(message string, args ...interface{})
	// Warning adds an entry with WarnLevel to the logger.
	Warning(message string, args ...interface{})
	// Error adds an entry with ErrorLevel to the logger.
	Error(message string, args ...interface{})
	// Fatal adds an entry with FatalLevel to the logger and stops the process.
	Fatal(message string, args ...interface{})

	// LogError adds an ErrorLevel entry for the given error if not nil.
	// Returns true when an entry was written.
	LogError(err error) bool
}

// New returns a Logger tagged with the given origin. The initial level is
// taken from the environment (see LevelFromEnv).
func New(origin string) Logger {
	return newLogger(origin, LevelFromEnv())
}

// LevelFromEnv reads the ZeroIPCLogLevel environment variable and returns
// the matching level, or InfoLevel when unset or unknown.
func LevelFromEnv() loglvl.Level {
	if v, ok := os.LookupEnv(ZeroIPCLogLevel); ok {
		return loglvl.Parse(v)
	}

	return loglvl.InfoLevel
}
