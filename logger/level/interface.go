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


// Package level defines the severity levels used by the logger package
// and their conversions from and to strings and logrus levels.
package level

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a log message. Lower values are more severe.
type Level uint8

const (
	// PanicLevel is the highest severity. The logger panics after the entry.
	PanicLevel Level = iota
	// FatalLevel logs the entry and stops the process.
	FatalLevel
	// ErrorLevel is used for errors that should definitely be noted.
	ErrorLevel
	// WarnLevel is used for non-critical entries that deserve eyes.
	WarnLevel
	// InfoLevel is the default level, used for general operational entries.
	InfoLevel
	// DebugLevel is used for verbose development logging.
	DebugLevel
	// TraceLevel is used for finer-grained logging than DebugLevel.
	TraceLevel
	// NilLevel disables logging.
	NilLevel
)

// Parse returns the Level matching the given string, case insensitively.
// Unknown values map to InfoLevel.
func Parse(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "panic":
		return PanicLevel
	case "fatal":
		return FatalLevel
	case "error":
		return ErrorLevel
	case "warn", "warning":
		return WarnLevel
	case "info":
		return InfoLevel
	case "debug":
		return DebugLevel
	case "trace":
		return TraceLevel
	case "nil", "none", "off":
		return NilLevel
	}

	return InfoLevel
}

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case PanicLevel:
		return "panic"
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warning"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case TraceLevel:
		return "trace"
	}

	return ""
}

// Int returns the level as an int.
func (l Level) Int() int {
	return int(l)
}

// Uint8 returns the level as a uint8.
func (l Level) Uint8() uint8 {
	return uint8(l)
}

// Logrus returns the matching logrus level. NilLevel maps to
// logrus.PanicLevel as logrus has no disabled level.
func (l Level) Logrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	case TraceLevel:
		return logrus.TraceLevel
	}

	return logrus.PanicLevel
}
