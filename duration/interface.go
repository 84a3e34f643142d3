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


// Package duration provides an extended duration type with days support
// and multiple encoding formats, used by configuration fields such as
// deadlines and creation timeouts.
//
// The type wraps time.Duration and adds:
//   - days notation in parsing and formatting (e.g. "1d12h")
//   - text, JSON and CBOR encodings
//   - helper constructors and truncation
package duration

import (
	"time"
)

// Duration is a time.Duration with days-aware parsing and formatting.
type Duration time.Duration

// Parse parses a string representing a duration and returns a Duration.
// The string follows time.ParseDuration syntax extended with a 'd' unit
// for days, e.g. "5d23h15m13s".
func Parse(s string) (Duration, error) {
	return parseString(s)
}

// ParseByte parses a byte slice representing a duration.
func ParseByte(p []byte) (Duration, error) {
	return parseString(string(p))
}

// Days returns a Duration of i days.
func Days(i int64) Duration {
	return Duration(i) * 24 * Hour
}

// Hours returns a Duration of i hours.
func Hours(i int64) Duration {
	return Duration(i) * Hour
}

// Minutes returns a Duration of i minutes.
func Minutes(i int64) Duration {
	return Duration(i) * Minute
}

// Seconds returns a Duration of i seconds.
func Seconds(i int64) Duration {
	return Duration(i) * Second
}

// Millis returns a Duration of i milliseconds.
func Millis(i int64) Duration {
	return Duration(i) * Millisecond
}

const (
	Nanosecond  = Duration(time.Nanosecond)
	Microsecond = Duration(time.Microsecond)
	Millisecond = Duration(time.Millisecond)
	Second      = Duration(time.Second)
	Minute      = Duration(time.Minute)
	Hour        = Duration(time.Hour)
	Day         = 24 * Hour
)

// Time returns the duration as a standard time.Duration.
func (d Duration) Time() time.Duration {
	return time.Duration(d)
}

// IsZero reports whether the duration is zero.
func (d Duration) IsZero() bool {
	return d == 0
}

// Truncate returns the result of rounding d toward zero to a multiple
// of m.
func (d Duration) Truncate(m Duration) Duration {
	return Duration(d.Time().Truncate(m.Time()))
}
