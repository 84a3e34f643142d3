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


package duration

import (
	"strconv"
	"strings"
	"time"
)

func parseString(s string) (Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if s == "" || s == "0" {
		return 0, nil
	}

	var days int64

	if i := strings.IndexRune(s, 'd'); i > 0 {
		v, e := strconv.ParseInt(s[:i], 10, 64)
		if e != nil {
			return 0, e
		}

		days = v
		s = s[i+1:]
	}

	if s == "" {
		return Days(days), nil
	}

	v, e := time.ParseDuration(s)
	if e != nil {
		return 0, e
	}

	return Days(days) + Duration(v), nil
}

func (d Duration) format() string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder

	v := d

	if v >= Day {
		b.WriteString(strconv.FormatInt(int64(v/Day), 10))
		b.WriteRune('d')
		v = v % Day
	}

	if v != 0 || b.Len() == 0 {
		b.WriteString(v.Time().String())
	}

	return b.String()
}

// String returns the duration formatted with days notation.
func (d Duration) String() string {
	return d.format()
}
