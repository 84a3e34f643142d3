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


package size

import (
	"fmt"
	"strconv"
	"strings"
)

func parseString(s string) (Size, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var mul = SizeByte

	switch {
	case strings.HasSuffix(s, "K"):
		mul = SizeKilo
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mul = SizeMega
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mul = SizeGiga
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		mul = SizeTera
		s = strings.TrimSuffix(s, "T")
	}

	v, e := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if e != nil {
		return 0, e
	}

	return Size(v) * mul, nil
}

// String returns the size formatted with the largest exact binary unit.
func (s Size) String() string {
	switch {
	case s >= SizeTera && s%SizeTera == 0:
		return fmt.Sprintf("%dTB", s/SizeTera)
	case s >= SizeGiga && s%SizeGiga == 0:
		return fmt.Sprintf("%dGB", s/SizeGiga)
	case s >= SizeMega && s%SizeMega == 0:
		return fmt.Sprintf("%dMB", s/SizeMega)
	case s >= SizeKilo && s%SizeKilo == 0:
		return fmt.Sprintf("%dKB", s/SizeKilo)
	}

	return strconv.FormatUint(uint64(s), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(p []byte) error {
	v, e := parseString(string(p))
	if e != nil {
		return e
	}

	*s = v
	return nil
}
