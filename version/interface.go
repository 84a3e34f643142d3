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


// Package version exposes the library version triple and the
// compatibility rule applied when opening persisted resources written by
// another library version: equal major versions are compatible, any other
// combination is rejected.
package version

import (
	"fmt"

	hscvrs "github.com/hashicorp/go-version"
)

const (
	// Major is the current major version of the library.
	Major uint16 = 0
	// Minor is the current minor version of the library.
	Minor uint16 = 5
	// Patch is the current patch version of the library.
	Patch uint16 = 0
)

// Info is the version triple embedded in every persisted artifact.
type Info struct {
	Major uint16 `cbor:"1,keyasint" json:"major"`
	Minor uint16 `cbor:"2,keyasint" json:"minor"`
	Patch uint16 `cbor:"3,keyasint" json:"patch"`
}

// Current returns the version triple of this library build.
func Current() Info {
	return Info{Major: Major, Minor: Minor, Patch: Patch}
}

// String returns the triple in semver notation.
func (i Info) String() string {
	return fmt.Sprintf("%d.%d.%d", i.Major, i.Minor, i.Patch)
}

// IsCompatible reports whether an artifact written by version i may be
// read by the current library.
func (i Info) IsCompatible() bool {
	return i.Major == Major
}

// Parse parses a semver string into an Info triple.
func Parse(s string) (Info, error) {
	v, e := hscvrs.NewSemver(s)
	if e != nil {
		return Info{}, e
	}

	seg := v.Segments()

	return Info{
		Major: uint16(seg[0]),
		Minor: uint16(seg[1]),
		Patch: uint16(seg[2]),
	}, nil
}

// Compare returns -1, 0 or 1 comparing i to o with semver precedence.
func (i Info) Compare(o Info) int {
	a, _ := hscvrs.NewSemver(i.String())
	b, _ := hscvrs.NewSemver(o.String())
	return a.Compare(b)
}
