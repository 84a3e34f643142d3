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


package attribute

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// MarshalCBOR encodes the set as the plain attribute list.
func (s Set) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.attrs)
}

// UnmarshalCBOR decodes the set from the plain attribute list.
func (s *Set) UnmarshalCBOR(p []byte) error {
	return cbor.Unmarshal(p, &s.attrs)
}

// MarshalJSON encodes the set as the plain attribute list.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.attrs)
}

// UnmarshalJSON decodes the set from the plain attribute list.
func (s *Set) UnmarshalJSON(p []byte) error {
	return json.Unmarshal(p, &s.attrs)
}
