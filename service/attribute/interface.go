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


// Package attribute provides the ordered key/value attribute sets frozen
// into a service at creation, the specifier used by creators to define
// them and the verifier used by openers to state requirements.
//
// Keys may repeat; iteration preserves insertion order. Compatibility is
// order-insensitive: a requirement on a key is satisfied when the
// service defines at least one value for it, a requirement on a pair is
// satisfied when the service defines exactly that pair.
package attribute

// Attribute is one key/value pair.
type Attribute struct {
	Key   string `cbor:"1,keyasint" json:"key"`
	Value string `cbor:"2,keyasint" json:"value"`
}

// Set is the ordered attribute list of a service.
type Set struct {
	attrs []Attribute
}

// NewSet builds a set from the given attributes, preserving order.
func NewSet(attrs ...Attribute) Set {
	return Set{attrs: append([]Attribute(nil), attrs...)}
}

// Len returns the number of attributes.
func (s Set) Len() int {
	return len(s.attrs)
}

// At returns the attribute at position i in insertion order.
func (s Set) At(i int) Attribute {
	return s.attrs[i]
}

// Walk invokes fct for every attribute in insertion order until fct
// returns false.
func (s Set) Walk(fct func(Attribute) bool) {
	for _, a := range s.attrs {
		if !fct(a) {
			return
		}
	}
}

// Values returns every value defined for the key, in insertion order.
func (s Set) Values(key string) []string {
	var res []string

	for _, a := range s.attrs {
		if a.Key == key {
			res = append(res, a.Value)
		}
	}

	return res
}

// HasKey reports whether at least one value is defined for the key.
func (s Set) HasKey(key string) bool {
	for _, a := range s.attrs {
		if a.Key == key {
			return true
		}
	}

	return false
}

// Has reports whether the exact pair is defined.
func (s Set) Has(key, value string) bool {
	for _, a := range s.attrs {
		if a.Key == key && a.Value == value {
			return true
		}
	}

	return false
}

// Specifier accumulates attribute definitions at service creation. The
// same key may be defined several times.
type Specifier struct {
	set Set
}

// NewSpecifier returns an empty specifier.
func NewSpecifier() *Specifier {
	return &Specifier{}
}

// Define appends one pair and returns the specifier for chaining.
func (sp *Specifier) Define(key, value string) *Specifier {
	sp.set.attrs = append(sp.set.attrs, Attribute{Key: key, Value: value})
	return sp
}

// Set returns the accumulated attribute set.
func (sp *Specifier) Set() Set {
	return sp.set
}

// Requirement is one open-time requirement.
type Requirement struct {
	Key      string
	Value    string
	KeyOnly  bool
}

// Verifier accumulates open-time requirements against a service's
// attribute set.
type Verifier struct {
	reqs []Requirement
}

// NewVerifier returns an empty verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Require demands that the service defines the exact pair.
func (v *Verifier) Require(key, value string) *Verifier {
	v.reqs = append(v.reqs, Requirement{Key: key, Value: value})
	return v
}

// RequireKey demands that the service defines at least one value for
// the key.
func (v *Verifier) RequireKey(key string) *Verifier {
	v.reqs = append(v.reqs, Requirement{Key: key, KeyOnly: true})
	return v
}

// Verify checks every requirement against the set. It returns the first
// unsatisfied requirement and false, or a zero requirement and true.
func (v *Verifier) Verify(s Set) (Requirement, bool) {
	for _, r := range v.reqs {
		if r.KeyOnly {
			if !s.HasKey(r.Key) {
				return r, false
			}
			continue
		}

		if !s.Has(r.Key, r.Value) {
			return r, false
		}
	}

	return Requirement{}, true
}
