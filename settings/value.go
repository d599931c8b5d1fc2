/*
Copyright © 2023 Rob Haswell <rob@haswell.co.uk>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package settings

import (
	"strconv"
)

// Kind tells how a Value should be read.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

// Value is a decoded settings field.
type Value struct {
	kind Kind
	i    int
	f    float64
	s    string
}

// Int returns an integer value.
func Int(v int) Value { return Value{kind: KindInt, i: v, f: float64(v)} }

// Float returns a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, i: int(v), f: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Int returns the value as an integer, truncating floats. Strings are 0;
// use a field's Codec to parse text.
func (v Value) Int() int {
	return v.i
}

// Float returns the value as a float. Strings are 0.
func (v Value) Float() float64 {
	return v.f
}

// String formats the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', 3, 64)
	}
	return strconv.Itoa(v.i)
}
