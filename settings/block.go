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

// Package settings mirrors the ESC settings page: a 256-byte flash image
// split into named fields, with a cache that writes every edit straight back
// to the device.
package settings

import (
	"fmt"

	"github.com/pkg/errors"
)

// Size is the size of the settings page.
const Size = 256

// Marker values of the first settings byte.
type Marker byte

const (
	// MarkerInvalid makes the bootloader stay resident on power up.
	MarkerInvalid Marker = 0
	// MarkerValid certifies the application firmware as bootable.
	MarkerValid Marker = 1
)

// ErrUnknownField is wrapped by UnknownFieldError.
var ErrUnknownField = errors.New("settings: unknown field")

// ErrInvalidValue is returned when input does not parse as the field's kind.
var ErrInvalidValue = errors.New("settings: invalid value")

// UnknownFieldError names a field missing from the table.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownField, e.Name)
}

// Unwrap lets errors.Is match ErrUnknownField.
func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

// Block is one raw settings page. Bytes not covered by a field are kept as is.
type Block [Size]byte

// Get decodes the named field.
func (b *Block) Get(name string) (Value, error) {
	f, err := Lookup(name)
	if err != nil {
		return Value{}, err
	}
	return f.Codec.Decode(f.raw(b)), nil
}

// Set encodes v into the named field. String values are parsed by the
// field's codec first. No range check is applied.
func (b *Block) Set(name string, v Value) error {
	f, err := Lookup(name)
	if err != nil {
		return err
	}
	if v.Kind() == KindString {
		if v, err = f.Codec.Parse(v.String()); err != nil {
			return errors.Wrapf(err, "settings: %s", name)
		}
	}
	return errors.Wrapf(f.Codec.Encode(v, f.raw(b)), "settings: %s", name)
}

// SetString parses s with the field's codec and stores it.
func (b *Block) SetString(name, s string) error {
	return b.Set(name, String(s))
}

// Raw returns the raw bytes of the named field.
func (b *Block) Raw(name string) ([]byte, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), f.raw(b)...), nil
}

// Marker returns the boot marker.
func (b *Block) Marker() Marker {
	return Marker(b[OffsetMarker])
}

// SetMarker sets the boot marker.
func (b *Block) SetMarker(m Marker) {
	b[OffsetMarker] = byte(m)
}

// DeviceName returns the device name without padding.
func (b *Block) DeviceName() string {
	v, _ := b.Get("name")
	return v.String()
}

// SetDeviceName stores s zero padded, truncated to NameSize bytes.
func (b *Block) SetDeviceName(s string) {
	_ = b.Set("name", String(s))
}

// Version returns the firmware version.
func (b *Block) Version() (major, minor uint8) {
	return b[OffsetVersionMajor], b[OffsetVersionMinor]
}

// SetVersion sets the firmware version.
func (b *Block) SetVersion(major, minor uint8) {
	b[OffsetVersionMajor], b[OffsetVersionMinor] = major, minor
}
