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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Codec converts between raw field bytes and displayed values.
type Codec interface {
	Kind() Kind
	Decode(raw []byte) Value
	Encode(v Value, raw []byte) error
	// Parse reads user input as a value of the codec's kind.
	Parse(s string) (Value, error)
}

func parseInt(s string) (Value, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return Value{}, errors.Wrapf(ErrInvalidValue, "%q is not an integer", s)
	}
	return Int(int(n)), nil
}

// Unsigned stores the value as a little-endian unsigned integer.
type Unsigned struct{}

func (Unsigned) Kind() Kind { return KindInt }

func (Unsigned) Decode(raw []byte) Value {
	var b [8]byte
	copy(b[:], raw)
	return Int(int(binary.LittleEndian.Uint64(b[:])))
}

func (Unsigned) Parse(s string) (Value, error) {
	v, err := parseInt(s)
	if err == nil && v.Int() < 0 {
		return Value{}, errors.Wrapf(ErrInvalidValue, "%q is negative", s)
	}
	return v, err
}

func (Unsigned) Encode(v Value, raw []byte) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v.Int()))
	copy(raw, b[:len(raw)])
	return nil
}

// Linear displays raw*Scale+Offset.
type Linear struct {
	Scale  int
	Offset int
}

func (Linear) Kind() Kind { return KindInt }

func (l Linear) Decode(raw []byte) Value {
	return Int(int(raw[0])*l.Scale + l.Offset)
}

func (Linear) Parse(s string) (Value, error) {
	return parseInt(s)
}

func (l Linear) Encode(v Value, raw []byte) error {
	raw[0] = byte((v.Int() - l.Offset) / l.Scale)
	return nil
}

// Scaled displays raw*Scale as a float.
type Scaled struct {
	Scale float64
}

func (Scaled) Kind() Kind { return KindFloat }

func (s Scaled) Decode(raw []byte) Value {
	return Float(float64(raw[0]) * s.Scale)
}

func (Scaled) Parse(s string) (Value, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, errors.Wrapf(ErrInvalidValue, "%q is not a number", s)
	}
	return Float(f), nil
}

func (s Scaled) Encode(v Value, raw []byte) error {
	raw[0] = byte(int(v.Float() / s.Scale))
	return nil
}

// Text is a fixed length, zero padded ASCII string.
type Text struct{}

func (Text) Kind() Kind { return KindString }

func (Text) Decode(raw []byte) Value {
	return String(string(bytes.TrimRight(raw, "\x00")))
}

// Parse keeps s verbatim.
func (Text) Parse(s string) (Value, error) {
	return String(s), nil
}

func (Text) Encode(v Value, raw []byte) error {
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, v.String())
	return nil
}

// Hex shows opaque bytes as a hex string.
type Hex struct{}

func (Hex) Kind() Kind { return KindString }

func (Hex) Decode(raw []byte) Value {
	return String(hex.EncodeToString(raw))
}

// Parse accepts an even number of hex digits with an optional 0x prefix.
func (Hex) Parse(s string) (Value, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Value{}, err
	}
	return String(hex.EncodeToString(b)), nil
}

func decodeHex(s string) ([]byte, error) {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		t = t[2:]
	}
	b, err := hex.DecodeString(t)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%q is not hex: %v", s, err)
	}
	return b, nil
}

func (Hex) Encode(v Value, raw []byte) error {
	b, err := decodeHex(v.String())
	if err != nil {
		return err
	}
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, b)
	return nil
}

// Bounds are the documented limits of a field. They are informational: the
// cache does not enforce them.
type Bounds struct {
	Min, Max int
	// Off is the raw value meaning "disabled", or -1.
	Off int
}

// IsBool reports whether the field is an on/off switch.
func (b *Bounds) IsBool() bool {
	return b != nil && b.Min == 0 && b.Max == 1
}

// Field describes one named field of the settings block.
type Field struct {
	Name   string
	Desc   string
	Offset int
	Width  int
	Codec  Codec
	Bounds *Bounds
	Units  string
}

func (f *Field) raw(b *Block) []byte {
	return b[f.Offset : f.Offset+f.Width]
}

func u8(name, desc string, off int) Field {
	return Field{Name: name, Desc: desc, Offset: off, Width: 1, Codec: Unsigned{}}
}

func ranged(name, desc string, off, lo, hi, disabled int) Field {
	f := u8(name, desc, off)
	f.Bounds = &Bounds{Min: lo, Max: hi, Off: disabled}
	return f
}

func onOff(name, desc string, off int) Field {
	return ranged(name, desc, off, 0, 1, 0)
}

func linear(name, desc string, off, scale, offset int) Field {
	f := u8(name, desc, off)
	f.Codec = Linear{Scale: scale, Offset: offset}
	return f
}

// Field offsets the flashing sequence relies on.
const (
	OffsetMarker       = 0
	OffsetLayout       = 1
	OffsetVersionMajor = 3
	OffsetVersionMinor = 4
	OffsetName         = 5
	NameSize           = 12

	OffsetTune = 48
	TuneSize   = 128
)

var fields = []Field{
	u8("head", "Boot marker", OffsetMarker),
	u8("layout", "Layout ver", OffsetLayout),
	u8("major", "Firmware ver major", OffsetVersionMajor),
	u8("minor", "Firmware ver minor", OffsetVersionMinor),
	{Name: "name", Desc: "Device name", Offset: OffsetName, Width: NameSize, Codec: Text{}},
	onOff("dir", "Reverse direction", 17),
	onOff("bidir", "Bi direction / 3D", 18),
	onOff("sin", "Sinusoidal startup", 19),
	onOff("cpwm", "Complementary PWM", 20),
	onOff("vpwm", "Variable PWM", 21),
	onOff("rprotect", "Rotor protect", 22),
	{Name: "alevel", Desc: "Advance level", Offset: 23, Width: 1, Codec: Scaled{Scale: 7.5},
		Bounds: &Bounds{Min: 0, Max: 42, Off: -1}, Units: "°"},
	func() Field { f := ranged("tcycle", "Timer cycle", 24, 8, 48, -1); f.Units = "kHz"; return f }(),
	ranged("dcycle", "Duty cycle", 25, 50, 150, -1),
	linear("kv", "KV", 26, 40, 20),
	u8("poles", "Poles", 27),
	onOff("bstop", "Brake on stop", 28),
	onOff("stall", "Stall protect", 29),
	ranged("volume", "Sound volume", 30, 0, 11, 0),
	onOff("tlm", "Telemetry", 31),
	linear("slow", "Servo low", 32, 2, 750),
	linear("shigh", "Servo high", 33, 2, 1750),
	linear("smid", "Servo neutral", 34, 1, 1374),
	u8("dband", "Dead band", 35),
	onOff("lvolt", "Low volt protect", 36),
	linear("cvolt", "Cell low volt", 37, 1, 250),
	onOff("rcrev", "RC car reverse", 38),
	onOff("hall", "Hall sensor", 39),
	ranged("srange", "Sine range", 40, 5, 25, 0),
	ranged("dbrake", "Drag brake", 41, 1, 10, 0),
	ranged("mbrake", "Driving brake", 42, 1, 9, 0),
	ranged("temp", "Temperature limit", 43, 70, 140, 141),
	func() Field {
		f := ranged("curr", "Current limit", 44, 0, 99, 0)
		f.Codec = Linear{Scale: 2}
		return f
	}(),
	ranged("spower", "Sine power", 45, 1, 10, 0),
	ranged("proto", "Input protocol", 46, 0, 9, -1),
	ranged("dtime", "Dead time", 47, 0, 255, -1),
	onOff("tune", "Startup tune", OffsetTune),
	u8("tunea", "Tune param A", 49),
	u8("tuneb", "Tune param B", 50),
	u8("tunec", "Tune param C", 51),
	{Name: "tdata", Desc: "Tune data", Offset: 52, Width: OffsetTune + TuneSize - 52, Codec: Hex{}},
}

var byName = func() map[string]*Field {
	m := make(map[string]*Field, len(fields))
	for i := range fields {
		m[fields[i].Name] = &fields[i]
	}
	return m
}()

// Fields returns the field table in offset order.
func Fields() []Field {
	return append([]Field(nil), fields...)
}

// Lookup returns the field called name.
func Lookup(name string) (*Field, error) {
	f, ok := byName[name]
	if !ok {
		return nil, &UnknownFieldError{Name: name}
	}
	return f, nil
}
