/*
MIT License

Copyright (c) 2018 Alberto Garcia Hierro <alberto@garciahierro.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package msp implements the MSPv2 request/response transport used to reach
// the flight controller.
package msp

import (
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/crc"
	"github.com/robhaswell/bfctl/link"
)

const (
	preambleSize = 3
	headerSize   = 5 // flags, cmd(2), size(2)
	crcSize      = 1

	// MaxFrameSize bounds both the request we build and the single reply read.
	MaxFrameSize = 256
	// MaxPayloadSize is the largest payload fitting in MaxFrameSize.
	MaxPayloadSize = MaxFrameSize - preambleSize - headerSize - crcSize

	preambleMarker = '$'
	preambleV2     = 'X'

	op = "msp"
)

// ErrPayloadTooLarge is returned when a request payload does not fit in a frame.
var ErrPayloadTooLarge = errors.New("msp: payload too large")

// ErrUnsupported is returned when the flight controller does not know a command.
var ErrUnsupported = errors.New("msp: command not supported")

// Frame is a decoded MSPv2 frame.
type Frame struct {
	Direction Direction
	Flags     byte
	Cmd       uint16
	Payload   []byte
}

// Byte returns the payload byte at idx, or 0 if out of range.
func (f *Frame) Byte(idx int) byte {
	if idx < 0 || idx >= len(f.Payload) {
		return 0
	}
	return f.Payload[idx]
}

// Encode builds a complete MSPv2 frame.
func Encode(dir Direction, cmd uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	buf := make([]byte, preambleSize+headerSize+len(payload)+crcSize)
	buf[0], buf[1], buf[2] = preambleMarker, preambleV2, byte(dir)
	hdr := buf[preambleSize:]
	hdr[0] = 0
	binary.LittleEndian.PutUint16(hdr[1:], cmd)
	binary.LittleEndian.PutUint16(hdr[3:], uint16(len(payload)))
	copy(hdr[headerSize:], payload)
	body := hdr[:headerSize+len(payload)]
	buf[len(buf)-1] = crc.CRC8(body, crc.MSPPoly)
	return buf, nil
}

// Decode validates a received frame: preamble marker, total length against
// the declared size, then checksum.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) == 0 || buf[0] != preambleMarker {
		return nil, link.Fail(op, link.ErrBadPreamble)
	}
	if len(buf) < preambleSize+headerSize+crcSize {
		return nil, link.Fail(op, link.ErrLengthMismatch)
	}
	hdr := buf[preambleSize:]
	size := int(binary.LittleEndian.Uint16(hdr[3:]))
	if len(buf) != preambleSize+headerSize+size+crcSize {
		return nil, link.Fail(op, link.ErrLengthMismatch)
	}
	body := hdr[:headerSize+size]
	if got, want := buf[len(buf)-1], crc.CRC8(body, crc.MSPPoly); got != want {
		glog.V(2).Infof("msp: reply crc 0x%02x, expected 0x%02x", got, want)
		return nil, link.Fail(op, link.ErrCRCMismatch)
	}
	return &Frame{
		Direction: Direction(buf[2]),
		Flags:     hdr[0],
		Cmd:       binary.LittleEndian.Uint16(hdr[1:]),
		Payload:   append([]byte(nil), body[headerSize:]...),
	}, nil
}

// MSP runs MSP transactions over a borrowed stream.
type MSP struct {
	stream link.Stream
}

// New returns an MSP transport on s.
func New(s link.Stream) *MSP {
	return &MSP{stream: s}
}

// Transact sends cmd with payload out and reads one reply. The reply payload
// is copied into in; when in is shorter than the reply the payload is
// truncated without error. It returns the number of bytes copied.
func (m *MSP) Transact(cmd uint16, out []byte, in []byte) (int, error) {
	f, err := m.Request(cmd, out)
	if err != nil {
		return 0, err
	}
	return copy(in, f.Payload), nil
}

// Request sends cmd with payload out and returns the full decoded reply.
func (m *MSP) Request(cmd uint16, out []byte) (*Frame, error) {
	if m.stream == nil {
		return nil, link.ErrNotConnected
	}
	req, err := Encode(ToFC, cmd, out)
	if err != nil {
		return nil, err
	}
	if err := link.WriteAll(m.stream, req); err != nil {
		return nil, link.Fail(op, err)
	}

	buf := make([]byte, MaxFrameSize)
	n, err := link.ReadAvailable(m.stream, buf)
	if err != nil {
		return nil, link.Fail(op, err)
	}
	glog.V(2).Infof("msp: cmd %d sent %d bytes, received %d", cmd, len(req), n)
	f, err := Decode(buf[:n])
	if err != nil {
		return nil, errors.Wrapf(err, "cmd %d", cmd)
	}
	if f.Direction == Unsupported {
		return nil, errors.Wrapf(ErrUnsupported, "cmd %d", cmd)
	}
	return f, nil
}
