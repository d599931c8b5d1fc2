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

// Package esc4way speaks the BLHeli 4-way interface protocol that the flight
// controller exposes in ESC passthrough mode, giving access to the ESC
// bootloader and its flash.
package esc4way

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/crc"
	"github.com/robhaswell/bfctl/link"
)

// Frame escape bytes.
const (
	RemoteEscape byte = 0x2E // '.'
	LocalEscape  byte = 0x2F // '/'
)

const (
	// HeaderSize is escape, command, address(2) and length.
	HeaderSize = 5
	// MaxPayloadSize is the largest payload; a length byte of 0 stands for it.
	MaxPayloadSize = 256

	crcSize = 2
	ackSize = 1

	op = "esc4way"
)

// Command is a 4-way interface command code.
type Command byte

// Interface commands.
const (
	CmdInterfaceTestAlive  Command = 0x30
	CmdProtocolGetVersion  Command = 0x31
	CmdInterfaceGetName    Command = 0x32
	CmdInterfaceGetVersion Command = 0x33
	CmdInterfaceExit       Command = 0x34
	CmdDeviceReset         Command = 0x35
	CmdDeviceInitFlash     Command = 0x37
	CmdDeviceEraseAll      Command = 0x38
	CmdDevicePageErase     Command = 0x39
	CmdDeviceRead          Command = 0x3A
	CmdDeviceWrite         Command = 0x3B
	CmdDeviceC2CKLow       Command = 0x3C
	CmdDeviceReadEEprom    Command = 0x3D
	CmdDeviceWriteEEprom   Command = 0x3E
	CmdInterfaceSetMode    Command = 0x3F
	CmdDeviceVerify        Command = 0x40
)

var commandNames = map[Command]string{
	CmdInterfaceTestAlive:  "test alive",
	CmdProtocolGetVersion:  "protocol version",
	CmdInterfaceGetName:    "interface name",
	CmdInterfaceGetVersion: "interface version",
	CmdInterfaceExit:       "exit",
	CmdDeviceReset:         "reset",
	CmdDeviceInitFlash:     "init flash",
	CmdDeviceEraseAll:      "erase all",
	CmdDevicePageErase:     "page erase",
	CmdDeviceRead:          "read",
	CmdDeviceWrite:         "write",
	CmdDeviceC2CKLow:       "c2ck low",
	CmdDeviceReadEEprom:    "read eeprom",
	CmdDeviceWriteEEprom:   "write eeprom",
	CmdInterfaceSetMode:    "set mode",
	CmdDeviceVerify:        "verify",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("cmd 0x%02x", byte(c))
}

// Ack is the acknowledgement byte closing every reply.
type Ack byte

const (
	AckOK             Ack = 0x00
	AckInvalidCmd     Ack = 0x02
	AckInvalidCRC     Ack = 0x03
	AckVerifyError    Ack = 0x04
	AckInvalidChannel Ack = 0x08
	AckInvalidParam   Ack = 0x09
	AckGeneralError   Ack = 0x0F
)

func (a Ack) String() string {
	switch a {
	case AckOK:
		return "OK"
	case AckInvalidCmd:
		return "invalid CMD"
	case AckInvalidCRC:
		return "invalid CRC"
	case AckVerifyError:
		return "verify error"
	case AckInvalidChannel:
		return "invalid channel"
	case AckInvalidParam:
		return "invalid param"
	case AckGeneralError:
		return "general error"
	default:
		return "unknown"
	}
}

// Packet is a decoded 4-way frame. Ack is only meaningful on replies.
type Packet struct {
	Escape  byte
	Cmd     Command
	Addr    uint16
	Payload []byte
	Ack     Ack
}

// lengthByte encodes a payload length, 256 travelling as 0.
func lengthByte(n int) byte {
	return byte(n)
}

// payloadLen decodes a length byte.
func payloadLen(b byte) int {
	if b == 0 {
		return MaxPayloadSize
	}
	return int(b)
}

func encode(escape byte, cmd Command, addr uint16, payload []byte, ack *Ack) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	if len(payload) == 0 {
		payload = []byte{0}
	}
	n := HeaderSize + len(payload)
	if ack != nil {
		n += ackSize
	}
	buf := make([]byte, n, n+crcSize)
	buf[0], buf[1] = escape, byte(cmd)
	binary.BigEndian.PutUint16(buf[2:], addr)
	buf[4] = lengthByte(len(payload))
	copy(buf[HeaderSize:], payload)
	if ack != nil {
		buf[n-1] = byte(*ack)
	}
	sum := crc.CRC16XModem(buf, 0)
	return append(buf, byte(sum>>8), byte(sum)), nil
}

// EncodeRequest builds a host request frame. An empty payload is sent as a
// single zero parameter byte since a zero length byte means 256.
func EncodeRequest(cmd Command, addr uint16, payload []byte) ([]byte, error) {
	return encode(LocalEscape, cmd, addr, payload, nil)
}

// EncodeReply builds an interface reply frame.
func EncodeReply(cmd Command, addr uint16, payload []byte, ack Ack) ([]byte, error) {
	return encode(RemoteEscape, cmd, addr, payload, &ack)
}

// DecodeRequest parses and checks a complete request frame.
func DecodeRequest(buf []byte) (*Packet, error) {
	if len(buf) < HeaderSize+crcSize {
		return nil, link.Fail(op, link.ErrLengthMismatch)
	}
	n := payloadLen(buf[4])
	if len(buf) != HeaderSize+n+crcSize {
		return nil, link.Fail(op, link.ErrLengthMismatch)
	}
	if err := checkCRC(buf); err != nil {
		return nil, err
	}
	return &Packet{
		Escape:  buf[0],
		Cmd:     Command(buf[1]),
		Addr:    binary.BigEndian.Uint16(buf[2:]),
		Payload: append([]byte(nil), buf[HeaderSize:HeaderSize+n]...),
	}, nil
}

func checkCRC(frame []byte) error {
	body := frame[:len(frame)-crcSize]
	got := binary.BigEndian.Uint16(frame[len(body):])
	if want := crc.CRC16XModem(body, 0); got != want {
		return link.Fail(op, errors.Wrapf(link.ErrCRCMismatch, "got %04x, expected %04x", got, want))
	}
	return nil
}
