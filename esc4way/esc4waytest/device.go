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

// Package esc4waytest emulates a 4-way interface with ESCs attached, backed
// by in-memory flash, for tests that need a responder on the wire.
package esc4waytest

import (
	"bytes"
	"time"

	"github.com/robhaswell/bfctl/esc4way"
)

// FlashSize covers the whole 16-bit address space.
const FlashSize = 0x10000

// PageSize is the erase granularity used by PageErase.
const PageSize = 1024

// Transaction is one decoded request seen by the device.
type Transaction struct {
	Cmd     esc4way.Command
	Addr    uint16
	Payload []byte
}

// Device implements link.Stream.
type Device struct {
	Flash  []byte
	EEPROM []byte

	Name     string
	Channels int
	Mode     esc4way.InterfaceMode

	// Fault, when set, may reject a request with a non-OK ack before it is applied.
	Fault func(tx Transaction) esc4way.Ack
	// Tamper, when set, may alter a reply frame before it is read back.
	Tamper func(reply []byte) []byte

	Log     []Transaction
	Channel int
	Exited  bool

	timeout time.Duration
	pending []byte
}

// New returns a device with erased flash and four channels.
func New() *Device {
	d := &Device{
		Flash:    bytes.Repeat([]byte{0xFF}, FlashSize),
		EEPROM:   make([]byte, 1024),
		Name:     "m4wFCIntf",
		Channels: 4,
		Mode:     esc4way.ModeARMBLB,
		Channel:  -1,
	}
	return d
}

// Settings returns the settings page.
func (d *Device) Settings() []byte {
	r := esc4way.SettingsRegion
	return d.Flash[r.Addr : r.End()]
}

// Count returns how many logged transactions used cmd.
func (d *Device) Count(cmd esc4way.Command) int {
	n := 0
	for _, tx := range d.Log {
		if tx.Cmd == cmd {
			n++
		}
	}
	return n
}

// Writes returns the logged DeviceWrite transactions.
func (d *Device) Writes() []Transaction {
	var out []Transaction
	for _, tx := range d.Log {
		if tx.Cmd == esc4way.CmdDeviceWrite {
			out = append(out, tx)
		}
	}
	return out
}

// Write implements io.Writer. Each write must be one complete request frame.
func (d *Device) Write(p []byte) (int, error) {
	pkt, err := esc4way.DecodeRequest(p)
	if err != nil {
		var cmd esc4way.Command
		if len(p) > 1 {
			cmd = esc4way.Command(p[1])
		}
		d.reply(cmd, 0, nil, esc4way.AckInvalidCRC)
		return len(p), nil
	}
	tx := Transaction{Cmd: pkt.Cmd, Addr: pkt.Addr, Payload: pkt.Payload}
	d.Log = append(d.Log, tx)
	if d.Fault != nil {
		if ack := d.Fault(tx); ack != esc4way.AckOK {
			d.reply(pkt.Cmd, pkt.Addr, nil, ack)
			return len(p), nil
		}
	}
	out, ack := d.handle(tx)
	d.reply(pkt.Cmd, pkt.Addr, out, ack)
	return len(p), nil
}

// Read implements io.Reader; an empty queue reads as a timeout.
func (d *Device) Read(p []byte) (int, error) {
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// SetReadTimeout implements link.Stream.
func (d *Device) SetReadTimeout(t time.Duration) error {
	d.timeout = t
	return nil
}

func (d *Device) reply(cmd esc4way.Command, addr uint16, payload []byte, ack esc4way.Ack) {
	b, err := esc4way.EncodeReply(cmd, addr, payload, ack)
	if err != nil {
		panic(err)
	}
	if d.Tamper != nil {
		b = d.Tamper(b)
	}
	d.pending = append(d.pending, b...)
}

func span(addr uint16, n int) (int, int) {
	return int(addr), int(addr) + n
}

func readLen(p []byte) int {
	if len(p) == 0 || p[0] == 0 {
		return esc4way.MaxPayloadSize
	}
	return int(p[0])
}

func (d *Device) handle(tx Transaction) ([]byte, esc4way.Ack) {
	switch tx.Cmd {
	case esc4way.CmdInterfaceTestAlive, esc4way.CmdInterfaceSetMode:
		return nil, esc4way.AckOK
	case esc4way.CmdProtocolGetVersion:
		return []byte{108}, esc4way.AckOK
	case esc4way.CmdInterfaceGetVersion:
		return []byte{200, 6}, esc4way.AckOK
	case esc4way.CmdInterfaceGetName:
		return []byte(d.Name), esc4way.AckOK
	case esc4way.CmdInterfaceExit:
		d.Exited = true
		d.Channel = -1
		return nil, esc4way.AckOK
	case esc4way.CmdDeviceReset:
		if int(tx.Payload[0]) >= d.Channels {
			return nil, esc4way.AckInvalidChannel
		}
		return nil, esc4way.AckOK
	case esc4way.CmdDeviceInitFlash:
		ch := int(tx.Payload[0])
		if ch >= d.Channels {
			return nil, esc4way.AckInvalidChannel
		}
		d.Channel = ch
		return []byte{0x01, 0x1F, 0x06, byte(d.Mode)}, esc4way.AckOK
	case esc4way.CmdDeviceEraseAll:
		if d.Channel < 0 {
			return nil, esc4way.AckGeneralError
		}
		for i := range d.Flash {
			d.Flash[i] = 0xFF
		}
		return nil, esc4way.AckOK
	case esc4way.CmdDevicePageErase:
		if d.Channel < 0 {
			return nil, esc4way.AckGeneralError
		}
		lo := int(tx.Payload[0]) * PageSize
		for i := lo; i < lo+PageSize && i < len(d.Flash); i++ {
			d.Flash[i] = 0xFF
		}
		return nil, esc4way.AckOK
	case esc4way.CmdDeviceRead:
		return d.read(d.Flash, tx)
	case esc4way.CmdDeviceReadEEprom:
		return d.read(d.EEPROM, tx)
	case esc4way.CmdDeviceWrite:
		return d.write(d.Flash, tx)
	case esc4way.CmdDeviceWriteEEprom:
		return d.write(d.EEPROM, tx)
	case esc4way.CmdDeviceVerify:
		if d.Channel < 0 {
			return nil, esc4way.AckGeneralError
		}
		lo, hi := span(tx.Addr, len(tx.Payload))
		if hi > len(d.Flash) || !bytes.Equal(d.Flash[lo:hi], tx.Payload) {
			return nil, esc4way.AckVerifyError
		}
		return nil, esc4way.AckOK
	}
	return nil, esc4way.AckInvalidCmd
}

func (d *Device) read(mem []byte, tx Transaction) ([]byte, esc4way.Ack) {
	if d.Channel < 0 {
		return nil, esc4way.AckGeneralError
	}
	lo, hi := span(tx.Addr, readLen(tx.Payload))
	if hi > len(mem) {
		return nil, esc4way.AckInvalidParam
	}
	return append([]byte(nil), mem[lo:hi]...), esc4way.AckOK
}

func (d *Device) write(mem []byte, tx Transaction) ([]byte, esc4way.Ack) {
	if d.Channel < 0 {
		return nil, esc4way.AckGeneralError
	}
	lo, hi := span(tx.Addr, len(tx.Payload))
	if hi > len(mem) {
		return nil, esc4way.AckInvalidParam
	}
	copy(mem[lo:hi], tx.Payload)
	return nil, esc4way.AckOK
}
