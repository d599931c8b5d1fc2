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
package esc4way

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/escboot"
	"github.com/robhaswell/bfctl/link"
)

// InterfaceMode is the programming mode the interface uses for a channel.
type InterfaceMode byte

const (
	ModeC2 InterfaceMode = iota
	ModeSiLabsBLB
	ModeAtmelBLB
	ModeSK
	ModeARMBLB
)

func (m InterfaceMode) String() string {
	switch m {
	case ModeC2:
		return "C2"
	case ModeSiLabsBLB:
		return "SiLabs BLB"
	case ModeAtmelBLB:
		return "Atmel BLB"
	case ModeSK:
		return "SK"
	case ModeARMBLB:
		return "ARM BLB"
	}
	return "unknown"
}

// Arch maps the interface mode to the bootloader command set it implies.
func (m InterfaceMode) Arch() escboot.Arch {
	if m == ModeARMBLB {
		return escboot.ArchARM
	}
	return escboot.ArchSiLabs
}

// DeviceInfo is the reply to DeviceInitFlash.
type DeviceInfo struct {
	Raw  [4]byte
	Mode InterfaceMode
}

// Connected reports whether the interface found a device on the channel.
func (d DeviceInfo) Connected() bool {
	return d.Raw[0] != 0
}

// ESC runs 4-way transactions over a borrowed stream.
type ESC struct {
	stream link.Stream
}

// New returns an ESC transport on s.
func New(s link.Stream) *ESC {
	return &ESC{stream: s}
}

// Send issues one request and reads its reply. The reply is read in two
// phases: the fixed header first, then the declared payload plus ack and CRC.
// A non-OK ack yields the payload together with a *CommandError.
func (e *ESC) Send(cmd Command, addr uint16, out []byte) ([]byte, error) {
	if e.stream == nil {
		return nil, link.ErrNotConnected
	}
	req, err := EncodeRequest(cmd, addr, out)
	if err != nil {
		return nil, err
	}
	if err := link.WriteAll(e.stream, req); err != nil {
		return nil, link.Fail(op, err)
	}

	frame := make([]byte, HeaderSize, HeaderSize+MaxPayloadSize+ackSize+crcSize)
	if _, err := link.ReadExactly(e.stream, frame); err != nil {
		return nil, link.Fail(op, errors.Wrapf(err, "%s reply header", cmd))
	}
	n := payloadLen(frame[4])
	frame = frame[:HeaderSize+n+ackSize+crcSize]
	if _, err := link.ReadExactly(e.stream, frame[HeaderSize:]); err != nil {
		return nil, link.Fail(op, errors.Wrapf(err, "%s reply body", cmd))
	}
	if err := checkCRC(frame); err != nil {
		return nil, err
	}

	payload := frame[HeaderSize : HeaderSize+n]
	ack := Ack(frame[HeaderSize+n])
	glog.V(2).Infof("esc4way: %s addr 0x%04x out %d, in %d, ack %s", cmd, addr, len(req)-HeaderSize-crcSize, n, ack)
	if ack != AckOK {
		return payload, &CommandError{Cmd: cmd, Ack: ack}
	}
	return payload, nil
}

// TestAlive checks the interface is still in 4-way mode.
func (e *ESC) TestAlive() error {
	_, err := e.Send(CmdInterfaceTestAlive, 0, nil)
	return err
}

// ProtocolVersion returns the 4-way protocol version.
func (e *ESC) ProtocolVersion() (byte, error) {
	p, err := e.Send(CmdProtocolGetVersion, 0, nil)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// InterfaceVersion returns the interface firmware version.
func (e *ESC) InterfaceVersion() (uint16, error) {
	p, err := e.Send(CmdInterfaceGetVersion, 0, nil)
	if err != nil {
		return 0, err
	}
	if len(p) < 2 {
		return uint16(p[0]), nil
	}
	return binary.BigEndian.Uint16(p), nil
}

// InterfaceName returns the interface name string.
func (e *ESC) InterfaceName() (string, error) {
	p, err := e.Send(CmdInterfaceGetName, 0, nil)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(p, "\x00")), nil
}

// SelectChannel binds the session to one ESC and initialises flash access.
func (e *ESC) SelectChannel(ch uint8) (DeviceInfo, error) {
	var info DeviceInfo
	p, err := e.Send(CmdDeviceInitFlash, 0, []byte{ch})
	if err != nil {
		return info, err
	}
	copy(info.Raw[:], p)
	info.Mode = InterfaceMode(info.Raw[3])
	glog.V(1).Infof("esc4way: channel %d mode %s info % x", ch, info.Mode, info.Raw)
	return info, nil
}

// Reset restarts the ESC on ch.
func (e *ESC) Reset(ch uint8) error {
	_, err := e.Send(CmdDeviceReset, 0, []byte{ch})
	return err
}

// Exit leaves 4-way mode and returns the flight controller to normal operation.
func (e *ESC) Exit() error {
	_, err := e.Send(CmdInterfaceExit, 0, nil)
	return err
}

// SetMode selects the programming interface mode.
func (e *ESC) SetMode(m InterfaceMode) error {
	_, err := e.Send(CmdInterfaceSetMode, 0, []byte{byte(m)})
	return err
}

// EraseAll erases the whole device flash.
func (e *ESC) EraseAll() error {
	_, err := e.Send(CmdDeviceEraseAll, 0, nil)
	return err
}

// PageErase erases one flash page.
func (e *ESC) PageErase(page uint8) error {
	_, err := e.Send(CmdDevicePageErase, 0, []byte{page})
	return err
}
