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
package esc4way_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robhaswell/bfctl/crc"
	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/esc4way/esc4waytest"
	"github.com/robhaswell/bfctl/escboot"
	"github.com/robhaswell/bfctl/link"
	"github.com/robhaswell/bfctl/link/linktest"
)

func selected(t *testing.T) (*esc4way.ESC, *esc4waytest.Device) {
	dev := esc4waytest.New()
	esc := esc4way.New(dev)
	_, err := esc.SelectChannel(0)
	require.NoError(t, err)
	dev.Log = nil
	return esc, dev
}

func TestEncodeRequest(t *testing.T) {
	b, err := esc4way.EncodeRequest(esc4way.CmdDeviceRead, 0x7C00, []byte{0x10})
	require.NoError(t, err)
	require.Equal(t, []byte{0x2F, 0x3A, 0x7C, 0x00, 0x01, 0x10}, b[:6])
	sum := crc.CRC16XModem(b[:6], 0)
	require.Equal(t, []byte{byte(sum >> 8), byte(sum)}, b[6:])

	b, err = esc4way.EncodeRequest(esc4way.CmdDeviceWrite, 0, make([]byte, 256))
	require.NoError(t, err)
	require.Equal(t, byte(0), b[4])
	require.Len(t, b, esc4way.HeaderSize+256+2)

	b, err = esc4way.EncodeRequest(esc4way.CmdInterfaceExit, 0, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x2F, 0x34, 0, 0, 1, 0}, b[:6])

	_, err = esc4way.EncodeRequest(esc4way.CmdDeviceWrite, 0, make([]byte, 257))
	require.True(t, errors.Is(err, esc4way.ErrPayloadTooLarge))
}

func TestDecodeRequestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xA5}, 256)
	b, err := esc4way.EncodeRequest(esc4way.CmdDeviceWrite, 0x1200, payload)
	require.NoError(t, err)
	pkt, err := esc4way.DecodeRequest(b)
	require.NoError(t, err)
	require.Equal(t, esc4way.CmdDeviceWrite, pkt.Cmd)
	require.Equal(t, uint16(0x1200), pkt.Addr)
	require.Equal(t, payload, pkt.Payload)
}

func TestSendReplyLengthZeroMeans256(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	reply, err := esc4way.EncodeReply(esc4way.CmdDeviceRead, 0, data, esc4way.AckOK)
	require.NoError(t, err)
	require.Equal(t, byte(0), reply[4])

	s := &linktest.Stream{Chunk: 7}
	s.Queue(reply)
	got, err := esc4way.New(s).Send(esc4way.CmdDeviceRead, 0, []byte{0})
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSendAckErrors(t *testing.T) {
	for _, ack := range []esc4way.Ack{
		esc4way.AckInvalidCmd, esc4way.AckInvalidCRC, esc4way.AckVerifyError,
		esc4way.AckInvalidChannel, esc4way.AckInvalidParam, esc4way.AckGeneralError, esc4way.Ack(0x42),
	} {
		t.Run(ack.String(), func(t *testing.T) {
			reply, err := esc4way.EncodeReply(esc4way.CmdDeviceReset, 0, nil, ack)
			require.NoError(t, err)
			s := &linktest.Stream{}
			s.Queue(reply)
			_, err = esc4way.New(s).Send(esc4way.CmdDeviceReset, 0, []byte{1})
			var ce *esc4way.CommandError
			require.True(t, errors.As(err, &ce))
			require.Equal(t, ack, ce.Ack)
			require.False(t, link.IsTransport(err))
			got, ok := esc4way.AckOf(err)
			require.True(t, ok)
			require.Equal(t, ack, got)
		})
	}
	require.Equal(t, "unknown", esc4way.Ack(0x42).String())
}

func TestSendBitFlipRejected(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6}
	for i := 0; i < len(payload)+1; i++ {
		for bit := 0; bit < 8; bit++ {
			reply, err := esc4way.EncodeReply(esc4way.CmdDeviceRead, 0x100, payload, esc4way.AckOK)
			require.NoError(t, err)
			reply[esc4way.HeaderSize+i] ^= 1 << bit
			s := &linktest.Stream{}
			s.Queue(reply)
			_, err = esc4way.New(s).Send(esc4way.CmdDeviceRead, 0x100, []byte{6})
			require.True(t, errors.Is(err, link.ErrCRCMismatch), "byte %d bit %d: %v", i, bit, err)
		}
	}
}

func TestSendTimeout(t *testing.T) {
	s := &linktest.Stream{}
	_, err := esc4way.New(s).Send(esc4way.CmdInterfaceTestAlive, 0, nil)
	require.True(t, errors.Is(err, link.ErrShortRead))
	require.True(t, link.IsTransport(err))

	reply, _ := esc4way.EncodeReply(esc4way.CmdDeviceRead, 0, make([]byte, 16), esc4way.AckOK)
	s = &linktest.Stream{}
	s.Queue(reply[:10])
	_, err = esc4way.New(s).Send(esc4way.CmdDeviceRead, 0, []byte{16})
	require.True(t, errors.Is(err, link.ErrShortRead))
}

func TestWriteFlashChunks(t *testing.T) {
	esc, dev := selected(t)
	data := make([]byte, 600)
	for i := range data {
		data[i] = byte(i * 7)
	}
	n, err := esc.WriteFlash(0, data)
	require.NoError(t, err)
	require.Equal(t, 600, n)

	writes := dev.Writes()
	require.Len(t, writes, 3)
	for i, want := range []struct {
		addr uint16
		size int
	}{{0, 256}, {256, 256}, {512, 88}} {
		require.Equal(t, want.addr, writes[i].Addr)
		require.Len(t, writes[i].Payload, want.size)
	}
	require.Equal(t, data, dev.Flash[:600])
}

func TestReadFlashChunks(t *testing.T) {
	esc, dev := selected(t)
	for i := 0; i < 700; i++ {
		dev.Flash[0x1000+i] = byte(i)
	}
	buf := make([]byte, 700)
	n, err := esc.ReadFlash(0x1000, buf)
	require.NoError(t, err)
	require.Equal(t, 700, n)
	require.Equal(t, dev.Flash[0x1000:0x1000+700], buf)

	require.Equal(t, 3, dev.Count(esc4way.CmdDeviceRead))
	require.Equal(t, []byte{0}, dev.Log[0].Payload)
	require.Equal(t, []byte{0}, dev.Log[1].Payload)
	require.Equal(t, []byte{188}, dev.Log[2].Payload)
	require.Equal(t, uint16(0x1200), dev.Log[2].Addr)
}

func TestWriteFlashStopsOnFirstFailure(t *testing.T) {
	esc, dev := selected(t)
	dev.Fault = func(tx esc4waytest.Transaction) esc4way.Ack {
		if tx.Cmd == esc4way.CmdDeviceWrite && tx.Addr == 256 {
			return esc4way.AckGeneralError
		}
		return esc4way.AckOK
	}
	n, err := esc.WriteFlash(0, make([]byte, 600))
	require.Equal(t, 256, n)
	ack, ok := esc4way.AckOf(err)
	require.True(t, ok)
	require.Equal(t, esc4way.AckGeneralError, ack)
	require.Len(t, dev.Writes(), 2)
}

func TestAddressRange(t *testing.T) {
	esc, _ := selected(t)
	_, err := esc.WriteFlash(0xFF00, make([]byte, 0x101))
	require.True(t, errors.Is(err, esc4way.ErrAddressRange))
	_, err = esc.ReadFlash(0xFF00, make([]byte, 0x100))
	require.NoError(t, err)
}

func TestVerify(t *testing.T) {
	esc, dev := selected(t)
	copy(dev.Flash[0x2000:], []byte{1, 2, 3})
	_, err := esc.Verify(0x2000, []byte{1, 2, 3})
	require.NoError(t, err)
	_, err = esc.Verify(0x2000, []byte{1, 2, 4})
	ack, _ := esc4way.AckOf(err)
	require.Equal(t, esc4way.AckVerifyError, ack)
}

func TestEEPROM(t *testing.T) {
	esc, dev := selected(t)
	_, err := esc.WriteEEPROM(0x10, []byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, dev.EEPROM[0x10:0x12])
	buf := make([]byte, 2)
	_, err = esc.ReadEEPROM(0x10, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, buf)
}

func TestInterfaceCommands(t *testing.T) {
	dev := esc4waytest.New()
	esc := esc4way.New(dev)

	name, err := esc.InterfaceName()
	require.NoError(t, err)
	require.Equal(t, "m4wFCIntf", name)

	v, err := esc.ProtocolVersion()
	require.NoError(t, err)
	require.Equal(t, byte(108), v)

	iv, err := esc.InterfaceVersion()
	require.NoError(t, err)
	require.Equal(t, uint16(200<<8|6), iv)

	require.NoError(t, esc.TestAlive())
	require.NoError(t, esc.SetMode(esc4way.ModeARMBLB))

	info, err := esc.SelectChannel(2)
	require.NoError(t, err)
	require.True(t, info.Connected())
	require.Equal(t, esc4way.ModeARMBLB, info.Mode)
	require.Equal(t, escboot.ArchARM, info.Mode.Arch())
	require.Equal(t, escboot.ArchSiLabs, esc4way.ModeSiLabsBLB.Arch())

	_, err = esc.SelectChannel(9)
	ack, _ := esc4way.AckOf(err)
	require.Equal(t, esc4way.AckInvalidChannel, ack)

	require.NoError(t, esc.Reset(1))
	require.NoError(t, esc.PageErase(1))
	require.NoError(t, esc.EraseAll())
	require.NoError(t, esc.Exit())
	require.True(t, dev.Exited)
}

func TestNoStream(t *testing.T) {
	_, err := esc4way.New(nil).Send(esc4way.CmdInterfaceTestAlive, 0, nil)
	require.Equal(t, link.ErrNotConnected, err)
}

func TestPatchByte(t *testing.T) {
	esc, dev := selected(t)
	dev.Flash[0x7C00] = 0x11
	require.NoError(t, esc.PatchByte(0x7C05, 0x42))
	require.Equal(t, byte(0x42), dev.Flash[0x7C05])
	require.Equal(t, byte(0x11), dev.Flash[0x7C00])

	writes := dev.Writes()
	require.Len(t, writes, 1)
	require.Equal(t, uint16(0x7C00), writes[0].Addr)
	require.Len(t, writes[0].Payload, 256)
}
