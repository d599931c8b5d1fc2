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
package fc_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robhaswell/bfctl/fc"
	"github.com/robhaswell/bfctl/link/linktest"
	"github.com/robhaswell/bfctl/msp"
)

func TestSendDshot(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.Msp2SendDshotCommand, nil))
	f, _ := attach(s)
	require.NoError(t, f.SendDshot(msp.DshotBlocking, 2, msp.DshotSpinDirectionReversed, msp.DshotSaveSettings))
	require.Equal(t, request(t, msp.Msp2SendDshotCommand, []byte{1, 2, 2, 21, 12}), s.LastWrite())

	s.Queue(reply(t, msp.Msp2SendDshotCommand, nil))
	require.NoError(t, f.SendDshot(msp.DshotInline, fc.AllMotors, msp.DshotBeacon1))
	require.Equal(t, request(t, msp.Msp2SendDshotCommand, []byte{0, 255, 1, 1}), s.LastWrite())
}

func TestSendDshotUnsupported(t *testing.T) {
	s := &linktest.Stream{}
	b, err := msp.Encode(msp.Unsupported, msp.Msp2SendDshotCommand, nil)
	require.NoError(t, err)
	s.Queue(b)
	f, _ := attach(s)
	err = f.SendDshot(msp.DshotInline, 0, msp.DshotBeacon1)
	require.True(t, errors.Is(err, msp.ErrUnsupported))
}

func TestMotors(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.MspSetMotor, nil))
	f, _ := attach(s)
	require.NoError(t, f.SetMotors([]uint16{1000, 1100}))
	require.Equal(t, request(t, msp.MspSetMotor, []byte{0xE8, 0x03, 0x4C, 0x04}), s.LastWrite())

	s.Queue(reply(t, msp.MspMotor, []byte{0xE8, 0x03, 0x4C, 0x04, 0xD0, 0x07}))
	vals, err := f.Motors()
	require.NoError(t, err)
	require.Equal(t, []uint16{1000, 1100, 2000}, vals)

	n := len(s.Writes)
	err = f.SetMotors(make([]uint16, msp.MaxMotors+1))
	require.True(t, errors.Is(err, fc.ErrTooManyMotors))
	require.Len(t, s.Writes, n)
}

func TestSerialPorts(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.Msp2CommonSerialConfig, []byte{
		2,
		20, 0x01, 0, 0, 0, 5, 0, 0, 0,
		1, 0x40, 0, 0, 0, 0, 0, 11, 99,
	}))
	f, _ := attach(s)
	ports, err := f.SerialPorts()
	require.NoError(t, err)
	require.Equal(t, []fc.SerialPort{
		{ID: 20, Functions: 1, MSPBaud: 115200},
		{ID: 1, Functions: 0x40, TelemetryBaud: 921600},
	}, ports)

	s.Queue(reply(t, msp.Msp2CommonSerialConfig, []byte{3, 0, 0}))
	_, err = f.SerialPorts()
	require.Error(t, err)
}

func TestSerialPassthrough(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue([]byte("Entering CLI Mode\r\n# "), []byte("serialpassthrough 0 420000\r\n"))
	f, _ := attach(s)
	require.NoError(t, f.SerialPassthrough(0, fc.SerialPassthroughBaud))
	require.Equal(t, []byte("serialpassthrough 0 420000\r\n"), s.LastWrite())
	require.Equal(t, s, f.Stream())
}

func TestSerialPassthroughMSP(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.MspSetPassthrough, []byte{1}))
	f, _ := attach(s)
	require.NoError(t, f.SerialPassthroughMSP(msp.PassthroughSerialID, 3))
	require.Equal(t, request(t, msp.MspSetPassthrough, []byte{0xFD, 3}), s.LastWrite())

	s.Queue(reply(t, msp.MspSetPassthrough, []byte{0}))
	err := f.SerialPassthroughMSP(msp.PassthroughSerialFunctionID, 9)
	require.True(t, errors.Is(err, fc.ErrNoSerialPort))
}
