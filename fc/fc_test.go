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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/fc"
	"github.com/robhaswell/bfctl/link"
	"github.com/robhaswell/bfctl/link/linktest"
	"github.com/robhaswell/bfctl/msp"
)

func reply(t *testing.T, cmd uint16, payload []byte) []byte {
	b, err := msp.Encode(msp.FromFC, cmd, payload)
	require.NoError(t, err)
	return b
}

func request(t *testing.T, cmd uint16, payload []byte) []byte {
	b, err := msp.Encode(msp.ToFC, cmd, payload)
	require.NoError(t, err)
	return b
}

func attach(s *linktest.Stream) (*fc.FC, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return fc.Attach(s, fc.FCOptions{PortName: "/dev/ttyTEST", Stdout: out}), out
}

func TestIdentify(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(
		reply(t, msp.MspAPIVersion, []byte{0, 1, 45}),
		reply(t, msp.MspFCVariant, []byte("BTFL")),
		reply(t, msp.MspFCVersion, []byte{4, 4, 2}),
		reply(t, msp.MspBoardInfo, []byte("S7X2\x00\x00")),
		reply(t, msp.MspName, []byte("quad")),
	)
	f, out := attach(s)
	require.NoError(t, f.Identify())

	require.Equal(t, "BTFL", f.Variant)
	require.Equal(t, byte(1), f.APIMajor)
	require.Equal(t, byte(45), f.APIMinor)
	require.Equal(t, "S7X2", f.Board)
	require.Equal(t, "quad", f.Name)
	require.True(t, f.VersionAtLeast(4, 4, 0))
	require.True(t, f.VersionAtLeast(4, 3, 9))
	require.False(t, f.VersionAtLeast(4, 5, 0))
	require.Contains(t, out.String(), "Connected to BTFL 4.4.2 (quad) on S7X2")
	require.Equal(t, request(t, msp.MspAPIVersion, nil), s.Writes[0])
	require.Equal(t, link.DefaultOptions().Timeout, s.Timeout)
	require.Equal(t, "/dev/ttyTEST", f.PortName())
}

func TestIdentifyNoReply(t *testing.T) {
	f, _ := attach(&linktest.Stream{})
	err := f.Identify()
	require.True(t, link.IsTransport(err))
	require.True(t, errors.Is(err, link.ErrBadPreamble))
}

func TestEnterESCPassthrough(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.MspSetPassthrough, []byte{4}))
	f, _ := attach(s)
	n, err := f.EnterESCPassthrough(2)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, request(t, msp.MspSetPassthrough, []byte{0xFF, 2}), s.LastWrite())

	s.Queue(reply(t, msp.MspSetPassthrough, []byte{0}))
	_, err = f.EnterESCPassthrough(0)
	require.Equal(t, fc.ErrNoESC, err)
}

func TestESCSharesStream(t *testing.T) {
	s := &linktest.Stream{}
	r, err := esc4way.EncodeReply(esc4way.CmdInterfaceTestAlive, 0, nil, esc4way.AckOK)
	require.NoError(t, err)
	s.Queue(r)
	f, _ := attach(s)
	require.NoError(t, f.SetTimeout(fc.ESCTimeout))
	require.NoError(t, f.ESC().TestAlive())
	require.Equal(t, time.Second, s.Timeout)
}

func TestReboot(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(reply(t, msp.MspReboot, []byte{byte(msp.RebootBootloaderROM)}))
	f, _ := attach(s)
	require.NoError(t, f.Reboot(msp.RebootBootloaderROM))
	require.Equal(t, request(t, msp.MspReboot, []byte{1}), s.LastWrite())
	require.NoError(t, f.Close())
}

func TestCLI(t *testing.T) {
	s := &linktest.Stream{Chunk: 16}
	s.Queue(
		[]byte("\r\nEntering CLI Mode, type 'exit' to return, or 'help'\r\n\r\n# "),
		[]byte("diff all\r\n\r\n# version\r\nset motor_pwm_protocol = DSHOT600\r\n\r\nsave\r\n# "),
	)
	f, _ := attach(s)
	require.NoError(t, f.EnterCLI())
	require.Equal(t, []byte("#\r\n"), s.Writes[0])

	out, err := f.CLICommand("diff all", fc.SaveTerminated)
	require.NoError(t, err)
	require.Contains(t, out, "set motor_pwm_protocol = DSHOT600")
	require.True(t, fc.SaveTerminated(out))

	s.Queue([]byte("set gyro_lpf1_static_hz = 250\r\n"))
	out, err = f.CLICommand("set gyro_lpf1_static_hz = 250", nil)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "set gyro_lpf1_static_hz = 250\r\n"))

	require.NoError(t, f.ExitCLI())
	require.Equal(t, []byte("exit\r\n"), s.LastWrite())
}

func TestCLITimeout(t *testing.T) {
	old := fc.CLIDeadline
	fc.CLIDeadline = 10 * time.Millisecond
	defer func() { fc.CLIDeadline = old }()

	s := &linktest.Stream{}
	s.Queue([]byte("dump all\r\n# partial"))
	f, _ := attach(s)
	out, err := f.CLICommand("dump all", fc.SaveTerminated)
	require.True(t, errors.Is(err, fc.ErrCLITimeout))
	require.Contains(t, out, "partial")
}

func TestDumpConfig(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue(
		[]byte("Entering CLI Mode\r\n# "),
		[]byte("diff all\r\nset name = quad\r\nsave\r\n# "),
		[]byte("dump all\r\nset gyro = 1\r\nsave\r\n# "),
	)
	f, _ := attach(s)
	diff, dump, err := f.DumpConfig()
	require.NoError(t, err)
	require.Contains(t, diff, "set name = quad")
	require.Contains(t, dump, "set gyro = 1")
	require.Equal(t, []byte("exit\r\n"), s.LastWrite())
}

func TestDumpConfigLeavesCLIOnFailure(t *testing.T) {
	old := fc.CLIDeadline
	fc.CLIDeadline = 10 * time.Millisecond
	defer func() { fc.CLIDeadline = old }()

	s := &linktest.Stream{}
	s.Queue([]byte("Entering CLI Mode\r\n# "), []byte("diff all\r\n# partial"))
	f, _ := attach(s)
	_, _, err := f.DumpConfig()
	require.True(t, errors.Is(err, fc.ErrCLITimeout))
	require.Equal(t, []byte("exit\r\n"), s.LastWrite())
}

func TestLoadConfig(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue([]byte("Entering CLI Mode\r\n# "))
	f, _ := attach(s)
	var echoed []string
	lines := []string{"set a = 1", "", "set b = 2"}
	require.NoError(t, f.LoadConfig(lines, func(l string) { echoed = append(echoed, l) }))
	require.Equal(t, []string{"set a = 1", "set b = 2", "save"}, echoed)
	require.Len(t, lines, 3)
	require.Equal(t, []byte("save\r\n"), s.LastWrite())
}

func TestLoadConfigCLIFailure(t *testing.T) {
	old := fc.CLIDeadline
	fc.CLIDeadline = 10 * time.Millisecond
	defer func() { fc.CLIDeadline = old }()

	s := &linktest.Stream{}
	f, _ := attach(s)
	err := f.LoadConfig([]string{"set a = 1"}, nil)
	require.True(t, errors.Is(err, fc.ErrCLITimeout))
	require.Len(t, s.Writes, 1)
}
