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
package fc

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/link"
	"github.com/robhaswell/bfctl/msp"
)

// AllMotors addresses every motor in a DShot command.
const AllMotors uint8 = 255

// SerialPassthroughBaud is the UART speed used for a serial ESC bootloader
// bridge when none is given.
const SerialPassthroughBaud = 420000

var (
	// ErrTooManyMotors is returned when more than msp.MaxMotors values are set.
	ErrTooManyMotors = errors.New("fc: too many motor values")
	// ErrNoSerialPort is returned when the board has no port to bridge to.
	ErrNoSerialPort = errors.New("fc: no such serial port")
)

// Baud rates indexed by the board's baud rate index.
var baudRates = []uint32{
	0, 9600, 19200, 38400, 57600, 115200, 230400, 250000,
	400000, 460800, 500000, 921600, 1000000, 1500000, 2000000, 2470000,
}

// BaudRate returns the rate for a baud rate index, or 0 when unknown.
func BaudRate(index uint8) uint32 {
	if int(index) >= len(baudRates) {
		return 0
	}
	return baudRates[index]
}

// SerialPort is one entry of the board's serial configuration.
type SerialPort struct {
	ID            uint8
	Functions     uint32
	MSPBaud       uint32
	GPSBaud       uint32
	TelemetryBaud uint32
	BlackboxBaud  uint32
}

const serialPortSize = 9

// SerialPorts returns the serial port configuration.
func (f *FC) SerialPorts() ([]SerialPort, error) {
	fr, err := f.msp.Request(msp.Msp2CommonSerialConfig, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fc: serial config")
	}
	p := fr.Payload
	if len(p) == 0 {
		return nil, nil
	}
	count := int(p[0])
	p = p[1:]
	if len(p) < count*serialPortSize {
		return nil, errors.Errorf("fc: serial config: %d ports in %d bytes", count, len(p))
	}
	ports := make([]SerialPort, count)
	for i := range ports {
		e := p[i*serialPortSize:]
		ports[i] = SerialPort{
			ID:            e[0],
			Functions:     binary.LittleEndian.Uint32(e[1:5]),
			MSPBaud:       BaudRate(e[5]),
			GPSBaud:       BaudRate(e[6]),
			TelemetryBaud: BaudRate(e[7]),
			BlackboxBaud:  BaudRate(e[8]),
		}
	}
	return ports, nil
}

// Motors returns the current motor outputs.
func (f *FC) Motors() ([]uint16, error) {
	fr, err := f.msp.Request(msp.MspMotor, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fc: motors")
	}
	vals := make([]uint16, len(fr.Payload)/2)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint16(fr.Payload[i*2:])
	}
	return vals, nil
}

// SetMotors sets the motor outputs, starting at the first motor. The board
// only applies them while disarmed.
func (f *FC) SetMotors(vals []uint16) error {
	if len(vals) > msp.MaxMotors {
		return errors.Wrapf(ErrTooManyMotors, "%d > %d", len(vals), msp.MaxMotors)
	}
	out := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	if _, err := f.msp.Request(msp.MspSetMotor, out); err != nil {
		return errors.Wrap(err, "fc: set motors")
	}
	glog.V(1).Infof("fc: motors set to %v", vals)
	return nil
}

// SendDshot sends DShot commands to motor, or to every motor with AllMotors.
func (f *FC) SendDshot(kind msp.DshotCommandType, motor uint8, cmds ...msp.DshotCommand) error {
	out := make([]byte, 0, 3+len(cmds))
	out = append(out, byte(kind), motor, byte(len(cmds)))
	for _, c := range cmds {
		out = append(out, byte(c))
	}
	if _, err := f.msp.Request(msp.Msp2SendDshotCommand, out); err != nil {
		return errors.Wrap(err, "fc: dshot")
	}
	glog.V(1).Infof("fc: dshot %v sent to motor %d", cmds, motor)
	return nil
}

// SerialPassthrough bridges the port to the board's serial port id at baud
// using the CLI. The session speaks raw bytes afterwards; Stream reaches the
// far end.
func (f *FC) SerialPassthrough(id uint8, baud int) error {
	if err := f.EnterCLI(); err != nil {
		return err
	}
	if _, err := f.CLICommand(fmt.Sprintf("serialpassthrough %d %d", id, baud), nil); err != nil {
		return err
	}
	glog.V(1).Infof("fc: serial passthrough to port %d at %d baud", id, baud)
	f.reset()
	return nil
}

// SerialPassthroughMSP bridges the port through MSP_SET_PASSTHROUGH, picking
// the target by port identifier or serial function with mode.
func (f *FC) SerialPassthroughMSP(mode msp.PassthroughMode, id uint8) error {
	var in [1]byte
	n, err := f.msp.Transact(msp.MspSetPassthrough, []byte{byte(mode), id}, in[:])
	if err != nil {
		return errors.Wrap(err, "fc: serial passthrough")
	}
	if n == 0 || in[0] == 0 {
		return errors.Wrapf(ErrNoSerialPort, "mode 0x%02x id %d", byte(mode), id)
	}
	f.reset()
	return nil
}

// Stream returns the session stream, for talking to whatever a passthrough
// bridged it to.
func (f *FC) Stream() link.Stream {
	return f.stream
}
