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
package link

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Options holds serial port configuration.
type Options struct {
	// Device path, e.g. /dev/ttyACM0. Empty selects the most recently
	// enumerated port.
	PortName string

	BaudRate int

	// Read timeout applied when the port is opened.
	Timeout time.Duration
}

// DefaultOptions returns Options with the defaults used for MSP probing.
func DefaultOptions() Options {
	return Options{
		BaudRate: 115200,
		Timeout:  200 * time.Millisecond,
	}
}

// Port is a serial port implementing Stream.
type Port struct {
	name string
	port serial.Port
}

// ListPorts returns the serial ports known to the OS.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// LastPort returns the most recently enumerated serial port.
func LastPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", errors.Wrap(err, "serial: list ports")
	}
	if len(ports) == 0 {
		return "", errors.New("serial: no ports found")
	}
	return ports[len(ports)-1], nil
}

// Open opens a serial port with the given options.
func Open(opts Options) (*Port, error) {
	def := DefaultOptions()
	if opts.BaudRate == 0 {
		opts.BaudRate = def.BaudRate
	}
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PortName == "" {
		name, err := LastPort()
		if err != nil {
			return nil, err
		}
		opts.PortName = name
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(opts.PortName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "serial: open %s", opts.PortName)
	}
	p := &Port{name: opts.PortName, port: sp}
	if err := p.SetReadTimeout(opts.Timeout); err != nil {
		sp.Close()
		return nil, err
	}
	return p, nil
}

// Name returns the device path.
func (p *Port) Name() string {
	return p.name
}

// Read implements io.Reader. It returns 0, nil when the read timeout expires.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// SetReadTimeout implements Stream.
func (p *Port) SetReadTimeout(t time.Duration) error {
	if err := p.port.SetReadTimeout(t); err != nil {
		return errors.Wrap(err, "serial: set read timeout")
	}
	return nil
}

// Flush drops any unread input.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// Close closes the port.
func (p *Port) Close() error {
	return p.port.Close()
}
