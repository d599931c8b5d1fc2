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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/link"
	"github.com/robhaswell/bfctl/msp"
)

// ESCTimeout is the read timeout used once the port is bridged to the ESCs.
const ESCTimeout = time.Second

// ErrNoESC is returned when the flight controller reports no ESCs behind
// the passthrough.
var ErrNoESC = errors.New("fc: passthrough found no ESCs")

// FC represents a session with a flight controller over one serial port.
// Use NewFC() to open the port and identify the board.
type FC struct {
	opts         FCOptions
	stream       link.Stream
	port         *link.Port
	msp          *msp.MSP
	Variant      string
	APIMajor     byte
	APIMinor     byte
	VersionMajor byte
	VersionMinor byte
	VersionPatch byte
	Board        string
	Name         string
}

type FCOptions struct {
	PortName string
	BaudRate int
	// Timeout is the read timeout for MSP requests.
	Timeout time.Duration
	Stdout  io.Writer
}

// NewFC opens the port described by opts and identifies the board. Stdout is
// optional and will default to os.Stdout if nil.
func NewFC(opts FCOptions) (*FC, error) {
	p, err := link.Open(link.Options{
		PortName: opts.PortName,
		BaudRate: opts.BaudRate,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	opts.PortName = p.Name()
	if err := p.Flush(); err != nil {
		p.Close()
		return nil, err
	}
	f := Attach(p, opts)
	f.port = p
	if err := f.Identify(); err != nil {
		p.Close()
		return nil, err
	}
	return f, nil
}

// Attach returns an FC on an already open stream without identifying it.
func Attach(s link.Stream, opts FCOptions) *FC {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Timeout == 0 {
		opts.Timeout = link.DefaultOptions().Timeout
	}
	return &FC{
		opts:   opts,
		stream: s,
		msp:    msp.New(s),
	}
}

// Identify queries the API version, variant, version, board and craft name.
func (f *FC) Identify() error {
	f.reset()
	if err := f.SetTimeout(f.opts.Timeout); err != nil {
		return err
	}
	for _, cmd := range []uint16{msp.MspAPIVersion, msp.MspFCVariant, msp.MspFCVersion, msp.MspBoardInfo, msp.MspName} {
		fr, err := f.msp.Request(cmd, nil)
		if err != nil {
			return errors.Wrap(err, "fc: identify")
		}
		f.handleFrame(fr)
	}
	f.printInfo()
	return nil
}

func (f *FC) printf(format string, a ...interface{}) (int, error) {
	return fmt.Fprintf(f.opts.Stdout, format, a...)
}

func (f *FC) printInfo() {
	f.printf("Connected to %s %d.%d.%d (%s) on %s\n", f.Variant, f.VersionMajor, f.VersionMinor, f.VersionPatch, f.Name, f.Board)
}

func (f *FC) handleFrame(fr *msp.Frame) {
	switch fr.Cmd {
	case msp.MspAPIVersion:
		f.APIMajor = fr.Byte(1)
		f.APIMinor = fr.Byte(2)
		glog.V(1).Infof("fc: MSP API version %d.%d (protocol %d)", f.APIMajor, f.APIMinor, fr.Byte(0))
	case msp.MspFCVariant:
		f.Variant = string(fr.Payload)
	case msp.MspFCVersion:
		f.VersionMajor = fr.Byte(0)
		f.VersionMinor = fr.Byte(1)
		f.VersionPatch = fr.Byte(2)
	case msp.MspBoardInfo:
		if len(fr.Payload) >= 4 {
			f.Board = string(fr.Payload[:4])
		}
	case msp.MspName:
		f.Name = string(fr.Payload)
	default:
		glog.Warningf("fc: unhandled MSP frame %d with payload %v", fr.Cmd, fr.Payload)
	}
}

// VersionAtLeast reports whether the firmware version is at least the given one.
func (f *FC) VersionAtLeast(major, minor, patch byte) bool {
	return f.VersionMajor > major || (f.VersionMajor == major && f.VersionMinor > minor) ||
		(f.VersionMajor == major && f.VersionMinor == minor && f.VersionPatch >= patch)
}

func (f *FC) reset() {
	f.Variant = ""
	f.APIMajor = 0
	f.APIMinor = 0
	f.VersionMajor = 0
	f.VersionMinor = 0
	f.VersionPatch = 0
	f.Board = ""
	f.Name = ""
}

// SetTimeout changes the read timeout of the underlying stream.
func (f *FC) SetTimeout(t time.Duration) error {
	return f.stream.SetReadTimeout(t)
}

// PortName returns the device path of the session.
func (f *FC) PortName() string {
	return f.opts.PortName
}

// EnterESCPassthrough bridges the port to the ESC 4-way interface with ch as
// the initial channel and returns the number of ESCs the board reports.
func (f *FC) EnterESCPassthrough(ch uint8) (int, error) {
	var in [1]byte
	n, err := f.msp.Transact(msp.MspSetPassthrough, []byte{byte(msp.PassthroughESC4Way), ch}, in[:])
	if err != nil {
		return 0, errors.Wrap(err, "fc: passthrough")
	}
	if n == 0 || in[0] == 0 {
		return 0, ErrNoESC
	}
	glog.V(1).Infof("fc: passthrough to %d ESCs", in[0])
	return int(in[0]), nil
}

// ESC returns a 4-way transport on the session stream. It is only useful
// after EnterESCPassthrough.
func (f *FC) ESC() *esc4way.ESC {
	return esc4way.New(f.stream)
}

// Reboot restarts the board in the given mode. The session is unusable
// afterwards.
func (f *FC) Reboot(mode msp.RebootMode) error {
	if _, err := f.msp.Request(msp.MspReboot, []byte{byte(mode)}); err != nil {
		return errors.Wrap(err, "fc: reboot")
	}
	f.reset()
	return nil
}

// Close closes the port if the session opened it.
func (f *FC) Close() error {
	if f.port == nil {
		return nil
	}
	err := f.port.Close()
	f.port = nil
	return err
}
