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
package escboot

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/link"
)

const op = "escboot"

// Client talks to an ESC bootloader over a direct serial passthrough.
type Client struct {
	stream link.Stream
	arch   Arch
}

// NewClient returns a Client for a bootloader of the given architecture on s.
func NewClient(s link.Stream, arch Arch) *Client {
	return &Client{stream: s, arch: arch}
}

// Arch returns the configured architecture.
func (c *Client) Arch() Arch {
	return c.arch
}

func (c *Client) send(body []byte) error {
	if c.stream == nil {
		return link.ErrNotConnected
	}
	if err := link.WriteAll(c.stream, Frame(body)); err != nil {
		return link.Fail(op, err)
	}
	return nil
}

func (c *Client) result(cmd Command) error {
	var r [1]byte
	if _, err := link.ReadExactly(c.stream, r[:]); err != nil {
		return link.Fail(op, err)
	}
	glog.V(2).Infof("escboot: cmd 0x%02x: %s", byte(cmd), Result(r[0]))
	if Result(r[0]) != ResultSuccess {
		return &ResultError{Cmd: cmd, Result: Result(r[0])}
	}
	return nil
}

func (c *Client) exec(body []byte) error {
	if err := c.send(body); err != nil {
		return err
	}
	return c.result(Command(body[0]))
}

// KeepAlive pings the bootloader.
func (c *Client) KeepAlive() error {
	return c.exec(KeepAlive())
}

// SetAddress moves the bootloader address pointer.
func (c *Client) SetAddress(addr uint16) error {
	return c.exec(SetAddress(addr))
}

func (c *Client) load(data []byte) error {
	if len(data) == 0 || len(data) > 256 {
		return errors.Errorf("escboot: buffer of %d bytes", len(data))
	}
	if err := c.send(SetBuffer(len(data))); err != nil {
		return err
	}
	return c.exec(data)
}

// Program writes data at addr.
func (c *Client) Program(addr uint16, data []byte) error {
	if err := c.SetAddress(addr); err != nil {
		return err
	}
	if err := c.load(data); err != nil {
		return err
	}
	return c.exec(ProgramFlash())
}

// Erase erases the page holding addr.
func (c *Client) Erase(addr uint16) error {
	if err := c.SetAddress(addr); err != nil {
		return err
	}
	return c.exec(EraseFlash())
}

// Verify compares data against flash at addr.
func (c *Client) Verify(addr uint16, data []byte) error {
	if err := c.SetAddress(addr); err != nil {
		return err
	}
	if err := c.load(data); err != nil {
		return err
	}
	return c.exec(Verify(c.arch))
}

// Read returns n bytes (1..256) of flash at addr. The data comes back with
// its own reflected CRC followed by the result byte.
func (c *Client) Read(addr uint16, n int) ([]byte, error) {
	if n <= 0 || n > 256 {
		return nil, errors.Errorf("escboot: read of %d bytes", n)
	}
	if err := c.SetAddress(addr); err != nil {
		return nil, err
	}
	cmd := Read(n)
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	frame := make([]byte, n+2)
	if _, err := link.ReadExactly(c.stream, frame); err != nil {
		return nil, link.Fail(op, err)
	}
	body, err := CheckFrame(frame)
	if err != nil {
		return nil, link.Fail(op, errors.Wrap(link.ErrCRCMismatch, err.Error()))
	}
	if err := c.result(Command(cmd[0])); err != nil {
		return nil, err
	}
	return body, nil
}

// Run leaves the bootloader and starts the application. No answer is expected.
func (c *Client) Run() error {
	return c.send(Run())
}
