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
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/link"
)

// ChunkSize is the largest transfer a single read or write transaction carries.
const ChunkSize = MaxPayloadSize

// Region is an area of ESC flash.
type Region struct {
	Addr uint16
	Size int
}

// End returns the first address past the region.
func (r Region) End() int {
	return int(r.Addr) + r.Size
}

// Flash layout of the ESC application.
var (
	FirmwareRegion = Region{Addr: 0x1000, Size: 0x7C00 - 0x1000}
	SettingsRegion = Region{Addr: 0x7C00, Size: 256}
)

func checkRange(addr uint16, n int) error {
	if int(addr)+n > 0x10000 {
		return errors.Wrapf(ErrAddressRange, "0x%04x+%d", addr, n)
	}
	return nil
}

// ReadFlash fills buf from flash at addr in chunks of at most ChunkSize.
// It returns the number of bytes read before any failure.
func (e *ESC) ReadFlash(addr uint16, buf []byte) (int, error) {
	return e.readChunks(CmdDeviceRead, addr, buf)
}

// WriteFlash writes data to flash at addr in chunks of at most ChunkSize.
// It stops at the first failing chunk and returns the bytes written so far.
func (e *ESC) WriteFlash(addr uint16, data []byte) (int, error) {
	return e.writeChunks(CmdDeviceWrite, addr, data)
}

// ReadEEPROM fills buf from EEPROM at addr.
func (e *ESC) ReadEEPROM(addr uint16, buf []byte) (int, error) {
	return e.readChunks(CmdDeviceReadEEprom, addr, buf)
}

// WriteEEPROM writes data to EEPROM at addr.
func (e *ESC) WriteEEPROM(addr uint16, data []byte) (int, error) {
	return e.writeChunks(CmdDeviceWriteEEprom, addr, data)
}

// Verify has the device compare data against flash at addr. A mismatch is
// reported as a *CommandError with AckVerifyError.
func (e *ESC) Verify(addr uint16, data []byte) (int, error) {
	return e.writeChunks(CmdDeviceVerify, addr, data)
}

func (e *ESC) readChunks(cmd Command, addr uint16, buf []byte) (int, error) {
	if err := checkRange(addr, len(buf)); err != nil {
		return 0, err
	}
	done := 0
	for done < len(buf) {
		n := min(len(buf)-done, ChunkSize)
		at := addr + uint16(done)
		p, err := e.Send(cmd, at, []byte{lengthByte(n)})
		if err != nil {
			return done, errors.Wrapf(err, "read 0x%04x", at)
		}
		if len(p) < n {
			return done, link.Fail(op, errors.Wrapf(link.ErrLengthMismatch, "read 0x%04x: %d of %d bytes", at, len(p), n))
		}
		done += copy(buf[done:done+n], p)
	}
	return done, nil
}

func (e *ESC) writeChunks(cmd Command, addr uint16, data []byte) (int, error) {
	if err := checkRange(addr, len(data)); err != nil {
		return 0, err
	}
	done := 0
	for done < len(data) {
		n := min(len(data)-done, ChunkSize)
		at := addr + uint16(done)
		if _, err := e.Send(cmd, at, data[done:done+n]); err != nil {
			return done, errors.Wrapf(err, "%s 0x%04x", cmd, at)
		}
		done += n
	}
	return done, nil
}

// PatchByte rewrites one flash byte by reading the 256-byte page holding addr,
// changing it and writing the whole page back.
func (e *ESC) PatchByte(addr uint16, v byte) error {
	base := addr &^ (ChunkSize - 1)
	page := make([]byte, ChunkSize)
	if _, err := e.ReadFlash(base, page); err != nil {
		return err
	}
	page[addr-base] = v
	_, err := e.WriteFlash(base, page)
	return err
}
