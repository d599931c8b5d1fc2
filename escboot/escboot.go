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

// Package escboot covers the ESC bootloader command set reached through the
// 4-way interface or a direct serial passthrough. Bootloader frames carry the
// reflected CRC16, not the 4-way CRC.
package escboot

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/crc"
)

// Command is a bootloader command code.
type Command byte

const (
	CmdRun            Command = 0x00
	CmdProgramFlash   Command = 0x01
	CmdEraseFlash     Command = 0x02
	CmdReadFlashSil   Command = 0x03
	CmdVerifyFlash    Command = 0x03
	CmdVerifyFlashARM Command = 0x04
	CmdReadEEPROM     Command = 0x04
	CmdProgramEEPROM  Command = 0x05
	CmdReadSRAM       Command = 0x06
	CmdReadFlashAtm   Command = 0x07
	CmdKeepAlive      Command = 0xFD
	CmdSetBuffer      Command = 0xFE
	CmdSetAddress     Command = 0xFF
)

// Arch selects the target MCU family. Codes 0x03 and 0x04 mean different
// things on SiLabs and ARM parts, so callers must say which one they have.
type Arch int

const (
	ArchSiLabs Arch = iota
	ArchARM
)

func (a Arch) String() string {
	switch a {
	case ArchSiLabs:
		return "silabs"
	case ArchARM:
		return "arm"
	}
	return fmt.Sprintf("arch(%d)", int(a))
}

// ParseArch parses "silabs" or "arm".
func ParseArch(s string) (Arch, error) {
	switch s {
	case "silabs", "sil", "efm8":
		return ArchSiLabs, nil
	case "arm":
		return ArchARM, nil
	}
	return 0, errors.Errorf("escboot: unknown architecture %q", s)
}

// VerifyCommand returns the verify code for a.
func (a Arch) VerifyCommand() Command {
	if a == ArchARM {
		return CmdVerifyFlashARM
	}
	return CmdVerifyFlash
}

// Result is the single byte a bootloader answers with.
type Result byte

const (
	ResultSuccess      Result = 0x30
	ResultVerifyError  Result = 0xC0
	ResultCommandError Result = 0xC1
	ResultCRCError     Result = 0xC2
	ResultNone         Result = 0xFF
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultVerifyError:
		return "verify error"
	case ResultCommandError:
		return "command error"
	case ResultCRCError:
		return "crc error"
	case ResultNone:
		return "none"
	}
	return fmt.Sprintf("result 0x%02x", byte(r))
}

// ResultError is a non-success bootloader result.
type ResultError struct {
	Cmd    Command
	Result Result
}

// Error implements error.
func (e *ResultError) Error() string {
	return fmt.Sprintf("escboot: cmd 0x%02x: %s", byte(e.Cmd), e.Result)
}

// Frame appends the reflected CRC16, low byte first, to body.
func Frame(body []byte) []byte {
	sum := crc.CRC16Reflected(body)
	out := make([]byte, 0, len(body)+2)
	out = append(out, body...)
	return append(out, byte(sum), byte(sum>>8))
}

// CheckFrame verifies the trailing CRC of frame and returns the body.
func CheckFrame(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, errors.New("escboot: frame too short")
	}
	body := frame[:len(frame)-2]
	got := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	if want := crc.CRC16Reflected(body); got != want {
		return nil, errors.Errorf("escboot: crc %04x, expected %04x", got, want)
	}
	return body, nil
}

// Command bodies, without CRC.

// SetAddress points the bootloader at addr.
func SetAddress(addr uint16) []byte {
	return []byte{byte(CmdSetAddress), 0, byte(addr >> 8), byte(addr)}
}

// SetBuffer announces n bytes of data to follow as a raw frame.
func SetBuffer(n int) []byte {
	return []byte{byte(CmdSetBuffer), 0, byte(n >> 8), byte(n)}
}

// ProgramFlash writes the buffer at the current address.
func ProgramFlash() []byte {
	return []byte{byte(CmdProgramFlash), 0x01}
}

// EraseFlash erases the page at the current address.
func EraseFlash() []byte {
	return []byte{byte(CmdEraseFlash), 0x01}
}

// Verify checks the buffer against flash using the code for a.
func Verify(a Arch) []byte {
	return []byte{byte(a.VerifyCommand()), 0x01}
}

// Read requests n bytes (0 means 256) from the current address. SiLabs and
// ARM bootloaders both read flash with CmdReadFlashSil.
func Read(n int) []byte {
	return []byte{byte(CmdReadFlashSil), byte(n)}
}

// KeepAlive keeps the bootloader from timing out.
func KeepAlive() []byte {
	return []byte{byte(CmdKeepAlive), 0}
}

// Run starts the application.
func Run() []byte {
	return []byte{byte(CmdRun), 0, 0, 0}
}
