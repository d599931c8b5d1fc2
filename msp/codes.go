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
package msp

// MSP command codes used by this tool.
const (
	MspAPIVersion     uint16 = 1
	MspFCVariant      uint16 = 2
	MspFCVersion      uint16 = 3
	MspBoardInfo      uint16 = 4
	MspName           uint16 = 10
	MspReboot         uint16 = 68
	MspMotor          uint16 = 104
	MspSetMotor       uint16 = 214
	MspSetPassthrough uint16 = 245

	Msp2CommonSerialConfig uint16 = 0x1009
	Msp2SendDshotCommand   uint16 = 0x3003
)

// MaxMotors is the most motor values MSP_MOTOR and MSP_SET_MOTOR carry.
const MaxMotors = 16

// DshotCommandType tells the board how to send a DShot command.
type DshotCommandType uint8

const (
	// DshotInline mixes the command into the motor output stream.
	DshotInline DshotCommandType = iota
	// DshotBlocking stops the motor output while the command is sent.
	DshotBlocking
)

// DshotCommand is a special DShot command value.
type DshotCommand uint8

const (
	DshotMotorStop             DshotCommand = 0
	DshotBeacon1               DshotCommand = 1
	DshotBeacon2               DshotCommand = 2
	DshotBeacon3               DshotCommand = 3
	DshotBeacon4               DshotCommand = 4
	DshotBeacon5               DshotCommand = 5
	DshotESCInfo               DshotCommand = 6
	DshotSpinDirection1        DshotCommand = 7
	DshotSpinDirection2        DshotCommand = 8
	Dshot3DModeOff             DshotCommand = 9
	Dshot3DModeOn              DshotCommand = 10
	DshotSettingsRequest       DshotCommand = 11
	DshotSaveSettings          DshotCommand = 12
	DshotSpinDirectionNormal   DshotCommand = 20
	DshotSpinDirectionReversed DshotCommand = 21
)

// PassthroughMode selects what MSP_SET_PASSTHROUGH bridges the port to.
type PassthroughMode uint8

const (
	// PassthroughSerialID picks the serial port by identifier.
	PassthroughSerialID PassthroughMode = 0xFD
	// PassthroughSerialFunctionID picks the first port with a serial function.
	PassthroughSerialFunctionID PassthroughMode = 0xFE
	// PassthroughESC4Way starts the ESC 4-way interface.
	PassthroughESC4Way PassthroughMode = 0xFF
)

// RebootMode is the argument of MSP_REBOOT.
type RebootMode uint8

const (
	RebootFirmware RebootMode = iota
	RebootBootloaderROM
	RebootMSC
	RebootMSCUTC
	RebootBootloaderFlash
)

// Direction is the third preamble byte.
type Direction byte

const (
	// ToFC marks host to flight controller frames.
	ToFC Direction = '<'
	// FromFC marks flight controller replies.
	FromFC Direction = '>'
	// Unsupported is sent back for unknown commands.
	Unsupported Direction = '!'
)
