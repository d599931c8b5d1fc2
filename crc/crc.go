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

// Package crc implements the three checksums spoken on the wire: the 8-bit
// MSP checksum, the XMODEM CRC used by 4-way interface frames and the
// bit-reflected CRC used by ESC bootloader frames. They are not
// interchangeable.
package crc

import (
	"sync"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

// MSPPoly is the CRC8 polynomial used by MSPv2 frames (DVB-S2).
const MSPPoly = 0xD5

var (
	xmodemTable    = crc16.MakeTable(crc16.CRC16_XMODEM)
	reflectedTable = crc16.MakeTable(crc16.CRC16_ARC)

	crc8Mu     sync.Mutex
	crc8Tables = map[uint8]*crc8.Table{}
)

func crc8Table(poly uint8) *crc8.Table {
	crc8Mu.Lock()
	defer crc8Mu.Unlock()
	t, ok := crc8Tables[poly]
	if !ok {
		t = crc8.MakeTable(crc8.Params{Poly: poly, Name: "CRC-8"})
		crc8Tables[poly] = t
	}
	return t
}

// CRC8 computes an MSB-first CRC8 with zero init over data using poly.
func CRC8(data []byte, poly uint8) uint8 {
	return crc8.Checksum(data, crc8Table(poly))
}

// CRC16XModem continues a CRC16/XMODEM (poly 0x1021, MSB first) computation
// from seed. 4-way frames always start from 0.
func CRC16XModem(data []byte, seed uint16) uint16 {
	return crc16.Complete(crc16.Update(seed, data, xmodemTable), xmodemTable)
}

// CRC16Reflected computes the reflected CRC16 (poly 0xA001, LSB first, zero
// init) used by ESC bootloader frames.
func CRC16Reflected(data []byte) uint16 {
	return crc16.Checksum(data, reflectedTable)
}
