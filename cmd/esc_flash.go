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
package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/flasher"
)

var (
	dumpAddr uint16
	dumpLen  int
)

var escWriteCmd = &cobra.Command{
	Use:   "write <addr> <byte>",
	Short: "Patch one byte of ESC flash",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		addr := uint16(parseUint(args[0], 16))
		v := byte(parseUint(args[1], 8))
		s := openESC(true)
		defer s.close()
		s.check(s.esc.PatchByte(addr, v))
	},
}

var escDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Save ESC flash to a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := expandPath(args[0])
		s := openESC(true)
		defer s.close()
		buf := make([]byte, dumpLen)
		n, err := s.esc.ReadFlash(dumpAddr, buf)
		s.check(err)
		s.check(os.WriteFile(path, buf[:n], 0644))
		fmt.Printf("Written %d bytes from 0x%04x to %s\n", n, dumpAddr, path)
	},
}

func readImage(path string) []byte {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		glog.Exit(err)
	}
	if len(data) > esc4way.FirmwareRegion.Size {
		glog.Exitf("%s is %d bytes, the firmware region holds %d", path, len(data), esc4way.FirmwareRegion.Size)
	}
	return data
}

var escFlashCmd = &cobra.Command{
	Use:   "flash <file>",
	Short: "Write a firmware image without touching the settings page",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data := readImage(args[0])
		s := openESC(true)
		defer s.close()
		_, err := flasher.WriteImage(s.esc, esc4way.FirmwareRegion, bytes.NewReader(data), progress(len(data)))
		s.check(err)
	},
}

var escVerifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Compare a firmware image with ESC flash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data := readImage(args[0])
		s := openESC(true)
		defer s.close()
		n, err := s.esc.Verify(esc4way.FirmwareRegion.Addr, data)
		if ack, ok := esc4way.AckOf(err); ok && ack == esc4way.AckVerifyError {
			s.fail(errors.Errorf("mismatch in the chunk at 0x%04x", int(esc4way.FirmwareRegion.Addr)+n))
		}
		s.check(err)
		fmt.Println("Firmware matches")
	},
}

var escFlashAllCmd = &cobra.Command{
	Use:   "flashall <file>",
	Short: "Reflash the selected ESC, keeping it in the bootloader unless the whole image is written",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data := readImage(args[0])
		s := openESC(false)
		res, err := flasher.FlashAll(s.esc, flasher.Options{
			Channel:  escChannel,
			Firmware: bytes.NewReader(data),
			Progress: progress(len(data)),
		})
		if step, ok := flasher.StepOf(err); ok && step == flasher.StepExit {
			// The firmware is valid; only leaving the session failed.
			glog.Warningf("Firmware written but %v", err)
			s.fc.Close()
			return
		}
		if err != nil {
			s.fail(err)
		}
		s.fc.Close()
		fmt.Printf("Flashed %d bytes to ESC %d (%s)\n", res.Written, escChannel, res.Info.Mode)
	},
}

func init() {
	escDumpCmd.Flags().Uint16Var(&dumpAddr, "addr", 0, "start address")
	escDumpCmd.Flags().IntVar(&dumpLen, "len", esc4way.SettingsRegion.End(), "number of bytes")
	escCmd.AddCommand(escWriteCmd, escDumpCmd, escFlashCmd, escVerifyCmd, escFlashAllCmd)
}
