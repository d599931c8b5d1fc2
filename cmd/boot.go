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
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/escboot"
	"github.com/robhaswell/bfctl/link"
)

var (
	bootBaud  int
	bootViaFC int
)

// bootCmd groups the commands that talk to an ESC bootloader, wired either
// directly to the serial adapter or to a flight controller UART
var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Talk to an ESC bootloader on the serial port or behind the flight controller",
}

type bootSession struct {
	name   string
	closer io.Closer
	*escboot.Client
}

func (b *bootSession) Close() {
	if err := b.closer.Close(); err != nil {
		glog.Warningf("close %s: %v", b.name, err)
	}
}

// openBoot returns a bootloader client. --arch is required. With --via-fc
// the flight controller bridges the port to one of its UARTs first.
func openBoot() *bootSession {
	if archName == "" {
		glog.Exit("--arch is required for bootloader commands")
	}
	a := arch(escboot.ArchSiLabs)
	if bootViaFC >= 0 {
		f := connect()
		if err := f.SerialPassthrough(uint8(bootViaFC), bootBaud); err != nil {
			fatal(f, err)
		}
		if err := f.SetTimeout(escTimeout); err != nil {
			fatal(f, err)
		}
		name := fmt.Sprintf("%s port %d", f.PortName(), bootViaFC)
		return &bootSession{name: name, closer: f, Client: escboot.NewClient(f.Stream(), a)}
	}
	p, err := link.Open(link.Options{PortName: portName, BaudRate: bootBaud, Timeout: escTimeout})
	if err != nil {
		glog.Exit(err)
	}
	return &bootSession{name: p.Name(), closer: p, Client: escboot.NewClient(p, a)}
}

// fail closes the session and exits.
func (b *bootSession) fail(err error) {
	b.Close()
	glog.Exit(err)
}

var bootPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the bootloader answers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b := openBoot()
		defer b.Close()
		if err := b.KeepAlive(); err != nil {
			b.fail(err)
		}
		fmt.Printf("%s bootloader on %s is alive\n", b.Arch(), b.name)
	},
}

var bootReadCmd = &cobra.Command{
	Use:   "read <addr> <len>",
	Short: "Read up to 256 bytes of flash through the bootloader",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		addr := uint16(parseUint(args[0], 16))
		n := int(parseUint(args[1], 16))
		b := openBoot()
		defer b.Close()
		data, err := b.Read(addr, n)
		if err != nil {
			b.fail(err)
		}
		fmt.Print(hex.Dump(data))
	},
}

var bootVerifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Compare a firmware image with flash through the bootloader",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data := readImage(args[0])
		b := openBoot()
		defer b.Close()
		for off := 0; off < len(data); off += esc4way.ChunkSize {
			end := min(off+esc4way.ChunkSize, len(data))
			addr := esc4way.FirmwareRegion.Addr + uint16(off)
			if err := b.Verify(addr, data[off:end]); err != nil {
				b.fail(errors.Wrapf(err, "0x%04x", addr))
			}
		}
		fmt.Println("Firmware matches")
	},
}

var bootRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Leave the bootloader and start the application",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b := openBoot()
		defer b.Close()
		if err := b.Run(); err != nil {
			b.fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(bootCmd)
	bootCmd.PersistentFlags().IntVar(&bootBaud, "boot-baud", 19200, "bootloader baud rate")
	bootCmd.PersistentFlags().IntVar(&bootViaFC, "via-fc", -1, "reach the bootloader through this flight controller serial port")
	bootCmd.AddCommand(bootPingCmd, bootReadCmd, bootVerifyCmd, bootRunCmd)
}
