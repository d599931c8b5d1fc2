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

	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/esc4way"
)

var escInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the 4-way interface and the selected ESC",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openESC(true)
		defer s.close()
		name, err := s.esc.InterfaceName()
		s.check(err)
		proto, err := s.esc.ProtocolVersion()
		s.check(err)
		iv, err := s.esc.InterfaceVersion()
		s.check(err)
		fmt.Printf("Interface: %s %d.%d (protocol %d)\n", name, iv>>8, iv&0xFF, proto)
		fmt.Printf("ESCs:      %d\n", s.count)
		fmt.Printf("ESC %d:     % x mode %s, bootloader %s\n", escChannel, s.info.Raw, s.info.Mode, arch(s.info.Mode.Arch()))
	},
}

var escResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restart the selected ESC",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openESC(false)
		defer s.close()
		s.check(s.esc.Reset(escChannel))
	},
}

var escEraseCmd = &cobra.Command{
	Use:   "erase [page]",
	Short: "Erase one flash page, or the whole ESC flash",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openESC(true)
		defer s.close()
		if len(args) == 1 {
			s.check(s.esc.PageErase(uint8(parseUint(args[0], 8))))
			return
		}
		s.check(s.esc.EraseAll())
	},
}

var escSendCmd = &cobra.Command{
	Use:   "send <cmd> <addr> [byte...]",
	Short: "Send a raw 4-way command to the selected ESC and print the reply",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := esc4way.Command(parseUint(args[0], 8))
		addr := uint16(parseUint(args[1], 16))
		var out []byte
		for _, a := range args[2:] {
			out = append(out, byte(parseUint(a, 8)))
		}
		s := openESC(true)
		defer s.close()
		in, err := s.esc.Send(c, addr, out)
		if ack, ok := esc4way.AckOf(err); ok {
			fmt.Printf("ack 0x%02x (%s)\n", byte(ack), ack)
		} else {
			s.check(err)
		}
		fmt.Print(hex.Dump(in))
	},
}

func init() {
	escCmd.AddCommand(escInfoCmd, escResetCmd, escEraseCmd, escSendCmd)
}
