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
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/msp"
)

var rebootModes = map[string]msp.RebootMode{
	"firmware":   msp.RebootFirmware,
	"bootloader": msp.RebootBootloaderROM,
	"msc":        msp.RebootMSC,
	"msc-utc":    msp.RebootMSCUTC,
	"flash-boot": msp.RebootBootloaderFlash,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the firmware and craft name of the connected flight controller",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		f := connect()
		defer f.Close()
		fmt.Printf("Port:    %s\nAPI:     %d.%d\nBoard:   %s\n", f.PortName(), f.APIMajor, f.APIMinor, f.Board)
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot [firmware|bootloader|msc|msc-utc|flash-boot]",
	Short: "Reboot the flight controller",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mode := msp.RebootFirmware
		if len(args) == 1 {
			m, ok := rebootModes[strings.ToLower(args[0])]
			if !ok {
				glog.Exitf("Unknown reboot mode %q", args[0])
			}
			mode = m
		}
		f := connect()
		defer f.Close()
		if err := f.Reboot(mode); err != nil {
			fatal(f, err)
		}
		fmt.Println("Rebooting")
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(rebootCmd)
}
