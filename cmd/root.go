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
	"flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/escboot"
	"github.com/robhaswell/bfctl/fc"
	"github.com/robhaswell/bfctl/link"
)

var (
	portName   string
	baudRate   int
	timeout    time.Duration
	escTimeout time.Duration
	archName   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bfctl",
	Short: "Configure and reflash ESCs through a Betaflight flight controller",
	Long: `This application connects to a Betaflight flight controller over MSP.

It can dump and restore the flight controller configuration, and it can bridge
the serial port to the ESCs (4-way passthrough) to inspect and edit their
settings page or reflash their firmware.

The 'dump' command will create files in a directory matching the craft_name, with filenames matching the version of Betaflight. E.g.:

My Quad/BTFL_4.4.2_DUMP.txt
My Quad/BTFL_4.4.2_DIFF.txt

Use the 'load' command and pass a filename to load the contents of a file to the connected flight controller.

Use the 'esc' commands to talk to the ESCs, e.g.:

bfctl esc sdump -c 0
bfctl esc flashall -c 1 firmware.bin
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// glog reads its flags from the standard flag set.
		flag.CommandLine.Parse(nil)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer glog.Flush()
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	def := link.DefaultOptions()
	rootCmd.PersistentFlags().StringVarP(&portName, "device", "d", "", "serial device (default: most recently connected port)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", def.BaudRate, "baud rate")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", def.Timeout, "read timeout for MSP requests")
	rootCmd.PersistentFlags().DurationVar(&escTimeout, "esc-timeout", fc.ESCTimeout, "read timeout for ESC operations")
	rootCmd.PersistentFlags().StringVar(&archName, "arch", "", "ESC bootloader architecture: silabs or arm (default: from the interface mode)")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// connect opens the flight controller session or exits.
func connect() *fc.FC {
	f, err := fc.NewFC(fc.FCOptions{
		PortName: portName,
		BaudRate: baudRate,
		Timeout:  timeout,
	})
	if err != nil {
		glog.Exitf("Cannot connect to the flight controller: %v", err)
	}
	return f
}

// arch returns the --arch setting, or fallback when it is unset.
func arch(fallback escboot.Arch) escboot.Arch {
	if archName == "" {
		return fallback
	}
	a, err := escboot.ParseArch(archName)
	if err != nil {
		glog.Exit(err)
	}
	return a
}

func expandPath(p string) string {
	x, err := homedir.Expand(p)
	if err != nil {
		glog.Exit(err)
	}
	return x
}
