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
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/fc"
	"github.com/robhaswell/bfctl/msp"
)

var (
	dshotBlocking bool
	passBaud      int
	passVia       string
)

var dshotCommands = map[string]msp.DshotCommand{
	"stop":     msp.DshotMotorStop,
	"beacon1":  msp.DshotBeacon1,
	"beacon2":  msp.DshotBeacon2,
	"beacon3":  msp.DshotBeacon3,
	"beacon4":  msp.DshotBeacon4,
	"beacon5":  msp.DshotBeacon5,
	"info":     msp.DshotESCInfo,
	"dir1":     msp.DshotSpinDirection1,
	"dir2":     msp.DshotSpinDirection2,
	"3d-off":   msp.Dshot3DModeOff,
	"3d-on":    msp.Dshot3DModeOn,
	"settings": msp.DshotSettingsRequest,
	"save":     msp.DshotSaveSettings,
	"normal":   msp.DshotSpinDirectionNormal,
	"reversed": msp.DshotSpinDirectionReversed,
}

func parseDshot(s string) (msp.DshotCommand, error) {
	if c, ok := dshotCommands[strings.ToLower(s)]; ok {
		return c, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Errorf("unknown DShot command %q", s)
	}
	return msp.DshotCommand(v), nil
}

var dshotCmd = &cobra.Command{
	Use:   "dshot <motor|all> <command>...",
	Short: "Send DShot commands to a motor",
	Long: `Send DShot commands to one motor, counted from 0, or to all motors.
Commands are numbers or one of: stop, beacon1-5, info, dir1, dir2, 3d-off,
3d-on, settings, save, normal, reversed.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		motor := fc.AllMotors
		if args[0] != "all" {
			motor = uint8(parseUint(args[0], 8))
		}
		cmds := make([]msp.DshotCommand, 0, len(args)-1)
		for _, a := range args[1:] {
			c, err := parseDshot(a)
			if err != nil {
				glog.Exit(err)
			}
			cmds = append(cmds, c)
		}
		kind := msp.DshotInline
		if dshotBlocking {
			kind = msp.DshotBlocking
		}
		f := connect()
		defer f.Close()
		if err := f.SendDshot(kind, motor, cmds...); err != nil {
			fatal(f, err)
		}
	},
}

var motorCmd = &cobra.Command{
	Use:   "motor [value]...",
	Short: "Show the motor outputs, or set them starting at the first motor",
	Run: func(cmd *cobra.Command, args []string) {
		vals := make([]uint16, len(args))
		for i, a := range args {
			vals[i] = uint16(parseUint(a, 16))
		}
		f := connect()
		defer f.Close()
		if len(vals) > 0 {
			if err := f.SetMotors(vals); err != nil {
				fatal(f, err)
			}
		}
		vals, err := f.Motors()
		if err != nil {
			fatal(f, err)
		}
		fmt.Println("Motor values:")
		for i, v := range vals {
			fmt.Printf("  %2d: %d\n", i, v)
		}
	},
}

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Show the serial port configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		f := connect()
		defer f.Close()
		ports, err := f.SerialPorts()
		if err != nil {
			fatal(f, err)
		}
		fmt.Printf("Serial ports: %d\n", len(ports))
		for _, p := range ports {
			fmt.Printf("  %3d: functions 0x%08x msp %d gps %d telemetry %d blackbox %d\n",
				p.ID, p.Functions, p.MSPBaud, p.GPSBaud, p.TelemetryBaud, p.BlackboxBaud)
		}
	},
}

var passCmd = &cobra.Command{
	Use:   "pass [port]",
	Short: "Bridge the connection to a serial port of the flight controller",
	Long: `Bridge the connection to a flight controller serial port. With --via=cli
or --via=id the argument is the port identifier shown by "serial"; with
--via=function it is a serial function number. The MSP methods keep the
port's configured rate. The bridge lasts until the board is power cycled.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var id uint8
		if len(args) == 1 {
			id = uint8(parseUint(args[0], 8))
		}
		f := connect()
		defer f.Close()
		var err error
		switch passVia {
		case "cli":
			err = f.SerialPassthrough(id, passBaud)
		case "id":
			err = f.SerialPassthroughMSP(msp.PassthroughSerialID, id)
		case "function":
			err = f.SerialPassthroughMSP(msp.PassthroughSerialFunctionID, id)
		default:
			err = errors.Errorf("unknown passthrough method %q", passVia)
		}
		if err != nil {
			fatal(f, err)
		}
		fmt.Printf("Port %d bridged to %s\n", id, f.PortName())
	},
}

func init() {
	rootCmd.AddCommand(dshotCmd, motorCmd, serialCmd, passCmd)
	dshotCmd.Flags().BoolVar(&dshotBlocking, "blocking", false, "stop motor output while the commands are sent")
	passCmd.Flags().IntVar(&passBaud, "pass-baud", fc.SerialPassthroughBaud, "baud rate of the bridged port")
	passCmd.Flags().StringVar(&passVia, "via", "cli", "passthrough method: cli, id or function")
}
