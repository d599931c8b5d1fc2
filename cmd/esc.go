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

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/fc"
	"github.com/robhaswell/bfctl/settings"
)

var escChannel uint8

// escCmd groups the commands that run over 4-way passthrough
var escCmd = &cobra.Command{
	Use:   "esc",
	Short: "Inspect, configure and reflash ESCs through 4-way passthrough",
}

func init() {
	rootCmd.AddCommand(escCmd)
	escCmd.PersistentFlags().Uint8VarP(&escChannel, "channel", "c", 0, "ESC channel (motor index, from 0)")
}

// escSession is one passthrough session on the flight controller port.
type escSession struct {
	fc    *fc.FC
	esc   *esc4way.ESC
	info  esc4way.DeviceInfo
	count int
}

// openESC enters passthrough and, when sel is set, selects --channel.
func openESC(sel bool) *escSession {
	f := connect()
	n, err := f.EnterESCPassthrough(escChannel)
	if err != nil {
		f.Close()
		glog.Exit(err)
	}
	s := &escSession{fc: f, esc: f.ESC(), count: n}
	if int(escChannel) >= n {
		s.fail(errors.Errorf("channel %d out of range, %d ESCs found", escChannel, n))
	}
	if err := f.SetTimeout(escTimeout); err != nil {
		s.fail(err)
	}
	if sel {
		info, err := s.esc.SelectChannel(escChannel)
		if err != nil {
			s.fail(errors.Errorf("cannot select ESC %d: %v", escChannel, err))
		}
		s.info = info
	}
	return s
}

func (s *escSession) close() {
	if err := s.esc.Exit(); err != nil {
		glog.Warningf("Leaving passthrough: %v", err)
	}
	s.fc.Close()
}

// fail leaves passthrough and exits.
func (s *escSession) fail(err error) {
	s.close()
	glog.Exit(err)
}

func (s *escSession) check(err error) {
	if err != nil {
		s.fail(err)
	}
}

func parseUint(s string, bits int) uint64 {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		glog.Exitf("Invalid number %q: %v", s, err)
	}
	return v
}

func printBlock(b *settings.Block) {
	for _, f := range settings.Fields() {
		v, _ := b.Get(f.Name)
		fmt.Printf("%-8s %-20s %s%s%s\n", f.Name, f.Desc, v, f.Units, bounds(f.Bounds))
	}
}

func bounds(b *settings.Bounds) string {
	if b == nil || b.IsBool() {
		return ""
	}
	s := fmt.Sprintf("  [%d..%d]", b.Min, b.Max)
	if b.Off >= 0 {
		s += fmt.Sprintf(" off=%d", b.Off)
	}
	return s
}

func progress(total int) func(int) {
	return func(n int) {
		fmt.Printf("\r%d/%d bytes", n, total)
		if n >= total {
			fmt.Println()
		}
	}
}
