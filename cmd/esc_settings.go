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
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/settings"
)

var escSdumpCmd = &cobra.Command{
	Use:   "sdump",
	Short: "Print the settings of the selected ESC",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openESC(true)
		defer s.close()
		b, err := settings.NewCache(s.esc).Block()
		s.check(err)
		printBlock(&b)
	},
}

var escSgetCmd = &cobra.Command{
	Use:   "sget <field>",
	Short: "Print one setting of the selected ESC",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openESC(true)
		defer s.close()
		v, err := settings.NewCache(s.esc).Get(args[0])
		s.check(err)
		fmt.Println(v)
	},
}

var escSsetCmd = &cobra.Command{
	Use:   "sset <field> <value> [<field> <value>...]",
	Short: "Change settings of the selected ESC; each change rewrites the settings page",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return errors.Errorf("expected field and value pairs")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		values := make([]settings.Value, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			f, err := settings.Lookup(args[i])
			if err != nil {
				glog.Exit(err)
			}
			v, err := f.Codec.Parse(args[i+1])
			if err != nil {
				glog.Exitf("%s: %v", args[i], err)
			}
			values = append(values, v)
		}
		s := openESC(true)
		defer s.close()
		c := settings.NewCache(s.esc)
		for i := 0; i < len(args); i += 2 {
			s.check(c.Set(args[i], values[i/2]))
			v, _ := c.Get(args[i])
			fmt.Printf("%s = %s\n", args[i], v)
		}
	},
}

var escMarkCmd = &cobra.Command{
	Use:   "mark <valid|invalid>",
	Short: "Set the boot marker of the selected ESC",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var m settings.Marker
		switch strings.ToLower(args[0]) {
		case "valid", "1":
			m = settings.MarkerValid
		case "invalid", "0":
			m = settings.MarkerInvalid
		default:
			glog.Exitf("Unknown marker %q", args[0])
		}
		s := openESC(true)
		defer s.close()
		s.check(settings.NewCache(s.esc).SetMarker(m))
	},
}

var escSreadCmd = &cobra.Command{
	Use:   "sread <file>",
	Short: "Save the settings page of the selected ESC to a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := expandPath(args[0])
		s := openESC(true)
		defer s.close()
		b, err := settings.NewCache(s.esc).Block()
		s.check(err)
		s.check(settings.WriteFile(path, b))
		fmt.Printf("Written %s\n", path)
	},
}

var escSwriteCmd = &cobra.Command{
	Use:   "swrite <file>",
	Short: "Write a settings file to the selected ESC",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := settings.ReadFile(expandPath(args[0]))
		if err != nil {
			glog.Exit(err)
		}
		s := openESC(true)
		defer s.close()
		s.check(settings.NewCache(s.esc).Store(b))
	},
}

var escSfdumpCmd = &cobra.Command{
	Use:   "sfdump <file>",
	Short: "Print the settings stored in a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := settings.ReadFile(expandPath(args[0]))
		if err != nil {
			glog.Exit(err)
		}
		printBlock(&b)
	},
}

var escSfsetCmd = &cobra.Command{
	Use:   "sfset <file> <field> <value>",
	Short: "Change one setting stored in a file",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		path := expandPath(args[0])
		b, err := settings.ReadFile(path)
		if err != nil {
			glog.Exit(err)
		}
		if err := b.SetString(args[1], args[2]); err != nil {
			glog.Exit(err)
		}
		if err := settings.WriteFile(path, b); err != nil {
			glog.Exit(err)
		}
	},
}

func init() {
	escCmd.AddCommand(escSdumpCmd, escSgetCmd, escSsetCmd, escMarkCmd,
		escSreadCmd, escSwriteCmd, escSfdumpCmd, escSfsetCmd)
}
