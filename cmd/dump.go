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
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robhaswell/bfctl/fc"
)

var dumpDir string

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the configuration from a connected flight controller",
	Args:  cobra.NoArgs,
	Run:   dumpBoard,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpDir, "out", "o", ".", "directory to write the craft directory into")
}

// Connect to the flight controller, request a diff and a dump and save them to files
func dumpBoard(cmd *cobra.Command, args []string) {
	f := connect()
	defer f.Close()

	dir := filepath.Join(expandPath(dumpDir), f.Name)
	base := fmt.Sprintf("%s_%d.%d.%d", f.Variant, f.VersionMajor, f.VersionMinor, f.VersionPatch)
	diffFilename := filepath.Join(dir, base+"_DIFF.txt")
	dumpFilename := filepath.Join(dir, base+"_DUMP.txt")

	diffAll, dumpAll, err := f.DumpConfig()
	if err != nil {
		fatal(f, err)
	}

	// Make the output directory if it doesn't exist
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		fatal(f, err)
	}
	if err := os.WriteFile(diffFilename, []byte(diffAll), 0644); err != nil {
		fatal(f, err)
	}
	if err := os.WriteFile(dumpFilename, []byte(dumpAll), 0644); err != nil {
		fatal(f, err)
	}
	fmt.Printf("Written files: %s, %s\n", diffFilename, dumpFilename)
}

// fatal closes the board connection and exits, since glog.Exit skips
// deferred calls.
func fatal(f *fc.FC, err error) {
	if cerr := f.Close(); cerr != nil {
		glog.Warningf("close %s: %v", f.PortName(), cerr)
	}
	glog.Exit(err)
}
