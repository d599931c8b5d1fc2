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
	"bufio"
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load the configuration in the specified file to the connected flight controller",
	Args:  cobra.ExactArgs(1),
	Run:   loadFile,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func loadFile(cmd *cobra.Command, args []string) {
	fileContents, err := os.ReadFile(expandPath(args[0]))
	if err != nil {
		glog.Exit(err)
	}

	var lines []string
	fileScanner := bufio.NewScanner(bytes.NewReader(fileContents))
	fileScanner.Split(bufio.ScanLines)
	for fileScanner.Scan() {
		lines = append(lines, fileScanner.Text())
	}
	if err := fileScanner.Err(); err != nil {
		glog.Exit(err)
	}

	f := connect()
	defer f.Close()

	// Each line's reply ends when the board goes quiet.
	if err := f.SetTimeout(100 * time.Millisecond); err != nil {
		fatal(f, err)
	}
	if err := f.LoadConfig(lines, func(line string) { fmt.Println(line) }); err != nil {
		fatal(f, err)
	}

	// The flight controller should reboot so no need to close the connection
	fmt.Println("\n\nConfiguration loaded")
}
