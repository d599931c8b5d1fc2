/*
MIT License

Copyright (c) 2018 Alberto Garcia Hierro <alberto@garciahierro.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package fc

import (
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/link"
)

const (
	cliBanner = "Entering CLI Mode"
	cliOp     = "cli"
)

// CLIDeadline bounds how long a CLI reply with a completion check may take.
var CLIDeadline = 5 * time.Second

// ErrCLITimeout is returned when a CLI reply does not complete in time.
var ErrCLITimeout = errors.New("fc: timed out waiting for CLI output")

// EnterCLI switches the board to its text CLI and waits for the banner.
func (f *FC) EnterCLI() error {
	_, err := f.cli("#", func(s string) bool { return strings.Contains(s, cliBanner) })
	return err
}

// CLICommand sends one CLI line and returns the reply. With a nil done the
// reply ends at the first quiet read; otherwise reading continues until done
// accepts the output or CLIDeadline passes.
func (f *FC) CLICommand(line string, done func(string) bool) (string, error) {
	return f.cli(line, done)
}

// ExitCLI leaves the CLI. The board reboots without a reply.
func (f *FC) ExitCLI() error {
	if err := link.WriteAll(f.stream, []byte("exit\r\n")); err != nil {
		return link.Fail(cliOp, err)
	}
	return nil
}

// DumpConfig enters the CLI, collects "diff all" and "dump all" and leaves
// the CLI again, also when a command fails.
func (f *FC) DumpConfig() (diff, dump string, err error) {
	if err := f.EnterCLI(); err != nil {
		return "", "", err
	}
	defer func() {
		if xerr := f.ExitCLI(); err == nil {
			err = xerr
		}
	}()
	if diff, err = f.CLICommand("diff all", SaveTerminated); err != nil {
		return "", "", err
	}
	if dump, err = f.CLICommand("dump all", SaveTerminated); err != nil {
		return "", "", err
	}
	return diff, dump, nil
}

// LoadConfig enters the CLI and sends every non-empty line followed by
// "save", which reboots the board. echo, when set, sees each line before it
// is sent. On failure the CLI is left without saving.
func (f *FC) LoadConfig(lines []string, echo func(string)) error {
	if err := f.EnterCLI(); err != nil {
		return err
	}
	for _, line := range append(lines[:len(lines):len(lines)], "save") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if echo != nil {
			echo(line)
		}
		if _, err := f.CLICommand(line, nil); err != nil {
			if xerr := f.ExitCLI(); xerr != nil {
				glog.Warningf("fc: leave CLI: %v", xerr)
			}
			return err
		}
	}
	return nil
}

// SaveTerminated reports whether a diff or dump output is complete.
func SaveTerminated(s string) bool {
	return strings.Contains(s, "\r\nsave\r\n") || strings.HasSuffix(s, "\r\nsave")
}

func (f *FC) cli(line string, done func(string) bool) (string, error) {
	if err := link.WriteAll(f.stream, []byte(line+"\r\n")); err != nil {
		return "", link.Fail(cliOp, err)
	}
	var out strings.Builder
	buf := make([]byte, 1024)
	start := time.Now()
	for {
		n, err := f.stream.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			return out.String(), link.Fail(cliOp, err)
		}
		if done != nil && done(out.String()) {
			return out.String(), nil
		}
		if n > 0 {
			continue
		}
		if done == nil {
			return out.String(), nil
		}
		if time.Since(start) > CLIDeadline {
			return out.String(), errors.Wrapf(ErrCLITimeout, "%q", line)
		}
	}
}
