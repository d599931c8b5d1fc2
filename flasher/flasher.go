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

// Package flasher reprograms ESC firmware through the 4-way interface so
// that an interrupted run never leaves the ESC marked bootable.
package flasher

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/settings"
)

// Names written to the settings page while flashing. Both fill the whole
// 12-byte name field.
const (
	FlashFailName = "FLASH FAIL  "
	NotReadyName  = "NOT READY   "
)

// ErrImageTooLarge is returned when the firmware does not fit its region.
var ErrImageTooLarge = errors.New("flasher: image larger than firmware region")

// ErrEmptyImage is returned when the firmware image holds no bytes.
var ErrEmptyImage = errors.New("flasher: empty firmware image")

// Step identifies one stage of FlashAll.
type Step int

const (
	StepSelectChannel Step = iota + 1
	StepInvalidate
	StepMarkFlashFail
	StepResetVersion
	StepProgram
	StepMarkNotReady
	StepValidate
	StepExit
)

func (s Step) String() string {
	switch s {
	case StepSelectChannel:
		return "select channel"
	case StepInvalidate:
		return "invalidate"
	case StepMarkFlashFail:
		return "mark flash fail"
	case StepResetVersion:
		return "reset version"
	case StepProgram:
		return "program firmware"
	case StepMarkNotReady:
		return "mark not ready"
	case StepValidate:
		return "validate"
	case StepExit:
		return "exit"
	}
	return fmt.Sprintf("step %d", int(s))
}

// SequenceError reports the step at which FlashAll stopped. Unless Step is
// StepExit the settings marker on the device is not valid.
type SequenceError struct {
	Step Step
	Err  error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("flasher: step %d (%s): %v", int(e.Step), e.Step, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

// StepOf returns the failed step carried by err.
func StepOf(err error) (Step, bool) {
	var se *SequenceError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return 0, false
}

// IsChannelInit reports whether err is a channel selection failure, in which
// case the device was not touched.
func IsChannelInit(err error) bool {
	s, ok := StepOf(err)
	return ok && s == StepSelectChannel
}

// Device is the part of the 4-way transport FlashAll drives.
type Device interface {
	settings.Flash
	SelectChannel(ch uint8) (esc4way.DeviceInfo, error)
	Exit() error
}

// Options configure FlashAll.
type Options struct {
	Channel  uint8
	Firmware io.Reader
	// Region defaults to esc4way.FirmwareRegion.
	Region esc4way.Region
	// Progress, when set, is called after every written chunk.
	Progress func(written int)
}

// Result describes a completed FlashAll.
type Result struct {
	Info    esc4way.DeviceInfo
	Written int
}

// FlashAll selects the channel and writes the firmware, bracketing the write
// with settings updates: the marker is cleared before any firmware byte is
// written and only set again after the whole image is in place.
func FlashAll(dev Device, opts Options) (Result, error) {
	var res Result
	region := opts.Region
	if region.Size == 0 {
		region = esc4way.FirmwareRegion
	}

	info, err := dev.SelectChannel(opts.Channel)
	if err != nil {
		return res, &SequenceError{Step: StepSelectChannel, Err: err}
	}
	res.Info = info
	glog.V(1).Infof("flasher: channel %d selected (%s)", opts.Channel, info.Mode)

	// A new channel means a new settings page.
	cache := settings.NewCache(dev)
	steps := []struct {
		step Step
		run  func() error
	}{
		{StepInvalidate, func() error { return cache.SetMarker(settings.MarkerInvalid) }},
		{StepMarkFlashFail, func() error { return cache.SetDeviceName(FlashFailName) }},
		{StepResetVersion, func() error { return cache.SetVersion(0, 0) }},
		{StepProgram, func() error {
			n, err := WriteImage(dev, region, opts.Firmware, opts.Progress)
			res.Written = n
			return err
		}},
		{StepMarkNotReady, func() error { return cache.SetDeviceName(NotReadyName) }},
		{StepValidate, func() error { return cache.SetMarker(settings.MarkerValid) }},
		{StepExit, dev.Exit},
	}
	for _, s := range steps {
		glog.V(1).Infof("flasher: %s", s.step)
		if err := s.run(); err != nil {
			glog.Warningf("flasher: %s failed: %v", s.step, err)
			return res, &SequenceError{Step: s.step, Err: err}
		}
	}
	return res, nil
}

// WriteImage streams r into region in chunks of at most esc4way.ChunkSize,
// stopping at the first failed chunk. It returns the bytes written. An image
// with no bytes is an error.
func WriteImage(dev settings.Flash, region esc4way.Region, r io.Reader, progress func(int)) (int, error) {
	if r == nil {
		return 0, errors.New("flasher: no firmware image")
	}
	buf := make([]byte, esc4way.ChunkSize)
	written := 0
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if written+n > region.Size {
				return written, errors.Wrapf(ErrImageTooLarge, "%d > %d bytes", written+n, region.Size)
			}
			addr := region.Addr + uint16(written)
			w, err := dev.WriteFlash(addr, buf[:n])
			written += w
			if err != nil {
				return written, errors.Wrapf(err, "write 0x%04x", addr)
			}
			if progress != nil {
				progress(written)
			}
		}
		switch rerr {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			if written == 0 {
				return 0, ErrEmptyImage
			}
			return written, nil
		default:
			return written, errors.Wrap(rerr, "flasher: read image")
		}
	}
}
