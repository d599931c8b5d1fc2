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
package flasher_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robhaswell/bfctl/esc4way"
	"github.com/robhaswell/bfctl/esc4way/esc4waytest"
	"github.com/robhaswell/bfctl/flasher"
	"github.com/robhaswell/bfctl/settings"
)

func image(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 3)
	}
	return b
}

func block(dev *esc4waytest.Device) *settings.Block {
	var b settings.Block
	copy(b[:], dev.Settings())
	return &b
}

func settingsWrites(dev *esc4waytest.Device) []settings.Block {
	var out []settings.Block
	for _, w := range dev.Writes() {
		if w.Addr == esc4way.SettingsRegion.Addr {
			var b settings.Block
			copy(b[:], w.Payload)
			out = append(out, b)
		}
	}
	return out
}

func TestFlashAllSuccess(t *testing.T) {
	dev := esc4waytest.New()
	dev.Settings()[0] = byte(settings.MarkerValid)
	dev.Settings()[settings.OffsetVersionMajor] = 2
	fw := image(1000)

	var progress []int
	res, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{
		Channel:  1,
		Firmware: bytes.NewReader(fw),
		Progress: func(n int) { progress = append(progress, n) },
	})
	require.NoError(t, err)
	require.Equal(t, 1000, res.Written)
	require.True(t, res.Info.Connected())
	require.Equal(t, []int{256, 512, 768, 1000}, progress)

	b := block(dev)
	require.Equal(t, settings.MarkerValid, b.Marker())
	require.Equal(t, flasher.NotReadyName, b.DeviceName())
	major, minor := b.Version()
	require.Zero(t, major)
	require.Zero(t, minor)
	require.Equal(t, fw, dev.Flash[0x1000:0x1000+1000])
	require.True(t, dev.Exited)
}

func TestFlashAllSettingsOrder(t *testing.T) {
	dev := esc4waytest.New()
	_, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Firmware: bytes.NewReader(image(10))})
	require.NoError(t, err)

	writes := settingsWrites(dev)
	require.Len(t, writes, 5)

	require.Equal(t, settings.MarkerInvalid, writes[0].Marker())
	require.Equal(t, flasher.FlashFailName, writes[1].DeviceName())
	require.Equal(t, settings.MarkerInvalid, writes[1].Marker())
	major, minor := writes[2].Version()
	require.Zero(t, major)
	require.Zero(t, minor)
	require.Equal(t, flasher.NotReadyName, writes[3].DeviceName())
	require.Equal(t, settings.MarkerInvalid, writes[3].Marker())
	require.Equal(t, settings.MarkerValid, writes[4].Marker())
	require.Equal(t, flasher.NotReadyName, writes[4].DeviceName())
}

func TestFlashAllProgramFailure(t *testing.T) {
	dev := esc4waytest.New()
	dev.Settings()[0] = byte(settings.MarkerValid)
	dev.Fault = func(tx esc4waytest.Transaction) esc4way.Ack {
		if tx.Cmd == esc4way.CmdDeviceWrite && tx.Addr == 0x1100 {
			return esc4way.AckGeneralError
		}
		return esc4way.AckOK
	}
	res, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Firmware: bytes.NewReader(image(1000))})
	step, ok := flasher.StepOf(err)
	require.True(t, ok)
	require.Equal(t, flasher.StepProgram, step)
	require.Equal(t, 256, res.Written)
	ack, ok := esc4way.AckOf(err)
	require.True(t, ok)
	require.Equal(t, esc4way.AckGeneralError, ack)

	b := block(dev)
	require.Equal(t, settings.MarkerInvalid, b.Marker())
	require.Equal(t, flasher.FlashFailName, b.DeviceName())
	require.False(t, dev.Exited)
}

func TestFlashAllFailsBeforeValid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write int
		step  flasher.Step
	}{
		{"invalidate", 0, flasher.StepInvalidate},
		{"flash fail", 1, flasher.StepMarkFlashFail},
		{"version", 2, flasher.StepResetVersion},
		{"not ready", 3, flasher.StepMarkNotReady},
		{"validate", 4, flasher.StepValidate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := esc4waytest.New()
			seen := 0
			dev.Fault = func(tx esc4waytest.Transaction) esc4way.Ack {
				if tx.Cmd != esc4way.CmdDeviceWrite || tx.Addr != esc4way.SettingsRegion.Addr {
					return esc4way.AckOK
				}
				seen++
				if seen-1 == tc.write {
					return esc4way.AckGeneralError
				}
				return esc4way.AckOK
			}
			_, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Firmware: bytes.NewReader(image(300))})
			step, ok := flasher.StepOf(err)
			require.True(t, ok)
			require.Equal(t, tc.step, step)
			require.NotEqual(t, settings.MarkerValid, block(dev).Marker())
		})
	}
}

func TestFlashAllSelectFailure(t *testing.T) {
	dev := esc4waytest.New()
	_, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Channel: 9, Firmware: bytes.NewReader(image(10))})
	require.True(t, flasher.IsChannelInit(err))
	require.Empty(t, dev.Writes())
	require.Zero(t, dev.Count(esc4way.CmdDeviceRead))
}

func TestFlashAllExitFailureKeepsValid(t *testing.T) {
	dev := esc4waytest.New()
	dev.Fault = func(tx esc4waytest.Transaction) esc4way.Ack {
		if tx.Cmd == esc4way.CmdInterfaceExit {
			return esc4way.AckGeneralError
		}
		return esc4way.AckOK
	}
	_, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Firmware: bytes.NewReader(image(10))})
	step, ok := flasher.StepOf(err)
	require.True(t, ok)
	require.Equal(t, flasher.StepExit, step)
	require.False(t, flasher.IsChannelInit(err))
	require.Equal(t, settings.MarkerValid, block(dev).Marker())
}

func TestFlashAllImageTooLarge(t *testing.T) {
	dev := esc4waytest.New()
	region := esc4way.Region{Addr: 0x1000, Size: 512}
	_, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{
		Firmware: bytes.NewReader(image(600)),
		Region:   region,
	})
	require.True(t, errors.Is(err, flasher.ErrImageTooLarge))
	require.Equal(t, settings.MarkerInvalid, block(dev).Marker())
}

func TestFlashAllEmptyImage(t *testing.T) {
	dev := esc4waytest.New()
	dev.Settings()[0] = byte(settings.MarkerValid)
	res, err := flasher.FlashAll(esc4way.New(dev), flasher.Options{Firmware: bytes.NewReader(nil)})
	require.True(t, errors.Is(err, flasher.ErrEmptyImage))
	step, ok := flasher.StepOf(err)
	require.True(t, ok)
	require.Equal(t, flasher.StepProgram, step)
	require.Zero(t, res.Written)

	b := block(dev)
	require.Equal(t, settings.MarkerInvalid, b.Marker())
	require.Equal(t, flasher.FlashFailName, b.DeviceName())
	require.False(t, dev.Exited)
	for _, w := range dev.Writes() {
		require.Equal(t, esc4way.SettingsRegion.Addr, w.Addr)
	}
}

func TestStepString(t *testing.T) {
	require.Equal(t, "program firmware", flasher.StepProgram.String())
	require.Equal(t, "step 12", flasher.Step(12).String())
}
