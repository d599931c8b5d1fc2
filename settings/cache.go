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
package settings

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robhaswell/bfctl/esc4way"
)

// Flash is the part of a selected ESC the cache needs.
type Flash interface {
	ReadFlash(addr uint16, buf []byte) (int, error)
	WriteFlash(addr uint16, data []byte) (int, error)
}

// Cache mirrors the settings page of the currently selected ESC. Every
// mutation rewrites the full page on the device before returning.
type Cache struct {
	dev    Flash
	region esc4way.Region
	block  Block
	cached bool
}

// NewCache returns an empty cache over dev's settings region. A new cache
// must be created whenever a different channel is selected.
func NewCache(dev Flash) *Cache {
	return &Cache{dev: dev, region: esc4way.SettingsRegion}
}

// Fetch reads the settings page from the device, replacing the mirror.
func (c *Cache) Fetch() error {
	var b Block
	if _, err := c.dev.ReadFlash(c.region.Addr, b[:]); err != nil {
		c.cached = false
		return errors.Wrap(err, "settings: fetch")
	}
	c.block = b
	c.cached = true
	glog.V(2).Infof("settings: fetched %d bytes at 0x%04x", Size, c.region.Addr)
	return nil
}

// Cached reports whether the mirror holds a fetched page.
func (c *Cache) Cached() bool {
	return c.cached
}

// Invalidate drops the mirror so the next access fetches again.
func (c *Cache) Invalidate() {
	c.cached = false
}

func (c *Cache) ensure() error {
	if c.cached {
		return nil
	}
	return c.Fetch()
}

// Block returns a copy of the mirrored page, fetching it first if needed.
func (c *Cache) Block() (Block, error) {
	if err := c.ensure(); err != nil {
		return Block{}, err
	}
	return c.block, nil
}

// Get decodes the named field from the mirror.
func (c *Cache) Get(name string) (Value, error) {
	if _, err := Lookup(name); err != nil {
		return Value{}, err
	}
	if err := c.ensure(); err != nil {
		return Value{}, err
	}
	return c.block.Get(name)
}

// Set encodes v into the named field and writes the page back.
func (c *Cache) Set(name string, v Value) error {
	if _, err := Lookup(name); err != nil {
		return err
	}
	return c.update(func(b *Block) error { return b.Set(name, v) })
}

// SetString parses s with the field's codec and writes the page back. Input
// that does not parse leaves the device untouched.
func (c *Cache) SetString(name, s string) error {
	f, err := Lookup(name)
	if err != nil {
		return err
	}
	v, err := f.Codec.Parse(s)
	if err != nil {
		return errors.Wrapf(err, "settings: %s", name)
	}
	return c.Set(name, v)
}

// SetMarker sets the boot marker and writes the page back.
func (c *Cache) SetMarker(m Marker) error {
	return c.update(func(b *Block) error { b.SetMarker(m); return nil })
}

// SetDeviceName sets the device name and writes the page back.
func (c *Cache) SetDeviceName(s string) error {
	return c.update(func(b *Block) error { b.SetDeviceName(s); return nil })
}

// SetVersion sets the firmware version and writes the page back.
func (c *Cache) SetVersion(major, minor uint8) error {
	return c.update(func(b *Block) error { b.SetVersion(major, minor); return nil })
}

// Store replaces the whole page and writes it to the device.
func (c *Cache) Store(b Block) error {
	c.block = b
	c.cached = true
	return c.writeBack()
}

func (c *Cache) update(fn func(*Block) error) error {
	if err := c.ensure(); err != nil {
		return err
	}
	b := c.block
	if err := fn(&b); err != nil {
		return err
	}
	c.block = b
	return c.writeBack()
}

func (c *Cache) writeBack() error {
	if _, err := c.dev.WriteFlash(c.region.Addr, c.block[:]); err != nil {
		// The device may hold a partial page now.
		c.cached = false
		return errors.Wrap(err, "settings: write back")
	}
	glog.V(2).Infof("settings: wrote %d bytes at 0x%04x", Size, c.region.Addr)
	return nil
}
