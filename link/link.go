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

// Package link is the byte-stream boundary shared by the MSP and 4-way
// protocol layers. A Stream is borrowed for one transaction at a time; its
// lifecycle belongs to the caller.
package link

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/golang/glog"
)

// Stream is a half-duplex byte stream with a bounded read timeout. A read
// that times out returns 0 bytes and a nil error.
type Stream interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// ReadExactly reads len(buf) bytes from s. It gives up as soon as a read
// returns no data, which on a serial port means the read timeout expired.
func ReadExactly(s Stream, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := s.Read(buf[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, ErrShortRead
		}
	}
	trace("in", buf[:got])
	return got, nil
}

// ReadAvailable performs one bounded read into buf, collecting bytes until
// buf is full or the stream goes quiet.
func ReadAvailable(s Stream, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := s.Read(buf[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			break
		}
	}
	trace("in", buf[:got])
	return got, nil
}

// WriteAll writes buf in a single call and fails on a short write.
func WriteAll(s Stream, buf []byte) error {
	trace("out", buf)
	n, err := s.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return nil
}

func trace(dir string, b []byte) {
	if glog.V(3) {
		glog.Infof("%s %d bytes\n%s", dir, len(b), hex.Dump(b))
	}
}
