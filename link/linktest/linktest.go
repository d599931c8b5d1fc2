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

// Package linktest provides a scripted link.Stream for tests.
package linktest

import (
	"time"
)

// Stream replies to each Write with the next queued reply. Reads are served
// in chunks of at most Chunk bytes (0 means unlimited) to exercise partial
// reads; an exhausted reply reads as a timeout.
type Stream struct {
	Replies [][]byte
	Chunk   int

	Writes  [][]byte
	Timeout time.Duration

	pending []byte
}

// Queue appends replies.
func (s *Stream) Queue(replies ...[]byte) {
	s.Replies = append(s.Replies, replies...)
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	s.Writes = append(s.Writes, append([]byte(nil), p...))
	if len(s.Replies) > 0 {
		s.pending = append(s.pending, s.Replies[0]...)
		s.Replies = s.Replies[1:]
	}
	return len(p), nil
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	n := len(p)
	if s.Chunk > 0 && n > s.Chunk {
		n = s.Chunk
	}
	n = copy(p[:n], s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// SetReadTimeout implements link.Stream.
func (s *Stream) SetReadTimeout(t time.Duration) error {
	s.Timeout = t
	return nil
}

// LastWrite returns the most recent write, or nil.
func (s *Stream) LastWrite() []byte {
	if len(s.Writes) == 0 {
		return nil
	}
	return s.Writes[len(s.Writes)-1]
}
