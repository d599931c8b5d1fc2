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
package link

import (
	"github.com/pkg/errors"
)

// Transport level failures. They are always delivered wrapped in a
// *TransportError naming the protocol that hit them.
var (
	ErrBadPreamble    = errors.New("bad preamble")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrCRCMismatch    = errors.New("checksum mismatch")
	ErrShortRead      = errors.New("short read")
	ErrShortWrite     = errors.New("short write")

	// ErrNotConnected is returned when an operation needs a stream and none is attached.
	ErrNotConnected = errors.New("link: not connected")
)

// TransportError reports a framing, checksum or I/O failure on the byte stream.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying sentinel or I/O error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fail builds a *TransportError for op.
func Fail(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
