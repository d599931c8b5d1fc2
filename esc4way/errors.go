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
package esc4way

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPayloadTooLarge is returned for payloads over MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("esc4way: payload too large")
	// ErrAddressRange is returned when a transfer would run past the 16-bit address space.
	ErrAddressRange = errors.New("esc4way: address out of range")
)

// CommandError carries a non-OK acknowledgement from an otherwise well
// formed reply.
type CommandError struct {
	Cmd Command
	Ack Ack
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("esc4way: %s: ack 0x%02x (%s)", e.Cmd, byte(e.Ack), e.Ack)
}

// AckOf returns the acknowledgement carried by err, if it wraps a *CommandError.
func AckOf(err error) (Ack, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Ack, true
	}
	return AckOK, false
}
