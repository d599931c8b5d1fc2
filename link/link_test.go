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
package link_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robhaswell/bfctl/link"
	"github.com/robhaswell/bfctl/link/linktest"
)

func TestReadExactly(t *testing.T) {
	s := &linktest.Stream{Chunk: 2}
	s.Queue([]byte{1, 2, 3, 4, 5})
	require.NoError(t, link.WriteAll(s, []byte{0}))

	buf := make([]byte, 5)
	n, err := link.ReadExactly(s, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf)
}

func TestReadExactlyTimeout(t *testing.T) {
	s := &linktest.Stream{}
	s.Queue([]byte{1, 2})
	require.NoError(t, link.WriteAll(s, []byte{0}))

	n, err := link.ReadExactly(s, make([]byte, 4))
	require.Equal(t, 2, n)
	require.True(t, errors.Is(err, link.ErrShortRead))
}

func TestReadAvailable(t *testing.T) {
	s := &linktest.Stream{Chunk: 3}
	s.Queue([]byte{9, 8, 7, 6})
	require.NoError(t, link.WriteAll(s, []byte{0}))

	buf := make([]byte, 16)
	n, err := link.ReadAvailable(s, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7, 6}, buf[:n])
}

func TestTransportError(t *testing.T) {
	err := errors.Wrap(link.Fail("msp", link.ErrCRCMismatch), "reply")
	require.True(t, link.IsTransport(err))
	require.True(t, errors.Is(err, link.ErrCRCMismatch))
	require.False(t, errors.Is(err, link.ErrBadPreamble))
	require.Equal(t, "reply: msp: checksum mismatch", err.Error())
	require.False(t, link.IsTransport(link.ErrNotConnected))
}
