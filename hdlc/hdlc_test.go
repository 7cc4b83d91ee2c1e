/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package hdlc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16KnownCheckValue(t *testing.T) {
	// CRC-16/X-25 catalog check value for the ASCII string "123456789".
	require.Equal(t, uint16(0x906E), CRC16([]byte("123456789")))
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x7D, 0x7E, 0x01, 0x02, 0x03},
		{0x7E, 0x7E, 0x7E},
		make([]byte, 4096),
	}
	for _, payload := range cases {
		frame := Encapsulate(payload)
		got, err := Decapsulate(frame)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestEscaping(t *testing.T) {
	frame := Encapsulate([]byte{0x7D, 0x7E})
	require.Equal(t, byte(0x7E), frame[len(frame)-1])
	// 0x7D -> 0x7D 0x5D, 0x7E -> 0x7D 0x5E
	require.Equal(t, []byte{0x7D, 0x5D, 0x7D, 0x5E}, frame[:4])
}

func TestDecapsulateErrors(t *testing.T) {
	_, err := Decapsulate(nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = Decapsulate([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrMissingTerminator)

	_, err = Decapsulate([]byte{0x7D, terminatorByte})
	require.ErrorIs(t, err, ErrTruncatedEscape)

	// size 1 body before terminator (no room for CRC) must fail "too short"
	_, err = Decapsulate([]byte{0x01, terminatorByte})
	require.ErrorIs(t, err, ErrTooShort)

	// size exactly 2 (CRC alone, empty body) must succeed
	crc := CRC16(nil)
	lo := byte(crc & 0xFF)
	hi := byte(crc >> 8)
	body, err := Decapsulate([]byte{lo, hi, terminatorByte})
	require.NoError(t, err)
	require.Empty(t, body)

	// CRC mismatch: the empty body's CRC is 0x0000, so 0x0001 is wrong
	_, err = Decapsulate([]byte{0x01, 0x00, terminatorByte})
	var crcErr *CRCMismatchError
	require.True(t, errors.As(err, &crcErr))
}
