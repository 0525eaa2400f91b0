// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestCRC8(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		// ROM code of a DS18B20 with and without its check byte.
		{bytes: []byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00}, result: 0x74},
		{bytes: []byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}, result: 0x00},
		// Scratchpad read from the same device.
		{bytes: []byte{0xe0, 0x01, 0x00, 0x00, 0x3f, 0xff, 0x10, 0x10}, result: 0x3f},
		{bytes: []byte{0xe0, 0x01, 0x00, 0x00, 0x3f, 0xff, 0x10, 0x10, 0x3f}, result: 0x00},
		{bytes: []byte{}, result: 0x00},
	}
	for _, test := range tests {
		res := CRC8(test.bytes)
		if res != test.result {
			t.Errorf("CRC8(%#v)!=%#02x received %#02x", test.bytes, test.result, res)
		}
	}
}

func TestCRC8Update(t *testing.T) {
	block := []byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}
	var crc byte
	for i, b := range block {
		crc = CRC8Update(crc, b)
		if want := CRC8(block[:i+1]); crc != want {
			t.Fatalf("running CRC after %d bytes: %#02x != %#02x", i+1, crc, want)
		}
	}
	if crc != 0 {
		t.Errorf("CRC over block plus check byte: %#02x, want 0", crc)
	}
}

func TestCRC8Corruption(t *testing.T) {
	block := []byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}
	for i := range block {
		for bit := uint(0); bit < 8; bit++ {
			tmp := make([]byte, len(block))
			copy(tmp, block)
			tmp[i] ^= 1 << bit
			if CRC8(tmp) == 0 {
				t.Errorf("flip of byte %d bit %d not detected", i, bit)
			}
		}
	}
}
