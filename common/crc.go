// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the CRC8 calculation protecting 1-wire ROM codes and register
// blocks.
package common

// CRC8Update folds one byte into a running Dallas/Maxim CRC8 (x^8+x^5+x^4+1,
// reflected, initial value 0). Feeding a block followed by its check byte
// drives the value back to 0.
func CRC8Update(crc, b byte) byte {
	for i := 0; i < 8; i++ {
		mix := (crc ^ b) & 0x01
		crc >>= 1
		if mix != 0 {
			crc ^= 0x8c
		}
		b >>= 1
	}
	return crc
}

// CRC8 calculates the Dallas/Maxim CRC8 of the byte slice parameter and
// returns the calculated value.
func CRC8(bytes []byte) byte {
	var crc byte
	for _, b := range bytes {
		crc = CRC8Update(crc, b)
	}
	return crc
}
