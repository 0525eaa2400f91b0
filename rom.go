// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/onewire"

	"github.com/GermanBionicSystems/owi/common"
)

// ROM is the 64-bit identity burned into every 1-wire device: a family
// code, a 48-bit serial number and a CRC8 protecting the first seven
// bytes. The bytes are kept in bus order, family code first.
type ROM [8]byte

// Family returns the device family code, for example 0x28 for a DS18B20.
func (r ROM) Family() byte {
	return r[0]
}

// Serial returns the 48-bit serial number.
func (r ROM) Serial() uint64 {
	var s uint64
	for i := 6; i >= 1; i-- {
		s = s<<8 | uint64(r[i])
	}
	return s
}

// CRC returns the check byte.
func (r ROM) CRC() byte {
	return r[7]
}

// Check reports whether the check byte matches the rest of the code.
func (r ROM) Check() bool {
	return common.CRC8(r[:]) == 0
}

// String formats the code as family.serial.crc, such as
// "28.0000070e41ac.74".
func (r ROM) String() string {
	return fmt.Sprintf("%02x.%012x.%02x", r[0], r.Serial(), r[7])
}

// Address returns the code as a onewire.Address, the uint64 form used by
// periph device drivers. The family code lands in the low byte.
func (r ROM) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(r[:]))
}

// ROMFromAddress converts a onewire.Address back into bus order bytes.
func ROMFromAddress(addr onewire.Address) ROM {
	var r ROM
	binary.LittleEndian.PutUint64(r[:], uint64(addr))
	return r
}

// ParseROM parses the family.serial.crc form produced by String. The check
// byte is taken as is; use Check to validate it.
func ParseROM(s string) (ROM, error) {
	var r ROM
	var family, crc byte
	var serial uint64
	if len(s) != 18 {
		return r, errors.New("owi: malformed ROM code")
	}
	if _, err := fmt.Sscanf(s, "%2x.%12x.%2x", &family, &serial, &crc); err != nil {
		return r, errors.New("owi: malformed ROM code")
	}
	r[0] = family
	for i := 1; i <= 6; i++ {
		r[i] = byte(serial)
		serial >>= 8
	}
	r[7] = crc
	return r, nil
}
