// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

import (
	"fmt"

	"github.com/GermanBionicSystems/owi/common"
)

// Standard ROM commands, honored by every 1-wire device family.
const (
	cmdSearchROM   = 0xf0 // initiate device search
	cmdReadROM     = 0x33 // read family code, serial number and CRC
	cmdMatchROM    = 0x55 // select the device with a 64-bit ROM code
	cmdSkipROM     = 0xcc // broadcast, or single device access
	cmdAlarmSearch = 0xec // initiate search over alarming devices
)

// Link is a bit-level 1-wire transport: a bus extender chip, a serial
// adapter or an emulated bus. Implementations handle the electrical timing;
// Master drives the protocol through this interface.
type Link interface {
	String() string
	// Reset issues a reset cycle on the bus and reports whether at least
	// one device answered with a presence pulse.
	Reset() (bool, error)
	// ReadBits reads 1 to 8 bits from the bus and returns them packed
	// least significant bit first, in the order they were sampled.
	ReadBits(bits int) (byte, error)
	// WriteBits writes the low bits of v to the bus, least significant
	// bit first.
	WriteBits(v byte, bits int) error
}

// PowerLink is a Link that can drive the bus high with a strong pull-up to
// power parasitic devices. The pull-up is armed by StrongPullup, takes
// effect after the next bit sent and is released by the following bus
// activity or reset.
type PowerLink interface {
	Link
	StrongPullup() error
}

// Master implements the 1-wire command layer on top of a Link: ROM
// addressing, the binary tree search and block transfers with CRC
// validation.
//
// All calls block until the bus operation completes. A Master is not safe
// for concurrent use; commands span multiple calls so callers must
// serialize access to the bus.
type Master struct {
	link Link
}

// New returns a Master driving the given link.
func New(l Link) *Master {
	return &Master{link: l}
}

func (m *Master) String() string {
	return fmt.Sprintf("OWI{%s}", m.link)
}

// Reset issues a reset cycle and reports whether a device answered with a
// presence pulse.
func (m *Master) Reset() (bool, error) {
	return m.link.Reset()
}

// ReadBits reads 1 to 8 bits from the bus, least significant bit first.
func (m *Master) ReadBits(bits int) (byte, error) {
	return m.link.ReadBits(bits)
}

// WriteBits writes the low bits of v to the bus, least significant bit
// first.
func (m *Master) WriteBits(v byte, bits int) error {
	return m.link.WriteBits(v, bits)
}

// ReadByte reads a full byte from the bus.
func (m *Master) ReadByte() (byte, error) {
	return m.link.ReadBits(8)
}

// WriteByte writes a full byte to the bus.
func (m *Master) WriteByte(v byte) error {
	return m.link.WriteBits(v, 8)
}

// ReadBlock fills buf from the bus and reports whether the block passed
// validation: the CRC8 over all bytes read, check byte included, must come
// out zero. The data is returned either way so callers can inspect what a
// misbehaving device sent.
func (m *Master) ReadBlock(buf []byte) (bool, error) {
	var crc byte
	for i := range buf {
		b, err := m.link.ReadBits(8)
		if err != nil {
			return false, err
		}
		buf[i] = b
		crc = common.CRC8Update(crc, b)
	}
	return crc == 0, nil
}

// WriteBlock writes cmd followed by buf to the bus. No reset is issued, so
// the device addressed by the preceding ROM command stays selected.
func (m *Master) WriteBlock(cmd byte, buf []byte) error {
	if err := m.link.WriteBits(cmd, 8); err != nil {
		return err
	}
	for _, b := range buf {
		if err := m.link.WriteBits(b, 8); err != nil {
			return err
		}
	}
	return nil
}

// ReadROM reads the identity of the only device on the bus. With several
// devices present their codes collide into a wired-AND on the bus; the CRC
// check rejects the garbled result and ErrCRC is returned along with it.
func (m *Master) ReadROM() (ROM, error) {
	var code ROM
	if err := m.begin(); err != nil {
		return code, err
	}
	if err := m.WriteByte(cmdReadROM); err != nil {
		return code, err
	}
	ok, err := m.ReadBlock(code[:])
	if err != nil {
		return code, err
	}
	if !ok {
		return code, ErrCRC
	}
	return code, nil
}

// MatchROM selects the device with the given identity. Devices whose code
// differs drop out until the next reset, so a device specific function
// command may follow. Addressing a device that is no longer on the bus is
// not detected here; the following command simply goes unanswered.
func (m *Master) MatchROM(code ROM) error {
	if err := m.begin(); err != nil {
		return err
	}
	return m.WriteBlock(cmdMatchROM, code[:])
}

// SkipROM selects every device on the bus at once, to broadcast a function
// command or to address the only device without knowing its identity.
func (m *Master) SkipROM() error {
	if err := m.begin(); err != nil {
		return err
	}
	return m.WriteByte(cmdSkipROM)
}

// begin starts a command cycle: bus reset followed by a presence check.
func (m *Master) begin() error {
	present, err := m.link.Reset()
	if err != nil {
		return err
	}
	if !present {
		return ErrNoDevices
	}
	return nil
}
