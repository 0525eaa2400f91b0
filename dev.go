// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

// Dev is a device on a 1-wire bus, addressed by its ROM code. It bundles
// the bus handle with the identity so device drivers can issue function
// commands without repeating the addressing.
type Dev struct {
	Bus *Master
	ROM ROM
}

func (d *Dev) String() string {
	return d.ROM.String() + " on " + d.Bus.String()
}

// Select addresses the device with a match ROM cycle. The next function
// command is executed by this device alone.
func (d *Dev) Select() error {
	return d.Bus.MatchROM(d.ROM)
}

// SelectAll addresses every device on the bus with a skip ROM cycle. The
// next function command is executed by all of them, so it must be one that
// provokes no reply.
func (d *Dev) SelectAll() error {
	return d.Bus.SkipROM()
}

// Write selects the device and sends cmd followed by buf.
func (d *Dev) Write(cmd byte, buf []byte) error {
	if err := d.Select(); err != nil {
		return err
	}
	return d.Bus.WriteBlock(cmd, buf)
}

// Read selects the device, sends cmd and fills buf with the response,
// reporting whether the block passed the CRC check.
func (d *Dev) Read(cmd byte, buf []byte) (bool, error) {
	if err := d.Select(); err != nil {
		return false, err
	}
	if err := d.Bus.WriteByte(cmd); err != nil {
		return false, err
	}
	return d.Bus.ReadBlock(buf)
}
