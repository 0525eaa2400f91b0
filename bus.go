// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

import (
	"errors"

	"periph.io/x/conn/v3/onewire"
)

// Tx performs a bus transaction, sending and receiving bytes, and ending
// by pulling the bus high either weakly or strongly depending on the value
// of power.
//
// A strong pull-up is typically required to power temperature conversion
// or EEPROM writes; it requires the link to implement PowerLink.
func (m *Master) Tx(w, r []byte, power onewire.Pullup) error {
	pl, _ := m.link.(PowerLink)
	if power == onewire.StrongPullup && pl == nil {
		return errors.New("owi: link does not support strong pull-up")
	}

	if err := m.begin(); err != nil {
		return err
	}

	for i, b := range w {
		if power == onewire.StrongPullup && i == len(w)-1 && len(r) == 0 {
			// This is the last byte, need to arm the strong pull-up.
			if err := pl.StrongPullup(); err != nil {
				return err
			}
		}
		if err := m.link.WriteBits(b, 8); err != nil {
			return err
		}
	}

	for i := range r {
		if power == onewire.StrongPullup && i == len(r)-1 {
			// This is the last byte, need to arm the strong pull-up.
			if err := pl.StrongPullup(); err != nil {
				return err
			}
		}
		b, err := m.link.ReadBits(8)
		if err != nil {
			return err
		}
		r[i] = b
	}

	return nil
}

// Search performs a "search" cycle on the 1-wire bus and returns the
// addresses of all devices on the bus if alarmOnly is false and of all
// devices in alarm state if alarmOnly is true.
//
// If an error occurs during the search the already-discovered devices are
// returned with the error.
func (m *Master) Search(alarmOnly bool) ([]onewire.Address, error) {
	devices, err := m.Discover(0, alarmOnly)
	addrs := make([]onewire.Address, 0, len(devices))
	for _, code := range devices {
		addrs = append(addrs, code.Address())
	}
	return addrs, err
}

var _ onewire.Bus = &Master{}
