// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

// Cursor is a position in the 64-bit ROM search tree. A search pass returns
// the deepest bit position at which it took the zero branch of a
// discrepancy; the next pass takes the one branch there and explores the
// other half of the tree.
type Cursor int8

const (
	// First starts an enumeration from the beginning of the tree.
	First Cursor = -1
	// Last is returned when a pass yielded the final device.
	Last Cursor = 64
)

// SearchROM performs one pass of the ROM search, writing the identity
// discovered on this pass into code. An enumeration starts with last set
// to First and feeds each returned cursor into the next call; Last means
// the pass yielded the final device.
//
// A non-zero family keeps searching until a device of that family turns
// up or the tree is exhausted. The tree is ordered by bit pattern, not by
// family, so on exhaustion code holds whichever device was visited last;
// callers filtering by family must check code.Family themselves.
func (m *Master) SearchROM(family byte, code *ROM, last Cursor) (Cursor, error) {
	for {
		var err error
		if err = m.begin(); err != nil {
			return First, err
		}
		if err = m.WriteByte(cmdSearchROM); err != nil {
			return First, err
		}
		if last, err = m.search(code, last); err != nil {
			return First, err
		}
		if last == Last || family == 0 || code.Family() == family {
			return last, nil
		}
	}
}

// AlarmSearch performs one pass of the alarm search. It enumerates exactly
// like SearchROM without family filtering, except that only devices in
// alarm state participate. ErrNoDevices is returned when no device is
// alarming.
func (m *Master) AlarmSearch(code *ROM, last Cursor) (Cursor, error) {
	if err := m.begin(); err != nil {
		return First, err
	}
	if err := m.WriteByte(cmdAlarmSearch); err != nil {
		return First, err
	}
	return m.search(code, last)
}

// Discover enumerates the bus and returns the identities of all responding
// devices, or only of the devices in alarm state when alarmOnly is set. A
// non-zero family restricts the result to that device family. Devices
// found before an error are returned with it.
func (m *Master) Discover(family byte, alarmOnly bool) ([]ROM, error) {
	var devices []ROM
	var code ROM
	last := First
	for {
		var err error
		if alarmOnly {
			last, err = m.AlarmSearch(&code, last)
		} else {
			last, err = m.SearchROM(family, &code, last)
		}
		if err != nil {
			return devices, err
		}
		if family == 0 || code.Family() == family {
			devices = append(devices, code)
		}
		if last == Last {
			return devices, nil
		}
	}
}

// search walks one pass of the search tree after the search command has
// been issued. At each of the 64 bit positions the master reads two bits,
// the wired-AND of the identity bit and of its complement over all
// participating devices, then writes the chosen direction back; devices
// whose identity bit differs drop out until the next reset.
//
// Directions are chosen to replay code up to the cursor, take the one
// branch at the cursor and the zero branch at any new discrepancy beyond
// it. The returned cursor is the deepest position where the zero branch
// was taken, or Last when there was none.
func (m *Master) search(code *ROM, last Cursor) (Cursor, error) {
	pos := Cursor(0)
	next := Last
	for i := 0; i < 8; i++ {
		var data byte
		for j := uint(0); j < 8; j++ {
			data >>= 1
			pair, err := m.link.ReadBits(2)
			if err != nil {
				return First, err
			}
			var dir byte
			switch pair & 0x03 {
			case 0x00: // devices disagree at this position
				switch {
				case pos == last:
					dir = 1
					last = First
				case pos > last:
					next = pos
				case code[i]&(1<<j) != 0:
					dir = 1
				default:
					next = pos
				}
			case 0x01: // all remaining devices carry a one
				dir = 1
			case 0x02: // all remaining devices carry a zero
			case 0x03: // nobody answered
				return First, ErrNoDevices
			}
			if err := m.link.WriteBits(dir, 1); err != nil {
				return First, err
			}
			if dir != 0 {
				data |= 0x80
			}
			pos++
		}
		code[i] = data
	}
	return next, nil
}
