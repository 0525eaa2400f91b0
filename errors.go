// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owi

// ErrNoDevices is returned when no device answers a bus reset with a
// presence pulse, or when no device participates in a search pass.
var ErrNoDevices error = noDevicesError("owi: no devices found")

// ErrCRC is returned when a ROM code read from the bus fails its CRC
// check, as happens when several devices answer a read ROM at once.
var ErrCRC error = busError("owi: ROM code CRC mismatch")

// noDevicesError implements error, onewire.NoDevicesError and
// onewire.BusError.
type noDevicesError string

func (e noDevicesError) Error() string   { return string(e) }
func (e noDevicesError) NoDevices() bool { return true }
func (e noDevicesError) BusError() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }
