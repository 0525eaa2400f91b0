// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/GermanBionicSystems/owi"
)

func init() {
	sleep = func(time.Duration) {}
}

// setupPlayback returns a playback primed with the transactions performed by
// makeDev when it finds a ds2483 configured with DefaultOpts, followed by the
// provided ops.
func setupPlayback(extra ...i2ctest.IO) *i2ctest.Playback {
	ops := []i2ctest.IO{
		// Device reset.
		{Addr: 0x18, W: []byte{0xf0}},
		// Status register read.
		{Addr: 0x18, W: []byte{0xe1, 0xf0}, R: []byte{0x18}},
		// Device configuration write, bottom nibble read back.
		{Addr: 0x18, W: []byte{0xd2, 0xe1}, R: []byte{0x01}},
		// Port configuration register probe, answered by the ds2483.
		{Addr: 0x18, W: []byte{0xe1, 0xb4}},
		// Port configuration values for DefaultOpts.
		{Addr: 0x18, W: []byte{0xc3, 0x06, 0x26, 0x46, 0x66, 0x86}},
	}
	return &i2ctest.Playback{Ops: append(ops, extra...)}
}

func closePlayback(t *testing.T, pb *i2ctest.Playback) {
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew(t *testing.T) {
	pb := setupPlayback()
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); !strings.HasPrefix(s, "DS2483") {
		t.Fatalf("unexpected device: %s", s)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, pb)
}

func TestNewBadAddress(t *testing.T) {
	pb := &i2ctest.Playback{}
	if _, err := New(pb, 0x42, &DefaultOpts); err == nil {
		t.Fatal("expected address 0x42 to be rejected")
	}
	closePlayback(t, pb)
}

func TestReset(t *testing.T) {
	pb := setupPlayback(
		// Bus reset with a presence pulse.
		i2ctest.IO{Addr: 0x18, W: []byte{0xb4}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x1a}},
		// Bus reset without a presence pulse.
		i2ctest.IO{Addr: 0x18, W: []byte{0xb4}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x18}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	present, err := d.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("expected a presence pulse")
	}
	present, err = d.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Fatal("expected an empty bus")
	}
	closePlayback(t, pb)
}

func TestResetShorted(t *testing.T) {
	pb := setupPlayback(
		i2ctest.IO{Addr: 0x18, W: []byte{0xb4}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x1c}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Reset(); err == nil {
		t.Fatal("expected an error for a shorted bus")
	} else if !strings.Contains(err.Error(), "short") {
		t.Fatalf("unexpected error: %s", err)
	}
	// A shorted bus is not a persistent error.
	if _, err := d.ReadBits(0); err == nil {
		t.Fatal("expected invalid bit count error, not the short")
	} else if strings.Contains(err.Error(), "short") {
		t.Fatalf("short persisted: %s", err)
	}
	closePlayback(t, pb)
}

func TestReadBitsByte(t *testing.T) {
	pb := setupPlayback(
		// 1-wire byte read followed by fetching the read-data register.
		i2ctest.IO{Addr: 0x18, W: []byte{0x96}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
		i2ctest.IO{Addr: 0x18, W: []byte{0xe1, 0xe1}, R: []byte{0xbe}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.ReadBits(8)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xbe {
		t.Fatalf("read %#x, expected 0xbe", v)
	}
	closePlayback(t, pb)
}

func TestReadBitsSingle(t *testing.T) {
	pb := setupPlayback(
		// Single-bit cycle sampling a 1, SBR set in the status register.
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x28}},
		// Single-bit cycle sampling a 0.
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.ReadBits(1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("read %#x, expected 1", v)
	}
	v, err = d.ReadBits(1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("read %#x, expected 0", v)
	}
	closePlayback(t, pb)
}

func TestReadBitsPair(t *testing.T) {
	pb := setupPlayback(
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x28}},
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	// First bit 1, second bit 0, packed LSB first.
	v, err := d.ReadBits(2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x01 {
		t.Fatalf("read %#x, expected 0x01", v)
	}
	closePlayback(t, pb)
}

func TestWriteBitsByte(t *testing.T) {
	pb := setupPlayback(
		i2ctest.IO{Addr: 0x18, W: []byte{0xa5, 0xcc}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBits(0xcc, 8); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, pb)
}

func TestWriteBitsSingle(t *testing.T) {
	pb := setupPlayback(
		// Write a 0 bit, then a 1 bit.
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x00}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
		i2ctest.IO{Addr: 0x18, W: []byte{0x87, 0x80}},
		i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	// 0b10 written LSB first is a 0 bit followed by a 1 bit.
	if err := d.WriteBits(0x02, 2); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, pb)
}

func TestStrongPullup(t *testing.T) {
	pb := setupPlayback(
		// Configuration register write with the SPU bit set.
		i2ctest.IO{Addr: 0x18, W: []byte{0xd2, 0xa5}},
	)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.StrongPullup(); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, pb)
}

func TestInvalidBitCount(t *testing.T) {
	pb := setupPlayback()
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	for _, bits := range []int{-1, 0, 9} {
		if _, err := d.ReadBits(bits); err == nil {
			t.Fatalf("ReadBits(%d): expected an error", bits)
		}
		if err := d.WriteBits(0, bits); err == nil {
			t.Fatalf("WriteBits(%d): expected an error", bits)
		}
	}
	closePlayback(t, pb)
}

func TestPersistentError(t *testing.T) {
	pb := setupPlayback()
	pb.DontPanic = true
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	// The playback has no more ops, so the I²C transaction fails.
	if _, err := d.Reset(); err == nil {
		t.Fatal("expected an I²C error")
	}
	// The device stays in the error state.
	if _, err := d.ReadBits(8); err == nil {
		t.Fatal("expected the error to persist")
	}
	if err := d.WriteBits(0x55, 8); err == nil {
		t.Fatal("expected the error to persist")
	}
}

// TestReadROM drives a full ROM read through owi.Master on top of the
// playback to exercise the bridge end to end.
func TestReadROM(t *testing.T) {
	rom := [8]byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}
	ops := []i2ctest.IO{
		// Bus reset, presence pulse seen.
		{Addr: 0x18, W: []byte{0xb4}},
		{Addr: 0x18, R: []byte{0x1a}},
		// READ ROM command byte.
		{Addr: 0x18, W: []byte{0xa5, 0x33}},
		{Addr: 0x18, R: []byte{0x08}},
	}
	for _, b := range rom {
		ops = append(ops,
			i2ctest.IO{Addr: 0x18, W: []byte{0x96}},
			i2ctest.IO{Addr: 0x18, R: []byte{0x08}},
			i2ctest.IO{Addr: 0x18, W: []byte{0xe1, 0xe1}, R: []byte{b}},
		)
	}
	pb := setupPlayback(ops...)
	d, err := New(pb, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	m := owi.New(d)
	code, err := m.ReadROM()
	if err != nil {
		t.Fatal(err)
	}
	if code != owi.ROM(rom) {
		t.Fatalf("read %s, expected %s", code, owi.ROM(rom))
	}
	closePlayback(t, pb)
}
