// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owitest

import (
	"errors"
	"fmt"

	"github.com/GermanBionicSystems/owi"
	"github.com/GermanBionicSystems/owi/common"
)

// Device is a slave on an emulated bus.
type Device struct {
	ROM   owi.ROM
	Alarm bool // participates in alarm searches
}

// bit returns the ROM bit at the given position, in bus transmission
// order: least significant bit of the family code first.
func (d *Device) bit(pos int) byte {
	return d.ROM[pos/8] >> uint(pos%8) & 1
}

// Emulator implements owi.Link and behaves like a bus with the given
// devices attached. It answers resets with a presence pulse, decodes ROM
// commands, takes part in search passes and prunes devices as the master
// writes selection bits. Reads return the wired-AND of everything driving
// the bus, an idle bus reads as ones.
//
// Function commands following a match or skip ROM are answered through
// Handler; the returned bytes are what the selected device drives onto the
// bus. Bytes the master writes after selection are collected and available
// through Writes.
//
// Protocol sequencing mistakes, like writing a search direction before
// reading both identity bits, cause a panic unless DontPanic is set.
type Emulator struct {
	Devices   []*Device
	Handler   func(d *Device, cmd byte) []byte
	DontPanic bool

	phase    int
	parts    []*Device // still participating in the current search pass
	selected []*Device // addressed by the last ROM command
	cmd      byte
	cmdN     int
	bitPos   int  // search tree position
	pairN    int  // identity bits handed out at this position
	needDir  bool // waiting for the master's direction bit
	match    owi.ROM
	matchN   int
	fnDone   bool
	resp     []byte // bits the selected devices drive
	respBit  int
	wcur     byte
	wbit     int
	writes   []byte
	pullups  int
}

const (
	phaseIdle     = iota // no reset seen yet
	phaseCommand         // collecting the ROM command byte
	phaseSearch          // search pass in progress
	phaseLoadROM         // driving a read ROM response
	phaseMatch           // collecting the match ROM code
	phaseFunction        // devices selected, function command exchange
)

func (e *Emulator) String() string {
	return "emulator"
}

// Reset implements owi.Link. Any device on the bus answers with a presence
// pulse and a fresh ROM command is expected next.
func (e *Emulator) Reset() (bool, error) {
	e.phase = phaseCommand
	e.cmd, e.cmdN = 0, 0
	e.parts = nil
	e.selected = nil
	e.bitPos, e.pairN = 0, 0
	e.needDir = false
	e.match = owi.ROM{}
	e.matchN = 0
	e.fnDone = false
	e.resp, e.respBit = nil, 0
	e.wcur, e.wbit = 0, 0
	return len(e.Devices) > 0, nil
}

// ReadBits implements owi.Link.
func (e *Emulator) ReadBits(bits int) (byte, error) {
	if bits < 1 || bits > 8 {
		return 0, e.fail("owitest: read of %d bits", bits)
	}
	var v byte
	for i := 0; i < bits; i++ {
		b, err := e.readBit()
		if err != nil {
			return 0, err
		}
		v |= b << uint(i)
	}
	return v, nil
}

// WriteBits implements owi.Link.
func (e *Emulator) WriteBits(v byte, bits int) error {
	if bits < 1 || bits > 8 {
		return e.fail("owitest: write of %d bits", bits)
	}
	for i := 0; i < bits; i++ {
		if err := e.writeBit(v >> uint(i) & 1); err != nil {
			return err
		}
	}
	return nil
}

// StrongPullup implements owi.PowerLink by counting how often the pull-up
// was armed.
func (e *Emulator) StrongPullup() error {
	e.pullups++
	return nil
}

// Selected returns the devices addressed by the last ROM command.
func (e *Emulator) Selected() []*Device {
	return e.selected
}

// Writes returns every byte the master wrote after device selection,
// function commands included.
func (e *Emulator) Writes() []byte {
	return e.writes
}

// Pullups returns how many times the strong pull-up was armed.
func (e *Emulator) Pullups() int {
	return e.pullups
}

func (e *Emulator) readBit() (byte, error) {
	switch e.phase {
	case phaseSearch:
		if e.needDir {
			return 0, e.fail("owitest: read during search before writing the direction")
		}
		id, comp := e.searchBits()
		if e.pairN == 0 {
			e.pairN = 1
			return id, nil
		}
		e.pairN = 0
		e.needDir = true
		return comp, nil
	case phaseLoadROM, phaseFunction:
		if e.respBit < 8*len(e.resp) {
			b := e.resp[e.respBit/8] >> uint(e.respBit%8) & 1
			e.respBit++
			return b, nil
		}
		return 1, nil
	default:
		// Nothing drives the bus, it reads high.
		return 1, nil
	}
}

// searchBits returns the wired-AND of the identity bit and of its
// complement over all devices still participating at the current tree
// position.
func (e *Emulator) searchBits() (byte, byte) {
	id, comp := byte(1), byte(1)
	if e.bitPos < 64 {
		for _, d := range e.parts {
			if d.bit(e.bitPos) == 0 {
				id = 0
			} else {
				comp = 0
			}
		}
	}
	return id, comp
}

func (e *Emulator) writeBit(b byte) error {
	switch e.phase {
	case phaseCommand:
		e.cmd |= b << uint(e.cmdN)
		e.cmdN++
		if e.cmdN == 8 {
			return e.command(e.cmd)
		}
		return nil
	case phaseSearch:
		if !e.needDir {
			return e.fail("owitest: search direction written before reading both bits")
		}
		var keep []*Device
		for _, d := range e.parts {
			if d.bit(e.bitPos) == b {
				keep = append(keep, d)
			}
		}
		e.parts = keep
		e.bitPos++
		e.needDir = false
		return nil
	case phaseMatch:
		if b != 0 {
			e.match[e.matchN/8] |= 1 << uint(e.matchN%8)
		}
		e.matchN++
		if e.matchN == 64 {
			for _, d := range e.Devices {
				if d.ROM == e.match {
					e.selected = append(e.selected, d)
				}
			}
			e.phase = phaseFunction
		}
		return nil
	case phaseFunction:
		e.wcur |= b << uint(e.wbit)
		e.wbit++
		if e.wbit == 8 {
			v := e.wcur
			e.wcur, e.wbit = 0, 0
			e.writes = append(e.writes, v)
			if !e.fnDone {
				e.fnDone = true
				e.function(v)
			}
		}
		return nil
	default:
		return e.fail("owitest: write with no bus reset seen")
	}
}

// command dispatches a completed ROM command byte.
func (e *Emulator) command(cmd byte) error {
	switch cmd {
	case 0xf0: // search ROM
		e.parts = append([]*Device(nil), e.Devices...)
		e.phase = phaseSearch
	case 0xec: // alarm search
		for _, d := range e.Devices {
			if d.Alarm {
				e.parts = append(e.parts, d)
			}
		}
		e.phase = phaseSearch
	case 0x33: // read ROM, every device answers at once
		e.selected = append([]*Device(nil), e.Devices...)
		e.resp = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		for _, d := range e.Devices {
			for i, rb := range d.ROM {
				e.resp[i] &= rb
			}
		}
		e.phase = phaseLoadROM
	case 0x55: // match ROM
		e.phase = phaseMatch
	case 0xcc: // skip ROM
		e.selected = append([]*Device(nil), e.Devices...)
		e.phase = phaseFunction
	default:
		return e.fail("owitest: unknown ROM command %#02x", cmd)
	}
	return nil
}

// function answers a completed function command byte through the handler,
// folding the responses of all selected devices with a wired-AND.
func (e *Emulator) function(cmd byte) {
	e.resp, e.respBit = nil, 0
	if e.Handler == nil {
		return
	}
	for _, d := range e.selected {
		r := e.Handler(d, cmd)
		for i, rb := range r {
			if i < len(e.resp) {
				e.resp[i] &= rb
			} else {
				e.resp = append(e.resp, rb)
			}
		}
	}
}

func (e *Emulator) fail(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	if !e.DontPanic {
		panic(msg)
	}
	return errors.New(msg)
}

// MakeROM builds a valid ROM code from a family code and a serial number,
// computing the trailing check byte.
func MakeROM(family byte, serial uint64) owi.ROM {
	var r owi.ROM
	r[0] = family
	for i := 1; i <= 6; i++ {
		r[i] = byte(serial)
		serial >>= 8
	}
	r[7] = common.CRC8(r[:7])
	return r
}

var _ owi.Link = &Emulator{}
var _ owi.PowerLink = &Emulator{}
