// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owitest is meant to be used to test drivers over a fake 1-wire
// bus.
//
// Playback replays a scripted sequence of link operations and Record
// captures the operations a driver performs. Emulator goes further and
// behaves like a bus with real devices attached, answering resets, ROM
// commands and search passes.
package owitest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/owi"
)

// Op distinguishes the link operations a Playback can expect.
type Op int

const (
	// OpReset is a bus reset; Present is the scripted answer.
	OpReset Op = iota
	// OpRead hands V to the master; Bits is the expected width.
	OpRead
	// OpWrite expects the master to write V; Bits is the expected width.
	OpWrite
	// OpStrongPullup expects the master to arm the strong pull-up.
	OpStrongPullup
)

func (o Op) String() string {
	switch o {
	case OpReset:
		return "reset"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpStrongPullup:
		return "strong pull-up"
	default:
		return "invalid"
	}
}

// IO registers one link operation.
type IO struct {
	Op      Op
	Bits    int  // width of a read or write
	V       byte // value handed out on a read, expected on a write
	Present bool // presence pulse answered to a reset
}

// Playback implements owi.Link and plays back a hand written or recorded
// sequence of link operations, verifying that the master performs exactly
// the expected ones.
//
// Set DontPanic to have mismatches returned as errors instead of
// panicking.
type Playback struct {
	sync.Mutex
	Ops       []IO
	Count     int
	DontPanic bool
}

func (p *Playback) String() string {
	return "playback"
}

// Close verifies that all the expected operations were consumed.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if len(p.Ops) != p.Count {
		return p.fail("owitest: expected playback to be empty: %d operations left", len(p.Ops)-p.Count)
	}
	return nil
}

// Reset implements owi.Link.
func (p *Playback) Reset() (bool, error) {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(OpReset)
	if err != nil {
		return false, err
	}
	return io.Present, nil
}

// ReadBits implements owi.Link.
func (p *Playback) ReadBits(bits int) (byte, error) {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(OpRead)
	if err != nil {
		return 0, err
	}
	if io.Bits != bits {
		return 0, p.fail("owitest: read of %d bits, expected %d", bits, io.Bits)
	}
	return io.V, nil
}

// WriteBits implements owi.Link.
func (p *Playback) WriteBits(v byte, bits int) error {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(OpWrite)
	if err != nil {
		return err
	}
	if io.Bits != bits {
		return p.fail("owitest: write of %d bits, expected %d", bits, io.Bits)
	}
	if v&mask(bits) != io.V {
		return p.fail("owitest: write of %#02x, expected %#02x", v&mask(bits), io.V)
	}
	return nil
}

// StrongPullup implements owi.PowerLink.
func (p *Playback) StrongPullup() error {
	p.Lock()
	defer p.Unlock()
	_, err := p.next(OpStrongPullup)
	return err
}

func (p *Playback) next(op Op) (IO, error) {
	if p.Count >= len(p.Ops) {
		return IO{}, p.fail("owitest: unexpected %s past the end of the script", op)
	}
	io := p.Ops[p.Count]
	if io.Op != op {
		return IO{}, p.fail("owitest: unexpected %s, expected %s", op, io.Op)
	}
	p.Count++
	return io, nil
}

func (p *Playback) fail(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	if !p.DontPanic {
		panic(msg)
	}
	return errors.New(msg)
}

// Record implements owi.Link and records every operation, to debug a
// driver or to build a Playback script from a live bus.
//
// The operations are forwarded to Link when it is set. Otherwise writes
// succeed, resets report a present device and reads return idle bus
// levels.
type Record struct {
	sync.Mutex
	Link owi.Link
	Ops  []IO
}

func (r *Record) String() string {
	return "record"
}

// Reset implements owi.Link.
func (r *Record) Reset() (bool, error) {
	r.Lock()
	defer r.Unlock()
	present := true
	if r.Link != nil {
		var err error
		if present, err = r.Link.Reset(); err != nil {
			return present, err
		}
	}
	r.Ops = append(r.Ops, IO{Op: OpReset, Present: present})
	return present, nil
}

// ReadBits implements owi.Link.
func (r *Record) ReadBits(bits int) (byte, error) {
	r.Lock()
	defer r.Unlock()
	v := mask(bits)
	if r.Link != nil {
		var err error
		if v, err = r.Link.ReadBits(bits); err != nil {
			return 0, err
		}
	}
	r.Ops = append(r.Ops, IO{Op: OpRead, Bits: bits, V: v})
	return v, nil
}

// WriteBits implements owi.Link.
func (r *Record) WriteBits(v byte, bits int) error {
	r.Lock()
	defer r.Unlock()
	if r.Link != nil {
		if err := r.Link.WriteBits(v, bits); err != nil {
			return err
		}
	}
	r.Ops = append(r.Ops, IO{Op: OpWrite, Bits: bits, V: v & mask(bits)})
	return nil
}

// StrongPullup implements owi.PowerLink.
func (r *Record) StrongPullup() error {
	r.Lock()
	defer r.Unlock()
	if r.Link != nil {
		pl, ok := r.Link.(owi.PowerLink)
		if !ok {
			return errors.New("owitest: link does not support strong pull-up")
		}
		if err := pl.StrongPullup(); err != nil {
			return err
		}
	}
	r.Ops = append(r.Ops, IO{Op: OpStrongPullup})
	return nil
}

func mask(bits int) byte {
	return byte((1 << uint(bits)) - 1)
}

var _ owi.Link = &Playback{}
var _ owi.PowerLink = &Playback{}
var _ owi.Link = &Record{}
var _ owi.PowerLink = &Record{}
