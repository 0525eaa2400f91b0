// Package ds9097 drives a 1-wire bus through a plain UART wired as a
// DS9097-style passive adapter.
//
// The UART generates the bus waveforms directly: a reset is one frame at
// 9600 baud and every bit slot is one frame at 115200 baud. TX drives the
// bus through the adapter and RX samples it, so each transmitted frame is
// echoed back with the bits that bus devices pulled low cleared.
package ds9097

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3"

	"github.com/GermanBionicSystems/owi"
)

const (
	// resetBaud stretches one frame to a full reset cycle: the start bit
	// plus the four zero bits of 0xf0 hold the bus low for ~520µs.
	resetBaud = 9600
	// slotBaud makes one frame a single bit slot of ~87µs.
	slotBaud = 115200
)

// Open opens the named serial port and returns a 1-wire link attached to it.
func Open(portName string) (*Dev, error) {
	p, err := serial.Open(portName, &serial.Mode{
		BaudRate: slotBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("ds9097: failed to open %s: %v", portName, err)
	}
	d, err := newDev(p, portName)
	if err != nil {
		p.Close()
		return nil, err
	}
	return d, nil
}

// New returns a 1-wire link using an already opened serial port.
//
// The port must be configured for 8 data bits, no parity and one stop bit.
func New(p serial.Port) (*Dev, error) {
	return newDev(p, "serial")
}

// serialPort is the part of serial.Port the driver uses.
type serialPort interface {
	SetMode(mode *serial.Mode) error
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

func newDev(p serialPort, name string) (*Dev, error) {
	// Bound reads so a disconnected adapter fails instead of blocking.
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, fmt.Errorf("ds9097: failed to set read timeout: %v", err)
	}
	// The baud rate starts out unknown, the first operation configures it.
	return &Dev{port: p, name: name}, nil
}

// Dev is a handle to a DS9097-style adapter. It implements the owi.Link
// interface but not owi.PowerLink: a passive adapter has no strong pull-up,
// so parasitically powered devices cannot be driven through it.
//
// Dev implements a persistent error model: if the serial port fails it
// places itself into an error state and immediately returns the last error
// on all subsequent calls. Errors on the 1-wire bus itself do not cause
// persistent errors and implement the onewire.BusError interface to
// indicate this fact.
type Dev struct {
	mu   sync.Mutex
	port serialPort
	name string
	baud int   // baud rate the port is currently configured for
	err  error // persistent error, adapter will no longer operate
}

func (d *Dev) String() string {
	return fmt.Sprintf("DS9097{%s}", d.name)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Close closes the serial port.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}

// Reset issues a reset signal on the 1-wire bus and returns true if any
// device responded with a presence pulse.
func (d *Dev) Reset() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	// Drop stale echoes so the reset frame lines up with its reply.
	if err := d.port.ResetInputBuffer(); err != nil {
		d.err = fmt.Errorf("ds9097: failed to flush input: %v", err)
		return false, d.err
	}
	d.setBaud(resetBaud)
	echo := d.exchange(0xf0)
	d.setBaud(slotBaud)
	if d.err != nil {
		return false, d.err
	}
	if echo == 0x00 {
		// The bus never rose after the low pulse.
		return false, shortedBusError("ds9097: bus has a short")
	}
	// Devices answer by pulling some of the high bits of the frame low.
	return echo != 0xf0, nil
}

// ReadBits reads 1 to 8 bits from the 1-wire bus and returns them packed
// least significant bit first.
func (d *Dev) ReadBits(bits int) (byte, error) {
	if bits < 1 || bits > 8 {
		return 0, errors.New("ds9097: invalid bit count")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setBaud(slotBaud)
	var v byte
	for i := 0; i < bits; i++ {
		// A read slot is a write-one slot sampled back: the addressed
		// device holds the line low through the frame to send a 0.
		if d.exchange(0xff) == 0xff {
			v |= 1 << uint(i)
		}
	}
	return v, d.err
}

// WriteBits writes the low bits of v to the 1-wire bus, least significant
// bit first.
func (d *Dev) WriteBits(v byte, bits int) error {
	if bits < 1 || bits > 8 {
		return errors.New("ds9097: invalid bit count")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setBaud(slotBaud)
	for i := 0; i < bits; i++ {
		f := byte(0x00)
		if v>>uint(i)&1 != 0 {
			f = 0xff
		}
		d.exchange(f)
	}
	return d.err
}

// setBaud reconfigures the UART when the wanted rate differs from the
// current one.
func (d *Dev) setBaud(baud int) {
	if d.err != nil || d.baud == baud {
		return
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := d.port.SetMode(mode); err != nil {
		d.err = fmt.Errorf("ds9097: failed to switch to %d baud: %v", baud, err)
		return
	}
	d.baud = baud
}

// exchange transmits one UART frame and returns its echo off the bus.
func (d *Dev) exchange(v byte) byte {
	if d.err != nil {
		return 0
	}
	if _, err := d.port.Write([]byte{v}); err != nil {
		d.err = fmt.Errorf("ds9097: write failed: %v", err)
		return 0
	}
	var buf [1]byte
	n, err := d.port.Read(buf[:])
	if err != nil {
		d.err = fmt.Errorf("ds9097: read failed: %v", err)
		return 0
	}
	if n == 0 {
		d.err = errors.New("ds9097: timeout waiting for echo")
		return 0
	}
	return buf[0]
}

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

var _ conn.Resource = &Dev{}
var _ io.Closer = &Dev{}
var _ owi.Link = &Dev{}
