// Package rtc6715 drives the RTC6715 5.8 GHz receiver synthesizer found in
// RX5808 video receiver modules.
//
// The chip is programmed over a three-wire serial interface (clock, data and
// an active-low select) which this package bit bangs on general purpose lines.
// Every field goes on the wire least significant bit first:
//
//	address (4 bits) | R/W (1 bit) | data (16 bits) | padding (4 zero bits)
//
// The chip never acknowledges anything, so writes are open loop. The read path
// has never been verified against hardware.
//
// Datasheet: RTC6715 5.8GHz FM receiver, Richwave Technology.
package rtc6715

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Line identifies one of the three lines of the serial interface.
type Line int

const (
	Clock Line = iota
	Select
	Data
)

var lineNames = [...]string{"CLK", "SEL", "DATA"}

func (l Line) String() string {
	if l < 0 || int(l) >= len(lineNames) {
		return fmt.Sprintf("Line(%d)", int(l))
	}
	return lineNames[l]
}

// Bus is the line control the driver is built on. It owns the three lines,
// sets them high or low, samples them, and waits one fixed short delay.
type Bus interface {
	Out(l Line, level gpio.Level) error
	Read(l Line) (gpio.Level, error)
	Delay()
}

// State is a phase of a register transaction.
type State int

const (
	Idle State = iota
	EnableAsserting
	TransmittingAddress
	TransmittingRWFlag
	TransmittingData
	ReceivingData
	TransmittingPadding
	EnableDeasserting
)

var stateNames = [...]string{
	"Idle",
	"EnableAsserting",
	"TransmittingAddress",
	"TransmittingRWFlag",
	"TransmittingData",
	"ReceivingData",
	"TransmittingPadding",
	"EnableDeasserting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StabilizationDelay is how long RSSI readings stay unreliable after a
// frequency write.
const StabilizationDelay = 25 * time.Millisecond

// ErrNoBus is returned by New when no line bus is supplied.
var ErrNoBus = errors.New("rtc6715: no line bus")

// Option configures a Dev.
type Option func(*Dev)

// WithObserver registers fn to be called on every state change of a transaction.
// fn runs between line transitions and should return quickly.
func WithObserver(fn func(State)) Option {
	return func(d *Dev) {
		d.observe = fn
	}
}

// Dev represents an RTC6715 on a three-line bus.
type Dev struct {
	bus     Bus
	observe func(State)
}

// New binds a driver to bus. The bus must already drive all three lines as
// outputs; no reset or identification is attempted since the chip has none.
func New(bus Bus, opts ...Option) (*Dev, error) {
	if bus == nil {
		return nil, ErrNoBus
	}
	d := &Dev{bus: bus}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetFrequency tunes the receiver to mhz by writing synthesizer register B.
//
// The frequency is not range checked. The returned error only reports line
// failures; whether the chip took the value cannot be known.
func (d *Dev) SetFrequency(mhz int) error {
	return d.WriteRegister(RegSynthB, Encode(mhz).Payload())
}

// WriteRegister writes 16 data bits to the register at addr and parks all
// lines low afterwards.
func (d *Dev) WriteRegister(addr uint8, data uint16) error {
	t := &txn{bus: d.bus}

	d.enter(EnableAsserting)
	t.enableHigh()
	t.delay()
	t.enableLow()

	d.enter(TransmittingAddress)
	t.field(uint32(addr), addressBits)

	d.enter(TransmittingRWFlag)
	t.bit(rwWrite)

	d.enter(TransmittingData)
	t.field(uint32(data), payloadBits)

	d.enter(TransmittingPadding)
	t.field(0, paddingBits)

	d.enter(EnableDeasserting)
	t.enableHigh()
	t.delay()

	t.park()
	d.enter(Idle)

	if t.err != nil {
		d.park()
		return fmt.Errorf("rtc6715: write register 0x%02X: %w", addr, t.err)
	}
	return nil
}

// ReadRegister reads the register at addr the way the original RX5808
// firmware does.
//
// Known non-functional: each sampled high bit is folded in with
// acc = acc & 0x01 before acc is shifted, so no sampled bit survives and the
// result is always 0. The transaction is still clocked out in full and select
// is left high, so the last state an observer sees is EnableDeasserting rather
// than Idle. Use ReadRegisterShifted for an accumulator that keeps the bits.
func (d *Dev) ReadRegister(addr uint8) (uint32, error) {
	var acc uint32
	err := d.read(addr, func(level gpio.Level) {
		if level == gpio.High {
			acc = acc & 0x01
		}
		acc <<= 1
	})
	if err != nil {
		return 0, err
	}
	return acc, nil
}

// ReadRegisterShifted reads the 20-bit register at addr, assembling the
// sampled bits LSB first. Unlike ReadRegister it parks the lines low when
// done. It has not been verified against hardware.
func (d *Dev) ReadRegisterShifted(addr uint8) (uint32, error) {
	var acc uint32
	i := 0
	err := d.read(addr, func(level gpio.Level) {
		if level == gpio.High {
			acc |= 1 << i
		}
		i++
	})
	if err == nil {
		t := &txn{bus: d.bus}
		t.park()
		err = t.err
		d.enter(Idle)
	}
	if err != nil {
		return 0, err
	}
	return acc & registerMask, nil
}

func (d *Dev) read(addr uint8, fold func(gpio.Level)) error {
	t := &txn{bus: d.bus}

	d.enter(EnableAsserting)
	t.enableHigh()
	t.enableLow()

	d.enter(TransmittingAddress)
	t.field(uint32(addr), addressBits)

	d.enter(TransmittingRWFlag)
	t.bit(rwRead)

	d.enter(ReceivingData)
	for i := 0; i < readBits && t.err == nil; i++ {
		fold(t.sample())
	}

	d.enter(EnableDeasserting)
	t.enableHigh()

	if t.err != nil {
		d.park()
		d.enter(Idle)
		return fmt.Errorf("rtc6715: read register 0x%02X: %w", addr, t.err)
	}
	return nil
}

func (d *Dev) enter(s State) {
	if d.observe != nil {
		d.observe(s)
	}
}

// park drives all lines low ignoring errors, used after a failed transaction.
func (d *Dev) park() {
	_ = d.bus.Out(Select, gpio.Low)
	_ = d.bus.Out(Clock, gpio.Low)
	_ = d.bus.Out(Data, gpio.Low)
}

// txn runs the line sequence of one transaction. The first line error sticks
// and turns every later step into a no-op.
type txn struct {
	bus Bus
	err error
}

func (t *txn) out(l Line, level gpio.Level) {
	if t.err != nil {
		return
	}
	t.err = t.bus.Out(l, level)
}

func (t *txn) delay() {
	if t.err == nil {
		t.bus.Delay()
	}
}

func (t *txn) enableHigh() {
	t.delay()
	t.out(Select, gpio.High)
	t.delay()
}

func (t *txn) enableLow() {
	t.delay()
	t.out(Select, gpio.Low)
	t.delay()
}

// bit clocks out one bit: the chip latches data on the rising clock edge.
func (t *txn) bit(b uint32) {
	t.out(Clock, gpio.Low)
	t.delay()
	t.out(Data, b&1 == 1)
	t.delay()
	t.out(Clock, gpio.High)
	t.delay()
	t.out(Clock, gpio.Low)
	t.delay()
}

func (t *txn) field(v uint32, n int) {
	for i := 0; i < n; i++ {
		t.bit(v >> i)
	}
}

// sample pulses the clock once and reads the data line after the pulse.
func (t *txn) sample() gpio.Level {
	t.out(Clock, gpio.Low)
	t.delay()
	t.out(Clock, gpio.High)
	t.delay()
	t.out(Clock, gpio.Low)
	if t.err != nil {
		return gpio.Low
	}
	var level gpio.Level
	level, t.err = t.bus.Read(Data)
	t.delay()
	return level
}

func (t *txn) park() {
	t.out(Select, gpio.Low)
	t.out(Clock, gpio.Low)
	t.out(Data, gpio.Low)
}
