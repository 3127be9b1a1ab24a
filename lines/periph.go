package lines

import (
	"fmt"
	"time"

	"github.com/linht/rx5808-manager/rtc6715"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives the lines through periph.io.
type Periph struct {
	pins  [3]gpio.PinIO
	delay time.Duration
}

// OpenPeriph initializes periph.io and looks up the three pins by name. Each
// pin is switched to an output driven low.
func OpenPeriph(pins Pins, delay time.Duration) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	p := &Periph{delay: delay}
	for l, name := range [3]string{
		rtc6715.Clock:  pins.Clock,
		rtc6715.Select: pins.Select,
		rtc6715.Data:   pins.Data,
	} {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: gpio pin %q", ErrUnknownPin, name)
		}
		p.pins[l] = pin
	}

	// Different names may alias the same pin.
	if err := distinct(p.pins[0].Number(), p.pins[1].Number(), p.pins[2].Number()); err != nil {
		return nil, err
	}

	for l, pin := range p.pins {
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure %s pin %s as output: %w", rtc6715.Line(l), pin, err)
		}
	}
	return p, nil
}

// Out implements rtc6715.Bus.
func (p *Periph) Out(l rtc6715.Line, level gpio.Level) error {
	pin, err := p.pin(l)
	if err != nil {
		return err
	}
	if err := pin.Out(level); err != nil {
		return fmt.Errorf("failed to set %s pin to %s: %w", l, level, err)
	}
	return nil
}

// Read implements rtc6715.Bus. The pin is not switched to an input.
func (p *Periph) Read(l rtc6715.Line) (gpio.Level, error) {
	pin, err := p.pin(l)
	if err != nil {
		return gpio.Low, err
	}
	return pin.Read(), nil
}

// Delay implements rtc6715.Bus.
func (p *Periph) Delay() {
	spin(p.delay)
}

func (p *Periph) pin(l rtc6715.Line) (gpio.PinIO, error) {
	if l < rtc6715.Clock || l > rtc6715.Data || p.pins[l] == nil {
		return nil, fmt.Errorf("%s pin not initialized", l)
	}
	return p.pins[l], nil
}

// Close drives all pins low. periph.io pins need no release.
func (p *Periph) Close() error {
	var errs []error
	for l, pin := range p.pins {
		if pin == nil {
			continue
		}
		if err := pin.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("failed to park %s pin: %w", rtc6715.Line(l), err))
		}
		p.pins[l] = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing pins: %v", errs)
	}
	return nil
}

// Info implements Bus.
func (p *Periph) Info() string {
	if p.pins[rtc6715.Clock] == nil {
		return "periph.io (closed)"
	}
	return fmt.Sprintf("periph.io CLK: %s, SEL: %s, DATA: %s, delay: %s",
		p.pins[rtc6715.Clock], p.pins[rtc6715.Select], p.pins[rtc6715.Data], p.delay)
}
