// Package lines opens the three GPIO lines an RTC6715 is wired to and exposes
// them as an rtc6715.Bus.
//
// Two hardware backends are available: the Linux GPIO character device
// (go-gpiocdev) and periph.io. A third, "sim", drives no hardware and records
// everything for inspection.
package lines

import (
	"errors"
	"fmt"
	"time"

	"github.com/linht/rx5808-manager/rtc6715"
	"periph.io/x/host/v3/cpu"
)

// Backend names
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendSim      = "sim"
)

// DefaultDelay is the time spent between two line transitions.
const DefaultDelay = time.Microsecond

// simEventLimit bounds the memory a long running simulated bus can hold.
const simEventLimit = 1 << 14

var (
	ErrUnknownBackend = errors.New("lines: unknown backend")
	ErrDuplicatePin   = errors.New("lines: pins must be distinct")
	ErrMissingPin     = errors.New("lines: pin not configured")
	ErrUnknownPin     = errors.New("lines: pin not found")
)

// Pins names the three lines. Their meaning depends on the backend: line
// offsets or line names on a gpiochip for gpiocdev, periph.io pin names
// ("GPIO17", "17", "P1_11") for periph.
type Pins struct {
	Clock  string `yaml:"clock" json:"clock"`
	Select string `yaml:"select" json:"select"`
	Data   string `yaml:"data" json:"data"`
}

// Config selects and configures a backend.
type Config struct {
	Backend string        `yaml:"backend" json:"backend"`
	Chip    string        `yaml:"gpio_chip" json:"gpio_chip"`
	Pins    Pins          `yaml:"pins" json:"pins"`
	Delay   time.Duration `yaml:"delay" json:"delay"`
}

// Bus is an rtc6715.Bus that holds hardware resources.
type Bus interface {
	rtc6715.Bus
	// Close parks the lines low and releases them.
	Close() error
	// Info describes the backend for diagnostics.
	Info() string
}

// Open opens the backend described by cfg. All three lines are outputs driven
// low when Open returns.
func Open(cfg Config) (Bus, error) {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	switch cfg.Backend {
	case BackendGPIOCDev, "":
		if err := checkPins(cfg.Pins); err != nil {
			return nil, err
		}
		chip := cfg.Chip
		if chip == "" {
			chip = "gpiochip0"
		}
		g, err := OpenGPIOCDev(chip, cfg.Pins, cfg.Delay)
		if err != nil {
			return nil, err
		}
		return g, nil
	case BackendPeriph:
		if err := checkPins(cfg.Pins); err != nil {
			return nil, err
		}
		p, err := OpenPeriph(cfg.Pins, cfg.Delay)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendSim:
		return NewSim(), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
}

func checkPins(p Pins) error {
	for _, pin := range []struct{ name, value string }{
		{"clock", p.Clock},
		{"select", p.Select},
		{"data", p.Data},
	} {
		if pin.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingPin, pin.name)
		}
	}
	return distinct(p.Clock, p.Select, p.Data)
}

// distinct reports ErrDuplicatePin unless clock, sel and data all differ.
func distinct[T comparable](clock, sel, data T) error {
	if clock == sel || clock == data || sel == data {
		return fmt.Errorf("%w: clock=%v select=%v data=%v", ErrDuplicatePin, clock, sel, data)
	}
	return nil
}

// spin busy-waits for d. Sleeping would hand the thread to the scheduler for
// far longer than the microsecond the protocol needs.
func spin(d time.Duration) {
	cpu.Nanospin(d)
}

// Sim is a Bus that drives no hardware.
type Sim struct {
	*rtc6715.Recorder
}

// NewSim returns a simulated bus with all lines low.
func NewSim() *Sim {
	r := rtc6715.NewRecorder()
	r.Limit = simEventLimit
	return &Sim{Recorder: r}
}

// Close implements Bus.
func (s *Sim) Close() error {
	return nil
}

// Info implements Bus.
func (s *Sim) Info() string {
	return fmt.Sprintf("Simulated lines (%d events recorded)", len(s.Events))
}
