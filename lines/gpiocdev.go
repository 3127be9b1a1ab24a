package lines

import (
	"fmt"
	"strconv"
	"time"

	"github.com/linht/rx5808-manager/rtc6715"
	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
)

// GPIOCDev drives the lines through the Linux GPIO character device.
type GPIOCDev struct {
	chip     *gpiocdev.Chip
	lines    [3]*gpiocdev.Line
	offsets  [3]int
	chipPath string
	delay    time.Duration
}

var consumers = [3]string{
	rtc6715.Clock:  "rtc6715-clk",
	rtc6715.Select: "rtc6715-sel",
	rtc6715.Data:   "rtc6715-data",
}

// OpenGPIOCDev requests the three pins on chipPath as outputs, initially low.
// A pin is either a line offset or a line name such as "GPIO17".
func OpenGPIOCDev(chipPath string, pins Pins, delay time.Duration) (*GPIOCDev, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	g := &GPIOCDev{
		chip:     chip,
		chipPath: chipPath,
		delay:    delay,
	}

	for l, name := range [3]string{
		rtc6715.Clock:  pins.Clock,
		rtc6715.Select: pins.Select,
		rtc6715.Data:   pins.Data,
	} {
		offset, err := lineOffset(chip, name)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.offsets[l] = offset
	}
	if err := distinct(g.offsets[0], g.offsets[1], g.offsets[2]); err != nil {
		g.Close()
		return nil, err
	}

	for l, offset := range g.offsets {
		line, err := chip.RequestLine(
			offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(consumers[l]),
		)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to request %s pin %d: %w", rtc6715.Line(l), offset, err)
		}
		g.lines[l] = line
	}

	return g, nil
}

func lineOffset(chip *gpiocdev.Chip, name string) (int, error) {
	offset, err := resolveLine(name, chip.Lines(), chip.LineInfo)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", chip.Name, err)
	}
	return offset, nil
}

// resolveLine maps a pin to an offset among the n lines of a chip. A numeric
// pin is taken as the offset; anything else is matched against the line names
// reported by info, first match wins.
func resolveLine(name string, n int, info func(offset int) (gpiocdev.LineInfo, error)) (int, error) {
	if offset, err := strconv.Atoi(name); err == nil {
		if offset < 0 || offset >= n {
			return 0, fmt.Errorf("%w: offset %d not in [0, %d)", ErrUnknownPin, offset, n)
		}
		return offset, nil
	}
	for offset := 0; offset < n; offset++ {
		li, err := info(offset)
		if err != nil {
			return 0, fmt.Errorf("failed to read info of line %d: %w", offset, err)
		}
		if li.Name == name {
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: no line named %q", ErrUnknownPin, name)
}

// Out implements rtc6715.Bus.
func (g *GPIOCDev) Out(l rtc6715.Line, level gpio.Level) error {
	line, err := g.line(l)
	if err != nil {
		return err
	}
	value := 0
	if level {
		value = 1
	}
	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set %s pin to %s: %w", l, level, err)
	}
	return nil
}

// Read implements rtc6715.Bus. The line stays an output; what comes back is
// the level the kernel reports for it.
func (g *GPIOCDev) Read(l rtc6715.Line) (gpio.Level, error) {
	line, err := g.line(l)
	if err != nil {
		return gpio.Low, err
	}
	value, err := line.Value()
	if err != nil {
		return gpio.Low, fmt.Errorf("failed to read %s pin: %w", l, err)
	}
	return value == 1, nil
}

// Delay implements rtc6715.Bus.
func (g *GPIOCDev) Delay() {
	spin(g.delay)
}

func (g *GPIOCDev) line(l rtc6715.Line) (*gpiocdev.Line, error) {
	if l < rtc6715.Clock || l > rtc6715.Data || g.lines[l] == nil {
		return nil, fmt.Errorf("%s line not initialized", l)
	}
	return g.lines[l], nil
}

// Close drives the lines low and releases them and the chip.
func (g *GPIOCDev) Close() error {
	var errs []error

	for l, line := range g.lines {
		if line == nil {
			continue
		}
		_ = line.SetValue(0)
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s line: %w", rtc6715.Line(l), err))
		}
		g.lines[l] = nil
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		g.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing GPIO: %v", errs)
	}

	return nil
}

// Info implements Bus.
func (g *GPIOCDev) Info() string {
	if g.chip == nil {
		return fmt.Sprintf("GPIO: %s (closed)", g.chipPath)
	}
	return fmt.Sprintf("GPIO: %s (%s, %s), CLK: %d, SEL: %d, DATA: %d, delay: %s",
		g.chipPath, g.chip.Name, g.chip.Label,
		g.offsets[rtc6715.Clock], g.offsets[rtc6715.Select], g.offsets[rtc6715.Data], g.delay)
}
