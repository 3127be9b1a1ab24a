// rtc6715 tunes an RX5808 receiver module from the command line.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/linht/rx5808-manager/lines"
	"github.com/linht/rx5808-manager/rtc6715"
)

// checkArgs validates the tuning and read flags and returns the frequency to
// tune to, 0 for none. read is negative when no register is to be read.
func checkArgs(freq int, band string, channel int, lowBand bool, read int) (int, error) {
	switch {
	case band != "" || channel != 0:
		if freq != 0 {
			return 0, errors.New("use either -freq or -band/-channel")
		}
		f, err := rtc6715.Lookup(band, channel)
		if err != nil {
			return 0, err
		}
		freq = f
	case freq == 0 && read < 0:
		return 0, errors.New("specify -freq, -band/-channel or -read")
	}

	if freq != 0 {
		lo := rtc6715.MinFrequency
		if lowBand {
			lo = rtc6715.MinFrequencyLowBand
		}
		if freq < lo || freq > rtc6715.MaxFrequency {
			return 0, fmt.Errorf("%d MHz out of range [%d, %d]", freq, lo, rtc6715.MaxFrequency)
		}
	}
	if read > rtc6715.MaxAddress {
		return 0, fmt.Errorf("register address %d out of range [0, %d]", read, rtc6715.MaxAddress)
	}
	return freq, nil
}

func mainImpl() error {
	backend := flag.String("backend", lines.BackendGPIOCDev, "line backend: gpiocdev, periph or sim")
	chip := flag.String("chip", "gpiochip0", "gpiochip for the gpiocdev backend")
	clk := flag.String("clk", "", "clock line (CH3)")
	cs := flag.String("cs", "", "select line (CH2)")
	data := flag.String("data", "", "data line (CH1)")
	delay := flag.Duration("delay", lines.DefaultDelay, "time between line transitions")
	freq := flag.Int("freq", 0, "frequency to tune to, in MHz")
	band := flag.String("band", "", "band to tune to: A, B, E, F, R or L")
	channel := flag.Int("channel", 0, "channel in -band, 1-8")
	lowBand := flag.Bool("lowband", false, "accept frequencies down to 5345 MHz")
	read := flag.Int("read", -1, "register address to read, 0-15 (experimental)")
	shifted := flag.Bool("shifted", false, "use the shifted accumulator for -read")
	trace := flag.Bool("trace", false, "run on simulated lines and print every line operation")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	f, err := checkArgs(*freq, *band, *channel, *lowBand, *read)
	if err != nil {
		return err
	}
	*freq = f

	cfg := lines.Config{
		Backend: *backend,
		Chip:    *chip,
		Pins:    lines.Pins{Clock: *clk, Select: *cs, Data: *data},
		Delay:   *delay,
	}
	if *trace {
		cfg.Backend = lines.BackendSim
	}
	bus, err := lines.Open(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	var opts []rtc6715.Option
	if *trace {
		opts = append(opts, rtc6715.WithObserver(func(s rtc6715.State) {
			fmt.Printf("-- %s\n", s)
		}))
	}
	d, err := rtc6715.New(bus, opts...)
	if err != nil {
		return err
	}

	if *freq != 0 {
		reg := rtc6715.Encode(*freq)
		if err := d.SetFrequency(*freq); err != nil {
			return err
		}
		fmt.Printf("%d MHz: N=%d A=%d payload=0x%04X bits=%s\n", *freq, reg.N(), reg.A(), reg.Payload(), reg.Bits())
		// RSSI is meaningless until the synthesizer settles.
		time.Sleep(rtc6715.StabilizationDelay)
	}

	if *read >= 0 {
		var v uint32
		if *shifted {
			v, err = d.ReadRegisterShifted(uint8(*read))
		} else {
			v, err = d.ReadRegister(uint8(*read))
		}
		if err != nil {
			return err
		}
		fmt.Printf("register 0x%02X: 0x%05X (experimental)\n", *read, v)
	}

	if sim, ok := bus.(*lines.Sim); ok && *trace {
		for _, e := range sim.Events {
			fmt.Println(e)
		}
		fmt.Printf("%d events, %d delays\n", len(sim.Events), sim.Delays())
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "rtc6715: %s.\n", err)
		os.Exit(1)
	}
}
