package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linht/rx5808-manager/lines"
	"github.com/linht/rx5808-manager/rtc6715"
	"gopkg.in/yaml.v3"
)

var (
	ErrOutOfRange     = errors.New("frequency out of range")
	ErrInvalidAddress = errors.New("invalid register address")
)

// ReceiverConfig holds the receiver configuration
type ReceiverConfig struct {
	lines.Config `yaml:",inline"`

	MinFrequency       int           `yaml:"min_frequency" json:"min_frequency"`
	MaxFrequency       int           `yaml:"max_frequency" json:"max_frequency"`
	LowBand            bool          `yaml:"low_band" json:"low_band"`
	StabilizationDelay time.Duration `yaml:"stabilization_delay" json:"stabilization_delay"`
	StateFile          string        `yaml:"state_file" json:"state_file"`
	Restore            bool          `yaml:"restore" json:"restore"`
}

func (c *ReceiverConfig) applyDefaults() {
	if c.Backend == "" {
		c.Backend = lines.BackendGPIOCDev
	}
	if c.Delay <= 0 {
		c.Delay = lines.DefaultDelay
	}
	if c.MinFrequency == 0 {
		c.MinFrequency = rtc6715.MinFrequency
		if c.LowBand {
			c.MinFrequency = rtc6715.MinFrequencyLowBand
		}
	}
	if c.MaxFrequency == 0 {
		c.MaxFrequency = rtc6715.MaxFrequency
	}
	if c.StabilizationDelay <= 0 {
		c.StabilizationDelay = rtc6715.StabilizationDelay
	}
}

func (c *ReceiverConfig) validate() error {
	if c.MinFrequency > c.MaxFrequency {
		return fmt.Errorf("min_frequency %d above max_frequency %d", c.MinFrequency, c.MaxFrequency)
	}
	return nil
}

// Tuning describes one frequency write
type Tuning struct {
	ID            string    `json:"id"`
	Seq           uint64    `json:"seq"`
	Frequency     int       `json:"frequency"`
	Band          string    `json:"band,omitempty"`
	Channel       int       `json:"channel,omitempty"`
	Register      string    `json:"register"`
	Payload       uint16    `json:"payload"`
	Time          time.Time `json:"time"`
	StableAfterMs int64     `json:"stable_after_ms"`
}

// StableAt returns when RSSI readings become meaningful for the new frequency
func (t Tuning) StableAt() time.Time {
	return t.Time.Add(time.Duration(t.StableAfterMs) * time.Millisecond)
}

// Trace is a dry run of a frequency write on simulated lines
type Trace struct {
	Frequency int      `json:"frequency"`
	Register  string   `json:"register"`
	Bits      string   `json:"bits"`
	States    []string `json:"states"`
	Events    []string `json:"events"`
	Delays    int      `json:"delays"`
}

// receiverState is what the state file keeps across restarts
type receiverState struct {
	Frequency int       `yaml:"frequency"`
	Band      string    `yaml:"band,omitempty"`
	Channel   int       `yaml:"channel,omitempty"`
	Updated   time.Time `yaml:"updated"`
}

// ReceiverController owns the receiver's lines for the life of the process.
// The driver has no locking of its own, so every transaction goes through mu.
type ReceiverController struct {
	mu     sync.Mutex
	cfg    ReceiverConfig
	bus    lines.Bus
	dev    *rtc6715.Dev
	events *EventHub
	last   *Tuning
	seq    uint64
}

// NewReceiverController opens the configured lines and binds the driver to them
func NewReceiverController(cfg ReceiverConfig, events *EventHub) (*ReceiverController, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bus, err := lines.Open(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to open receiver lines: %w", err)
	}

	dev, err := rtc6715.New(bus)
	if err != nil {
		bus.Close()
		return nil, err
	}

	return &ReceiverController{
		cfg:    cfg,
		bus:    bus,
		dev:    dev,
		events: events,
	}, nil
}

// Close parks and releases the lines
func (r *ReceiverController) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bus == nil {
		return nil
	}
	err := r.bus.Close()
	r.bus = nil
	r.dev = nil
	return err
}

// Bounds returns the accepted frequency range in MHz
func (r *ReceiverController) Bounds() (int, int) {
	return r.cfg.MinFrequency, r.cfg.MaxFrequency
}

func (r *ReceiverController) checkFrequency(mhz int) error {
	if mhz < r.cfg.MinFrequency || mhz > r.cfg.MaxFrequency {
		return fmt.Errorf("%w: %d MHz not in [%d, %d]", ErrOutOfRange, mhz, r.cfg.MinFrequency, r.cfg.MaxFrequency)
	}
	return nil
}

// SetFrequency tunes the receiver to mhz
func (r *ReceiverController) SetFrequency(mhz int) (Tuning, error) {
	return r.tune(mhz, "", 0)
}

// SetChannel tunes the receiver to channel ch (1-8) of band
func (r *ReceiverController) SetChannel(band string, ch int) (Tuning, error) {
	mhz, err := rtc6715.Lookup(band, ch)
	if err != nil {
		return Tuning{}, err
	}
	return r.tune(mhz, strings.ToUpper(band), ch)
}

func (r *ReceiverController) tune(mhz int, band string, ch int) (Tuning, error) {
	if err := r.checkFrequency(mhz); err != nil {
		return Tuning{}, err
	}

	reg := rtc6715.Encode(mhz)

	// The state file and the event order must follow the order of the writes,
	// so both happen under the same lock as the write itself.
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return Tuning{}, fmt.Errorf("receiver not initialized")
	}
	if err := r.dev.SetFrequency(mhz); err != nil {
		return Tuning{}, err
	}
	r.seq++
	t := Tuning{
		ID:            uuid.New().String(),
		Seq:           r.seq,
		Frequency:     mhz,
		Band:          band,
		Channel:       ch,
		Register:      fmt.Sprintf("0x%05X", uint32(reg)),
		Payload:       reg.Payload(),
		Time:          time.Now(),
		StableAfterMs: r.cfg.StabilizationDelay.Milliseconds(),
	}
	r.last = &t

	slog.Info("Receiver tuned", "frequency", mhz, "band", band, "channel", ch, "payload", fmt.Sprintf("0x%04X", t.Payload))

	if err := r.saveState(t); err != nil {
		slog.Warn("Failed to save receiver state", "error", err, "path", r.cfg.StateFile)
	}
	if r.events != nil {
		r.events.Publish(t)
	}
	return t, nil
}

// WaitStable blocks until RSSI readings are meaningful for t
func (r *ReceiverController) WaitStable(t Tuning) {
	if d := time.Until(t.StableAt()); d > 0 {
		time.Sleep(d)
	}
}

// Last returns the last tuning, or false if nothing was written yet
func (r *ReceiverController) Last() (Tuning, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return Tuning{}, false
	}
	return *r.last, true
}

// ReadRegister runs the diagnostic read of addr. Neither read path is known to
// work: the literal one always returns 0, the shifted one is untested.
func (r *ReceiverController) ReadRegister(addr int, shifted bool) (uint32, error) {
	if addr < 0 || addr > rtc6715.MaxAddress {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return 0, fmt.Errorf("receiver not initialized")
	}

	slog.Warn("Experimental register read", "address", fmt.Sprintf("0x%02X", addr), "shifted", shifted)
	if shifted {
		return r.dev.ReadRegisterShifted(uint8(addr))
	}
	return r.dev.ReadRegister(uint8(addr))
}

// Trace runs a frequency write against simulated lines and returns everything
// that would have gone out. No range check is applied and the hardware is not
// touched.
func (r *ReceiverController) Trace(mhz int) (Trace, error) {
	rec := rtc6715.NewRecorder()
	var states []string
	dev, err := rtc6715.New(rec, rtc6715.WithObserver(func(s rtc6715.State) {
		states = append(states, s.String())
	}))
	if err != nil {
		return Trace{}, err
	}
	if err := dev.SetFrequency(mhz); err != nil {
		return Trace{}, err
	}

	var bits strings.Builder
	for _, l := range rec.Clocked() {
		if l {
			bits.WriteByte('1')
		} else {
			bits.WriteByte('0')
		}
	}
	events := make([]string, len(rec.Events))
	for i, e := range rec.Events {
		events[i] = e.String()
	}

	return Trace{
		Frequency: mhz,
		Register:  fmt.Sprintf("0x%05X", uint32(rtc6715.Encode(mhz))),
		Bits:      bits.String(),
		States:    states,
		Events:    events,
		Delays:    rec.Delays(),
	}, nil
}

// Restore re-applies the frequency from the state file, if there is one
func (r *ReceiverController) Restore() error {
	st, err := loadState(r.cfg.StateFile)
	if err != nil || st == nil {
		return err
	}
	if st.Band != "" && st.Channel != 0 {
		_, err = r.SetChannel(st.Band, st.Channel)
	} else {
		_, err = r.SetFrequency(st.Frequency)
	}
	if err != nil {
		return fmt.Errorf("failed to restore receiver state: %w", err)
	}
	slog.Info("Receiver state restored", "frequency", st.Frequency, "path", r.cfg.StateFile)
	return nil
}

func (r *ReceiverController) saveState(t Tuning) error {
	if r.cfg.StateFile == "" {
		return nil
	}
	data, err := yaml.Marshal(receiverState{
		Frequency: t.Frequency,
		Band:      t.Band,
		Channel:   t.Channel,
		Updated:   t.Time.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file.
	dir := filepath.Dir(r.cfg.StateFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(r.cfg.StateFile)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, r.cfg.StateFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func loadState(path string) (*receiverState, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var st receiverState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if st.Frequency == 0 {
		return nil, nil
	}
	return &st, nil
}

// Info returns information about the controller
func (r *ReceiverController) Info() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := map[string]interface{}{
		"initialized":   r.bus != nil,
		"backend":       r.cfg.Backend,
		"min_frequency": r.cfg.MinFrequency,
		"max_frequency": r.cfg.MaxFrequency,
		"low_band":      r.cfg.LowBand,
		"stable_after":  r.cfg.StabilizationDelay.String(),
	}
	if r.bus != nil {
		info["lines"] = r.bus.Info()
	}
	if r.events != nil {
		info["subscribers"] = r.events.Len()
	}
	return info
}
