package plugins

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/linht/rx5808-manager/rtc6715"
	"gopkg.in/yaml.v3"
)

// ReceiverPlugin provides RX5808 receiver control.
// Unlike a transient connection per request, the lines are held for the life
// of the plugin: the chip has a single owner.
type ReceiverPlugin struct {
	config     ReceiverConfig
	controller *ReceiverController
	events     *EventHub
}

// NewReceiverPlugin creates a new receiver plugin instance and opens its lines
func NewReceiverPlugin(cfg ReceiverConfig) (*ReceiverPlugin, error) {
	cfg.applyDefaults()

	slog.Info("Receiver plugin initializing",
		"backend", cfg.Backend,
		"gpio_chip", cfg.Chip,
		"clock_pin", cfg.Pins.Clock,
		"select_pin", cfg.Pins.Select,
		"data_pin", cfg.Pins.Data,
		"min_frequency", cfg.MinFrequency,
		"max_frequency", cfg.MaxFrequency)

	events := NewEventHub()
	controller, err := NewReceiverController(cfg, events)
	if err != nil {
		return nil, err
	}

	if cfg.Restore {
		if err := controller.Restore(); err != nil {
			slog.Warn("Receiver state not restored", "error", err)
		}
	}

	return &ReceiverPlugin{
		config:     cfg,
		controller: controller,
		events:     events,
	}, nil
}

// Name returns the plugin identifier
func (p *ReceiverPlugin) Name() string {
	return "receiver"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *ReceiverPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/receiver")

	api.Get("/info", p.handleInfo)

	// Tuning
	api.Get("/frequency", p.handleGetFrequency)
	api.Post("/frequency", p.handleSetFrequency)
	api.Post("/channel", p.handleSetChannel)
	api.Get("/channels", p.handleChannels)
	api.Get("/encode/:freq", p.handleEncode)

	// Diagnostics
	api.Get("/register/:addr", p.handleReadRegister)
	api.Get("/registers", p.handleRegisters)
	api.Post("/trace", p.handleTrace)

	// Tuning events
	api.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/events", websocket.New(p.handleEvents))

	slog.Info("Receiver plugin routes registered")
}

// Shutdown closes event streams and releases the lines
func (p *ReceiverPlugin) Shutdown() error {
	p.events.Close()
	return p.controller.Close()
}

func (p *ReceiverPlugin) handleInfo(c *fiber.Ctx) error {
	return SendSuccess(c, map[string]interface{}{
		"config":     p.config,
		"controller": p.controller.Info(),
	}, "")
}

// Tuning handlers

func (p *ReceiverPlugin) handleGetFrequency(c *fiber.Ctx) error {
	t, ok := p.controller.Last()
	if !ok {
		return SendSuccess(c, map[string]interface{}{
			"set": false,
		}, "No frequency written yet")
	}
	return SendSuccess(c, t, "")
}

func (p *ReceiverPlugin) handleSetFrequency(c *fiber.Ctx) error {
	var req struct {
		Frequency int  `json:"frequency"`
		Wait      bool `json:"wait"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Frequency == 0 {
		return SendErrorMessage(c, fiber.StatusBadRequest, "frequency is required")
	}

	t, err := p.controller.SetFrequency(req.Frequency)
	if err != nil {
		slog.Error("Failed to set frequency", "frequency", req.Frequency, "error", err)
		return SendFailure(c, err)
	}
	if req.Wait {
		p.controller.WaitStable(t)
	}

	return SendSuccess(c, t, fmt.Sprintf("Receiver tuned to %d MHz", t.Frequency))
}

func (p *ReceiverPlugin) handleSetChannel(c *fiber.Ctx) error {
	var req struct {
		Band    string `json:"band"`
		Channel int    `json:"channel"`
		Wait    bool   `json:"wait"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request body")
	}

	t, err := p.controller.SetChannel(req.Band, req.Channel)
	if err != nil {
		slog.Error("Failed to set channel", "band", req.Band, "channel", req.Channel, "error", err)
		return SendFailure(c, err)
	}
	if req.Wait {
		p.controller.WaitStable(t)
	}

	return SendSuccess(c, t, fmt.Sprintf("Receiver tuned to %s%d (%d MHz)", t.Band, t.Channel, t.Frequency))
}

func (p *ReceiverPlugin) handleChannels(c *fiber.Ctx) error {
	lo, hi := p.controller.Bounds()

	bands := make([]map[string]interface{}, 0, len(rtc6715.Bands))
	for _, b := range rtc6715.Bands {
		channels := make([]map[string]interface{}, 0, len(b.Frequencies))
		for i, f := range b.Frequencies {
			channels = append(channels, map[string]interface{}{
				"channel":   i + 1,
				"frequency": f,
				"payload":   fmt.Sprintf("0x%04X", rtc6715.Encode(f).Payload()),
				"available": f >= lo && f <= hi,
			})
		}
		bands = append(bands, map[string]interface{}{
			"name":     b.Name,
			"label":    b.Label,
			"low_band": b.LowBand,
			"channels": channels,
		})
	}

	return SendSuccess(c, map[string]interface{}{
		"bands":         bands,
		"min_frequency": lo,
		"max_frequency": hi,
	}, "")
}

func (p *ReceiverPlugin) handleEncode(c *fiber.Ctx) error {
	freq, err := c.ParamsInt("freq")
	if err != nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid frequency")
	}

	reg := rtc6715.Encode(freq)
	lo, hi := p.controller.Bounds()
	return SendSuccess(c, map[string]interface{}{
		"frequency":       freq,
		"n":               reg.N(),
		"a":               reg.A(),
		"register":        fmt.Sprintf("0x%05X", uint32(reg)),
		"payload":         fmt.Sprintf("0x%04X", reg.Payload()),
		"bits":            reg.Bits(),
		"tuned_frequency": reg.Frequency(),
		"in_range":        freq >= lo && freq <= hi,
	}, "")
}

// Diagnostic handlers

func (p *ReceiverPlugin) handleReadRegister(c *fiber.Ctx) error {
	addr, err := c.ParamsInt("addr")
	if err != nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid register address")
	}

	var shifted bool
	switch mode := c.Query("mode", "literal"); mode {
	case "literal":
	case "shifted":
		shifted = true
	default:
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid mode. Use: literal or shifted")
	}

	value, err := p.controller.ReadRegister(addr, shifted)
	if err != nil {
		return SendFailure(c, err)
	}

	desc := rtc6715.RegisterDescriptions[uint8(addr)]
	if desc == "" {
		desc = "Unknown register"
	}

	return SendSuccess(c, map[string]interface{}{
		"address":     fmt.Sprintf("0x%02X", addr),
		"value":       fmt.Sprintf("0x%05X", value),
		"value_dec":   value,
		"description": desc,
		"shifted":     shifted,
	}, "Experimental read, value not reliable")
}

func (p *ReceiverPlugin) handleRegisters(c *fiber.Ctx) error {
	regList := make([]map[string]interface{}, 0, len(rtc6715.RegisterDescriptions))
	for addr := 0; addr <= rtc6715.MaxAddress; addr++ {
		desc, ok := rtc6715.RegisterDescriptions[uint8(addr)]
		if !ok {
			continue
		}
		regList = append(regList, map[string]interface{}{
			"address":     fmt.Sprintf("0x%02X", addr),
			"description": desc,
		})
	}

	return SendSuccess(c, map[string]interface{}{
		"registers": regList,
		"count":     len(regList),
	}, "")
}

func (p *ReceiverPlugin) handleTrace(c *fiber.Ctx) error {
	var req struct {
		Frequency int `json:"frequency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request body")
	}

	trace, err := p.controller.Trace(req.Frequency)
	if err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, trace, "")
}

// handleEvents streams every tuning to the websocket client, starting with the
// current one
func (p *ReceiverPlugin) handleEvents(c *websocket.Conn) {
	id, ch := p.events.Subscribe()
	defer p.events.Unsubscribe(id)

	// The client never sends anything useful; reading detects the disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	first, ok := p.controller.Last()
	err := streamTunings(first, ok, ch, done, func(t Tuning) error {
		return c.WriteJSON(t)
	})
	if err != nil {
		slog.Debug("Event stream closed", "id", id, "error", err)
	}
}

// streamTunings sends first, if ok, then every tuning from ch until ch is
// closed, done fires or send fails. Tunings from ch that are not newer than
// first were already covered by it and are skipped.
func streamTunings(first Tuning, ok bool, ch <-chan Tuning, done <-chan struct{}, send func(Tuning) error) error {
	var seen uint64
	if ok {
		if err := send(first); err != nil {
			return err
		}
		seen = first.Seq
	}

	for {
		select {
		case t, open := <-ch:
			if !open {
				return nil
			}
			if t.Seq <= seen {
				continue
			}
			if err := send(t); err != nil {
				return err
			}
			seen = t.Seq
		case <-done:
			return nil
		}
	}
}

// parseReceiverConfig decodes the receiver section of the config file
func parseReceiverConfig(config map[string]interface{}) (ReceiverConfig, error) {
	var cfg ReceiverConfig
	if config == nil {
		return cfg, nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return cfg, fmt.Errorf("invalid config for receiver plugin: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config for receiver plugin: %w", err)
	}
	return cfg, nil
}

// Register the plugin
func init() {
	Register("receiver", func(config map[string]interface{}) (Plugin, error) {
		cfg, err := parseReceiverConfig(config)
		if err != nil {
			return nil, err
		}

		slog.Info("Receiver plugin config parsed",
			"backend", cfg.Backend,
			"gpio_chip", cfg.Chip,
			"delay", cfg.Delay,
			"state_file", cfg.StateFile,
			"restore", cfg.Restore)

		return NewReceiverPlugin(cfg)
	})
}
