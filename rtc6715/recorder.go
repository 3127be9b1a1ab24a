package rtc6715

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// EventKind is the kind of a recorded bus operation.
type EventKind int

const (
	EventOut EventKind = iota
	EventRead
	EventDelay
)

// Event is one operation seen by a Recorder.
type Event struct {
	Kind  EventKind
	Line  Line
	Level gpio.Level
}

func (e Event) String() string {
	switch e.Kind {
	case EventOut:
		return fmt.Sprintf("%s=%s", e.Line, e.Level)
	case EventRead:
		return fmt.Sprintf("%s?%s", e.Line, e.Level)
	case EventDelay:
		return "delay"
	}
	return fmt.Sprintf("EventKind(%d)", int(e.Kind))
}

// Recorder is a Bus that drives no hardware. It keeps the level of each line,
// records every operation, and answers data line reads from a script.
type Recorder struct {
	// Events holds the recorded operations, oldest first.
	Events []Event
	// Samples are returned, in order, by reads of the data line. Once they run
	// out a read returns the level last driven on the line.
	Samples []gpio.Level
	// Limit caps len(Events); when reached the oldest half is dropped. Zero
	// means no limit.
	Limit int

	levels [3]gpio.Level
}

// NewRecorder returns a Recorder with all lines low that answers data line
// reads with samples.
func NewRecorder(samples ...gpio.Level) *Recorder {
	return &Recorder{Samples: samples}
}

// Out implements Bus.
func (r *Recorder) Out(l Line, level gpio.Level) error {
	if l < Clock || l > Data {
		return fmt.Errorf("recorder: unknown line %s", l)
	}
	r.levels[l] = level
	r.record(Event{Kind: EventOut, Line: l, Level: level})
	return nil
}

// Read implements Bus.
func (r *Recorder) Read(l Line) (gpio.Level, error) {
	if l < Clock || l > Data {
		return gpio.Low, fmt.Errorf("recorder: unknown line %s", l)
	}
	level := r.levels[l]
	if l == Data && len(r.Samples) > 0 {
		level = r.Samples[0]
		r.Samples = r.Samples[1:]
	}
	r.record(Event{Kind: EventRead, Line: l, Level: level})
	return level, nil
}

// Delay implements Bus.
func (r *Recorder) Delay() {
	r.record(Event{Kind: EventDelay})
}

// Level returns the level last driven on l.
func (r *Recorder) Level(l Line) gpio.Level {
	return r.levels[l]
}

// Reset forgets all recorded events. Line levels are kept.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}

// Outputs returns the recorded line transitions without reads and delays.
func (r *Recorder) Outputs() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == EventOut {
			out = append(out, e)
		}
	}
	return out
}

// Clocked returns the level of the data line at every rising clock edge, which
// is what the chip latches.
func (r *Recorder) Clocked() []gpio.Level {
	var bits []gpio.Level
	var clk, data gpio.Level
	for _, e := range r.Events {
		if e.Kind != EventOut {
			continue
		}
		switch e.Line {
		case Clock:
			if !clk && e.Level {
				bits = append(bits, data)
			}
			clk = e.Level
		case Data:
			data = e.Level
		}
	}
	return bits
}

// Delays returns the number of recorded delays.
func (r *Recorder) Delays() int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == EventDelay {
			n++
		}
	}
	return n
}

func (r *Recorder) record(e Event) {
	if r.Limit > 0 && len(r.Events) >= r.Limit {
		n := copy(r.Events, r.Events[len(r.Events)/2:])
		r.Events = r.Events[:n]
	}
	r.Events = append(r.Events, e)
}
