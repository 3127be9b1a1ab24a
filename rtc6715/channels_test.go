package rtc6715

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		band string
		ch   int
		want int
	}{
		{"A", 1, 5865},
		{"a", 8, 5725},
		{"R", 1, 5658},
		{"F", 4, 5800},
		{"E", 4, 5645},
		{"L", 1, 5362},
	}
	for _, c := range cases {
		got, err := Lookup(c.band, c.ch)
		if err != nil {
			t.Fatalf("Lookup(%q, %d) error: %v", c.band, c.ch, err)
		}
		if got != c.want {
			t.Errorf("Lookup(%q, %d)=%d want %d", c.band, c.ch, got, c.want)
		}
	}

	for _, bad := range []struct {
		band string
		ch   int
	}{{"X", 1}, {"A", 0}, {"A", 9}, {"", 1}} {
		if _, err := Lookup(bad.band, bad.ch); !errors.Is(err, ErrUnknownChannel) {
			t.Errorf("Lookup(%q, %d) error=%v want %v", bad.band, bad.ch, err, ErrUnknownChannel)
		}
	}
}

func TestChannelIndex(t *testing.T) {
	if f, err := ChannelIndex(0); err != nil || f != 5865 {
		t.Fatalf("ChannelIndex(0)=%d,%v want 5865", f, err)
	}
	if f, err := ChannelIndex(39); err != nil || f != 5917 {
		t.Fatalf("ChannelIndex(39)=%d,%v want 5917", f, err)
	}
	if _, err := ChannelIndex(40); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("ChannelIndex(40) error=%v want %v", err, ErrUnknownChannel)
	}
}

func TestChannelPlanInRange(t *testing.T) {
	for _, b := range Bands {
		lo := MinFrequency
		if b.LowBand {
			lo = MinFrequencyLowBand
		}
		for i, f := range b.Frequencies {
			if f < lo || f > MaxFrequency {
				t.Errorf("band %s channel %d: %d MHz outside [%d, %d]", b.Name, i+1, f, lo, MaxFrequency)
			}
		}
	}
}

// Distinct channel frequencies must not share a transmitted payload, except the
// two known pairs 1 MHz apart that floor onto the same synthesizer step.
func TestChannelPlanPayloadsDistinct(t *testing.T) {
	byPayload := make(map[uint16]map[int]bool)
	for _, b := range Bands {
		for _, f := range b.Frequencies {
			p := Encode(f).Payload()
			if byPayload[p] == nil {
				byPayload[p] = make(map[int]bool)
			}
			byPayload[p][f] = true
		}
	}

	var collisions [][]int
	for _, freqs := range byPayload {
		if len(freqs) < 2 {
			continue
		}
		var fs []int
		for f := range freqs {
			fs = append(fs, f)
		}
		sort.Ints(fs)
		collisions = append(collisions, fs)
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i][0] < collisions[j][0] })

	want := [][]int{{5805, 5806}, {5865, 5866}}
	if !reflect.DeepEqual(collisions, want) {
		t.Fatalf("payload collisions=%v want %v", collisions, want)
	}
}

// On the synthesizer grid (odd frequencies) the payload is injective over the
// whole tuning range.
func TestGridPayloadsDistinct(t *testing.T) {
	seen := make(map[uint16]int)
	for f := MinFrequencyLowBand; f <= MaxFrequency; f += 2 {
		p := Encode(f).Payload()
		if prev, ok := seen[p]; ok {
			t.Fatalf("%d and %d MHz share payload %#x", prev, f, p)
		}
		seen[p] = f
	}
}
