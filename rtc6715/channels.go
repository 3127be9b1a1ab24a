package rtc6715

import (
	"errors"
	"fmt"
	"strings"
)

// Tuning range of the receiver in MHz. The low band extends the lower bound.
const (
	MinFrequency        = 5645
	MinFrequencyLowBand = 5345
	MaxFrequency        = 5945
)

// ChannelsPerBand is the number of channels in every band.
const ChannelsPerBand = 8

// ErrUnknownChannel is returned by Lookup for a band or channel outside the plan.
var ErrUnknownChannel = errors.New("rtc6715: unknown channel")

// Band is one row of the 5.8 GHz FPV channel plan.
type Band struct {
	Name        string
	Label       string
	Frequencies [ChannelsPerBand]int
	// LowBand is set for bands below MinFrequency.
	LowBand bool
}

// Bands is the channel plan. Without the low band its 40 channels are the
// indices 0..39 in this order.
var Bands = []Band{
	{Name: "A", Label: "Boscam A", Frequencies: [ChannelsPerBand]int{5865, 5845, 5825, 5805, 5785, 5765, 5745, 5725}},
	{Name: "B", Label: "Boscam B", Frequencies: [ChannelsPerBand]int{5733, 5752, 5771, 5790, 5809, 5828, 5847, 5866}},
	{Name: "E", Label: "Boscam E", Frequencies: [ChannelsPerBand]int{5705, 5685, 5665, 5645, 5885, 5905, 5925, 5945}},
	{Name: "F", Label: "Fatshark", Frequencies: [ChannelsPerBand]int{5740, 5760, 5780, 5800, 5820, 5840, 5860, 5880}},
	{Name: "R", Label: "Raceband", Frequencies: [ChannelsPerBand]int{5658, 5695, 5732, 5769, 5806, 5843, 5880, 5917}},
	{Name: "L", Label: "Low band", Frequencies: [ChannelsPerBand]int{5362, 5399, 5436, 5473, 5510, 5547, 5584, 5621}, LowBand: true},
}

// FindBand returns the band called name, ignoring case.
func FindBand(name string) (Band, bool) {
	for _, b := range Bands {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return Band{}, false
}

// Lookup returns the frequency of channel ch (1..8) in band.
func Lookup(band string, ch int) (int, error) {
	b, ok := FindBand(band)
	if !ok {
		return 0, fmt.Errorf("%w: band %q", ErrUnknownChannel, band)
	}
	if ch < 1 || ch > ChannelsPerBand {
		return 0, fmt.Errorf("%w: channel %d in band %s", ErrUnknownChannel, ch, b.Name)
	}
	return b.Frequencies[ch-1], nil
}

// ChannelIndex returns the frequency of the channel at index 0..39 of the plan
// without the low band, as the receiver firmware numbers them.
func ChannelIndex(i int) (int, error) {
	if i < 0 || i >= 5*ChannelsPerBand {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownChannel, i)
	}
	return Bands[i/ChannelsPerBand].Frequencies[i%ChannelsPerBand], nil
}
