package rtc6715

// RTC6715 register addresses
const (
	RegSynthA     = 0x00 // Synthesizer register A: reference divider
	RegSynthB     = 0x01 // Synthesizer register B: N and A counters
	RegSynthC     = 0x02 // Synthesizer register C
	RegSynthD     = 0x03 // Synthesizer register D
	RegVCOSwitch  = 0x04 // VCO switch-cap control
	RegDFC        = 0x05 // DFC control
	RegAudio6M    = 0x06 // 6M audio demodulator control
	RegAudio6M5   = 0x07 // 6M5 audio demodulator control
	RegRxControl1 = 0x08 // Receiver control register 1
	RegRxControl2 = 0x09 // Receiver control register 2
	RegPowerDown  = 0x0A // Power down control
	RegState      = 0x0F // State register

	// MaxAddress is the largest address the 4-bit address field can carry.
	MaxAddress = 0x0F
)

// Wire framing of a register transaction.
const (
	addressBits = 4
	readBits    = 20
	paddingBits = 4

	rwRead  = 0
	rwWrite = 1
)

// RegisterDescriptions names the documented registers for diagnostics.
var RegisterDescriptions = map[uint8]string{
	RegSynthA:     "SYNTH_A - Reference divider",
	RegSynthB:     "SYNTH_B - N/A counters (frequency)",
	RegSynthC:     "SYNTH_C - Synthesizer control",
	RegSynthD:     "SYNTH_D - Synthesizer control",
	RegVCOSwitch:  "VCO_SW - VCO switch-cap control",
	RegDFC:        "DFC - DFC control",
	RegAudio6M:    "AUDIO_6M - 6M audio demodulator",
	RegAudio6M5:   "AUDIO_6M5 - 6M5 audio demodulator",
	RegRxControl1: "RX_CTRL1 - Receiver control 1",
	RegRxControl2: "RX_CTRL2 - Receiver control 2",
	RegPowerDown:  "PWR_DOWN - Power down control",
	RegState:      "STATE - State register",
}
