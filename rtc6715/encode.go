package rtc6715

import "fmt"

// Synthesizer register B layout.
// Frequency in MHz = (N*32 + A)*2 + 479
const (
	freqOffset   = 479
	aFieldBits   = 7
	aModulus     = 32
	registerBits = 20
	registerMask = 1<<registerBits - 1
	payloadBits  = 16
)

// Register is the 20-bit content of synthesizer register B: the divisor N in the
// upper bits and the swallow counter A in the 7 low bits.
type Register uint32

// Encode converts a frequency in MHz to the synthesizer register B value.
//
// No validation is done. Any int produces a well formed 20-bit value, but only
// frequencies inside the chip's tuning range mean anything to the receiver.
// The division floors; an even frequency lands on the synthesizer step 1 MHz
// below it.
func Encode(mhz int) Register {
	step := floorDiv(mhz-freqOffset, 2)
	n := floorDiv(step, aModulus)
	a := step - n*aModulus
	return Register((uint32(n)<<aFieldBits | uint32(a)) & registerMask)
}

// N returns the divisor field.
func (r Register) N() uint32 {
	return uint32(r) >> aFieldBits
}

// A returns the 7-bit swallow counter field. For encoded values it is always below 32.
func (r Register) A() uint32 {
	return uint32(r) & (1<<aFieldBits - 1)
}

// Payload returns the 16 bits the write transaction puts on the wire.
func (r Register) Payload() uint16 {
	return uint16(r)
}

// Frequency returns the frequency in MHz the register tunes the synthesizer to.
func (r Register) Frequency() int {
	return (int(r.N())*aModulus+int(r.A()))*2 + freqOffset
}

// Bits returns the transmitted payload as it goes on the wire, LSB first.
func (r Register) Bits() string {
	b := make([]byte, payloadBits)
	p := r.Payload()
	for i := range b {
		b[i] = '0' + byte(p>>i&1)
	}
	return string(b)
}

func (r Register) String() string {
	return fmt.Sprintf("0x%05X (N=%d A=%d)", uint32(r), r.N(), r.A())
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
