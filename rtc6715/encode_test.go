package rtc6715

import (
	"fmt"
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		mhz  int
		n, a uint32
		reg  Register
	}{
		{5645, 80, 23, 0x2817},
		{5800, 83, 4, 0x2984},
		{5345, 76, 1, 0x2601},
		{5945, 85, 13, 0x2A8D},
		{5865, 84, 5, 84<<7 | 5},
		// Even frequencies floor onto the step 1 MHz below.
		{5866, 84, 5, 84<<7 | 5},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("encode_%d", c.mhz), func(t *testing.T) {
			reg := Encode(c.mhz)
			if reg != c.reg {
				t.Errorf("Encode(%d) == %#x, want %#x", c.mhz, uint32(reg), uint32(c.reg))
			}
			if reg.N() != c.n || reg.A() != c.a {
				t.Errorf("Encode(%d) fields N=%d A=%d, want N=%d A=%d", c.mhz, reg.N(), reg.A(), c.n, c.a)
			}
		})
	}
}

func TestEncodeRange(t *testing.T) {
	for mhz := MinFrequencyLowBand; mhz <= MaxFrequency; mhz++ {
		reg := Encode(mhz)
		if reg.A() >= 32 {
			t.Fatalf("Encode(%d) A=%d, want < 32", mhz, reg.A())
		}
		if uint32(reg) > registerMask {
			t.Fatalf("Encode(%d) == %#x, wider than 20 bits", mhz, uint32(reg))
		}
		// The top 4 bits are never sent; in range they are always zero.
		if uint32(reg)>>payloadBits != 0 {
			t.Fatalf("Encode(%d) == %#x has bits above the payload", mhz, uint32(reg))
		}
		if Encode(mhz) != reg {
			t.Fatalf("Encode(%d) not deterministic", mhz)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for mhz := MinFrequencyLowBand; mhz <= MaxFrequency; mhz++ {
		got := Encode(mhz).Frequency()
		want := mhz
		if (mhz-freqOffset)%2 != 0 {
			want = mhz - 1
		}
		if got != want {
			t.Errorf("Encode(%d).Frequency() == %d, want %d", mhz, got, want)
		}
	}
}

func TestEncodeTotal(t *testing.T) {
	for _, mhz := range []int{0, 1, 478, 479, 480, -1, -5000, math.MaxInt32, math.MinInt32} {
		reg := Encode(mhz)
		if reg.A() >= 32 {
			t.Errorf("Encode(%d) A=%d, want < 32", mhz, reg.A())
		}
		if uint32(reg) > registerMask {
			t.Errorf("Encode(%d) == %#x, wider than 20 bits", mhz, uint32(reg))
		}
	}
	if reg := Encode(479); reg != 0 {
		t.Errorf("Encode(479) == %#x, want 0", uint32(reg))
	}
}

func TestRegisterBits(t *testing.T) {
	reg := Encode(5800)
	if reg.Payload() != 0x2984 {
		t.Fatalf("payload=%#x want 0x2984", reg.Payload())
	}
	if got, want := reg.Bits(), "0010000110010100"; got != want {
		t.Errorf("Bits()=%s want %s", got, want)
	}
}
