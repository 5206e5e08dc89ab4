package per

import (
	"encoding/hex"
	"math"
	"testing"
)

// TestConstrainedWholeNumberWidth checks the field width of a constrained
// whole number around the one-octet and two-octet boundaries. A leading bit
// is written first so the ALIGNED padding is visible in the bit count.
func TestConstrainedWholeNumberWidth(t *testing.T) {
	test := func(r Range, aligned, unaligned uint64, description string) {
		t.Run(description, func(t *testing.T) {
			for _, variant := range []struct {
				aligned bool
				want    uint64
			}{{true, aligned}, {false, unaligned}} {
				e := NewEncoder(variant.aligned)
				if err := e.EncodeBoolean(true); err != nil {
					t.Fatal(err)
				}
				if err := e.EncodeConstrainedWholeNumber(r.Max, r); err != nil {
					t.Fatalf("EncodeConstrainedWholeNumber(%d, %s) error = %v", r.Max, r, err)
				}
				if e.NumBits() != variant.want {
					t.Errorf("aligned=%v: %s wrote %d bits, want %d", variant.aligned, r, e.NumBits(), variant.want)
				}
			}
		})
	}
	test(NewRange(5, 5, false), 1, 1, "single value is empty")
	test(NewRange(0, 1, false), 2, 2, "two values")
	test(NewRange(0, 254, false), 9, 9, "255 values stay a bit-field")
	test(NewRange(0, 255, false), 16, 9, "256 values take an aligned octet")
	test(NewRange(-128, 127, false), 16, 9, "256 values below zero")
	test(NewRange(0, 256, false), 24, 10, "257 values take two aligned octets")
	test(NewRange(0, 65535, false), 24, 17, "64K values take two aligned octets")
	test(NewRange(0, 65536, false), 25, 18, "above 64K values")
}

// TestUnconstrainedWholeNumber checks the length octet and the minimum
// two's complement octets written for an unconstrained whole number.
func TestUnconstrainedWholeNumber(t *testing.T) {
	test := func(value int64, expected, description string) {
		t.Run(description, func(t *testing.T) {
			e := NewEncoder(true)
			if err := e.EncodeUnconstrainedWholeNumber(value); err != nil {
				t.Fatal(err)
			}
			if got := hex.EncodeToString(e.Bytes()); got != expected {
				t.Errorf("EncodeUnconstrainedWholeNumber(%d) = %s, want %s", value, got, expected)
			}
			if got := OctetsTwosComplementBinaryInteger(value); got != len(e.Bytes())-1 {
				t.Errorf("OctetsTwosComplementBinaryInteger(%d) = %d, wrote %d octets", value, got, len(e.Bytes())-1)
			}
		})
	}
	test(0, "0100", "zero")
	test(127, "017f", "largest one octet positive")
	test(128, "020080", "sign bit needs a second octet")
	test(-1, "01ff", "minus one")
	test(-128, "0180", "smallest one octet negative")
	test(-129, "02ff7f", "two octet negative")
	test(65535, "0300ffff", "two octet magnitude with sign octet")
	test(math.MaxInt64, "087fffffffffffffff", "max int64")
	test(math.MinInt64, "088000000000000000", "min int64")
}

func TestNonNegativeOctets(t *testing.T) {
	test := func(value uint64, expected int, description string) {
		t.Run(description, func(t *testing.T) {
			if got := OctetsNonNegativeBinaryIntegerLength(value); got != expected {
				t.Errorf("OctetsNonNegativeBinaryIntegerLength(%d) = %d, want %d", value, got, expected)
			}
		})
	}
	test(0, 1, "zero still takes an octet")
	test(0xFF, 1, "one octet")
	test(0x100, 2, "two octets")
	test(0x10000, 3, "three octets")
	test(math.MaxUint64, 8, "max uint64")
}

// TestNormallySmall covers both forms of a normally small non-negative
// whole number and the length determinant written by the long form.
func TestNormallySmall(t *testing.T) {
	test := func(value uint64, expected, description string) {
		t.Run(description, func(t *testing.T) {
			e := NewEncoder(false)
			if err := e.EncodeNormallySmallNonNegativeWholeNumber(value); err != nil {
				t.Fatal(err)
			}
			if got := hex.EncodeToString(e.Bytes()); got != expected {
				t.Errorf("EncodeNormallySmallNonNegativeWholeNumber(%d) = %s, want %s", value, got, expected)
			}
		})
	}
	test(0, "00", "zero")
	test(63, "7e", "largest six bit form")
	test(64, "80a000", "length prefixed form")
	test(256, "81008000", "two octet long form")
}
