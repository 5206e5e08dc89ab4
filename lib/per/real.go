package per

import (
	"errors"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// REAL values are written as the contents octets of their X.690 (BER)
// encoding.
//
//	0x40        PLUS-INFINITY
//	0x41        MINUS-INFINITY
//	0x42        NOT-A-NUMBER
//	0x43        minus zero
//	(empty)     plus zero
//	0x80 | S    binary, base 2, one exponent octet
//	0x81 | S    binary, base 2, two exponent octets
var errInvalidReal = errors.New("invalid REAL contents")

// MakeReal extracts mantissa and exponent from a float64 value
// Returns:
//   - mantissa: normalized mantissa as int64 (odd for non-zero values)
//   - exponent: unbiased exponent as int
//   - base: encoding base (2 for binary)
func MakeReal(value float64) (mantissa int64, exponent int, base int) {
	if value == 0.0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, 0, 2
	}

	var (
		raw  = math.Float64bits(value)
		sign = (raw >> 63) & 1
		bexp = int((raw >> 52) & 0x7FF)
		frac = raw & 0xFFFFFFFFFFFFF // 52-bit fraction
	)
	if bexp == 0 {
		// Subnormal: 0.fraction * 2^-1022
		mantissa = int64(frac)
		exponent = -1022 - 52
	} else {
		// Normal: 1.fraction * 2^(bexp-1023)
		mantissa = int64((1 << 52) | frac)
		exponent = bexp - 1023 - 52
	}

	// Odd mantissa
	shift := bits.TrailingZeros64(uint64(mantissa))
	mantissa >>= shift
	exponent += shift

	if sign == 1 {
		mantissa = -mantissa
	}
	return mantissa, exponent, 2
}

// MakeFloat64 returns mantissa * base^exponent for base 2, 8 or 16.
func MakeFloat64(mantissa int64, exponent int, base int) float64 {
	switch base {
	case 8:
		exponent *= 3
	case 16:
		exponent *= 4
	}
	return math.Ldexp(float64(mantissa), exponent)
}

func encodeReal(value float64) ([]byte, error) {
	switch {
	case math.IsInf(value, 1):
		return []byte{0x40}, nil
	case math.IsInf(value, -1):
		return []byte{0x41}, nil
	case math.IsNaN(value):
		return []byte{0x42}, nil
	case value == 0 && math.Signbit(value):
		return []byte{0x43}, nil
	case value == 0:
		return []byte{}, nil
	}

	mantissa, exponent, _ := MakeReal(value)
	control := byte(0x80)
	if mantissa < 0 {
		control |= 0x40
		mantissa = -mantissa
	}

	var out []byte
	switch {
	case exponent >= math.MinInt8 && exponent <= math.MaxInt8:
		out = append(out, control, byte(int8(exponent)))
	case exponent >= math.MinInt16 && exponent <= math.MaxInt16:
		out = append(out, control|0x01, byte(exponent>>8), byte(exponent))
	default:
		return nil, notSupported("REAL exponent %d", exponent)
	}

	// Mantissa in bitlen/8 + 1 octets
	octets := bits.Len64(uint64(mantissa))/8 + 1
	for i := octets - 1; i >= 0; i-- {
		out = append(out, byte(uint64(mantissa)>>(8*i)))
	}
	return out, nil
}

func decodeReal(contents []byte) (float64, error) {
	if len(contents) == 0 {
		return 0.0, nil
	}

	first := contents[0]
	switch {
	case first&0x80 != 0:
		return decodeBinaryReal(contents)
	case first&0x40 != 0:
		// 8.5.9 special real values
		if len(contents) != 1 {
			return 0, errInvalidReal
		}
		switch first {
		case 0x40:
			return math.Inf(1), nil
		case 0x41:
			return math.Inf(-1), nil
		case 0x42:
			return math.NaN(), nil
		case 0x43:
			return math.Copysign(0, -1), nil
		}
		return 0, errInvalidReal
	default:
		// 8.5.8 decimal encoding, NR1, NR2 or NR3
		text := strings.TrimSpace(strings.ReplaceAll(string(contents[1:]), ",", "."))
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, errInvalidReal
		}
		return value, nil
	}
}

func decodeBinaryReal(contents []byte) (float64, error) {
	var (
		first  = contents[0]
		length = len(contents)
		offset = 1
		base   int
		raw    uint64
		num    int
	)

	// Bits 5-4: base
	switch (first >> 4) & 0x03 {
	case 0:
		base = 2
	case 1:
		base = 8
	case 2:
		base = 16
	default:
		return 0, errInvalidReal
	}

	// Bits 1-0: exponent format
	switch first & 0x03 {
	case 0, 1, 2:
		num = int(first&0x03) + 1
	case 3:
		if offset >= length {
			return 0, errInvalidReal
		}
		num = int(contents[offset])
		offset++
	}
	if num == 0 || num > 4 || offset+num > length {
		return 0, errInvalidReal
	}
	for _, b := range contents[offset : offset+num] {
		raw = raw<<8 | uint64(b)
	}
	exponent := int(raw)
	if raw&(1<<(uint(num*8)-1)) != 0 {
		exponent -= 1 << uint(num*8)
	}
	offset += num

	mantissaOctets := contents[offset:]
	if len(mantissaOctets) > 8 {
		return 0, notSupported("REAL mantissa of %d octets", len(mantissaOctets))
	}
	var mantissa uint64
	for _, b := range mantissaOctets {
		mantissa = mantissa<<8 | uint64(b)
	}
	if mantissa > math.MaxInt64 {
		return 0, notSupported("REAL mantissa larger than 63 bits")
	}

	// Bits 3-2: scale factor F
	scale := int((first >> 2) & 0x03)
	value := MakeFloat64(int64(mantissa), exponent, base)
	value = math.Ldexp(value, scale)
	if first&0x40 != 0 {
		value = -value
	}
	return value, nil
}
