package per

import (
	"encoding/asn1"
	"math/bits"
	"unicode/utf8"

	"github.com/thebagchi/asn1per/lib/bitbuffer"
)

// Encoder represents a PER encoder for bit-level encoding
type Encoder struct {
	codec   *bitbuffer.Codec
	aligned bool
}

// NewEncoder creates a new PER encoder
// aligned: true for APER (Aligned PER), false for UPER (Unaligned PER)
func NewEncoder(aligned bool) *Encoder {
	return &Encoder{
		codec:   bitbuffer.CreateWriter(),
		aligned: aligned,
	}
}

// Bytes returns the encoded bytes, the last octet padded with zero bits
func (e *Encoder) Bytes() []byte {
	return e.codec.Bytes()
}

// NumBits returns the number of bits written so far
func (e *Encoder) NumBits() uint64 {
	return e.codec.NumWritten()
}

// align pads to the next octet boundary in the ALIGNED variant only.
func (e *Encoder) align() error {
	if !e.aligned {
		return nil
	}
	return e.codec.Align()
}

// alignAlways pads to the next octet boundary in both variants. Used to
// complete open type contents.
func (e *Encoder) alignAlways() error {
	return e.codec.Align()
}

// 11.3 Encoding as a non-negative-binary-integer
// |- 11.3.6 A minimum octet non-negative-binary-integer encoding of the whole number (which
// |  |  does not predetermine the number of octets to be used for the encoding) has a field
// |  |  which is a multiple of eight bits and also satisfies the condition that the leading
// |  |  eight bits of the field shall not all be zero unless the field is precisely eight
// |  |  bits long.

func BitsNonNegativeBinaryInteger(value uint64) int {
	if value == 0 {
		return 1
	}
	return bits.Len64(value)
}

func OctetsNonNegativeBinaryIntegerLength(value uint64) int {
	bits := BitsNonNegativeBinaryInteger(value)
	return (bits + 7) >> 3
}

// EncodeNonNegativeBinaryInteger writes value into a bit-field of exactly
// width bits. A zero width writes nothing.
func (e *Encoder) EncodeNonNegativeBinaryInteger(value uint64, width int) error {
	if width == 0 {
		return nil
	}
	return e.codec.Write(uint8(width), value)
}

// 11.4 Encoding as a 2's-complement-binary-integer
// |- 11.4.6 A minimum octet 2's-complement-binary-integer encoding of the whole number has a
// |  |  field-width that is a multiple of eight bits and also satisfies the condition that the
// |  |  leading nine bits of the field shall not all be zero and shall not all be ones.

func BitsTwosComplementBinaryInteger(value int64) int {
	if value == 0 {
		return 1
	}
	if value > 0 {
		return bits.Len64(uint64(value)) + 1
	}
	// Leading nine bits shall not all be ones
	return bits.Len64(uint64(^value)) + 1
}

func OctetsTwosComplementBinaryInteger(value int64) int {
	bits := BitsTwosComplementBinaryInteger(value)
	return (bits + 7) >> 3
}

// 11.5 Encoding of a constrained whole number
// |- 11.5.4 If "range" has the value 1, then the result of the encoding shall be an empty
// |  |  bit-field (no bits).
// |- 11.5.6 In the case of the UNALIGNED variant the value ("n" - "lb") shall be encoded as a
// |  |  non-negative-binary-integer in a bit-field as specified in 11.3 with the minimum
// |  |  number of bits necessary to represent the range.
// |- 11.5.7 In the case of the ALIGNED variant the encoding depends on whether:
// |  |  a) "range" is less than or equal to 255 (the bit-field case);
// |  |  b) "range" is exactly 256 (the one-octet case);
// |  |  c) "range" is greater than 256 and less than or equal to 64K (the two-octet case);
// |  |  d) "range" is greater than 64K (the indefinite length case).

// EncodeConstrainedWholeNumber writes n, which must lie inside r, relative to
// the lower bound of r.
func (e *Encoder) EncodeConstrainedWholeNumber(n int64, r Range) error {
	var (
		value = uint64(n) - uint64(r.Min)
		size  = uint64(r.Max) - uint64(r.Min) // "range" - 1
	)
	if !e.aligned {
		return e.EncodeNonNegativeBinaryInteger(value, r.Bits)
	}
	switch {
	case size < 0xFF:
		// 11.5.7.1: bit-field case, no alignment
		return e.EncodeNonNegativeBinaryInteger(value, r.Bits)
	case size == 0xFF:
		// 11.5.7.2: one-octet case
		if err := e.codec.Align(); err != nil {
			return err
		}
		return e.codec.Write(8, value)
	case size < 0x10000:
		// 11.5.7.3: two-octet case
		if err := e.codec.Align(); err != nil {
			return err
		}
		return e.codec.Write(16, value)
	default:
		if err := e.codec.Align(); err != nil {
			return err
		}
		return e.EncodeNonNegativeBinaryInteger(value, r.Bits)
	}
}

// 11.6 Encoding of a normally small non-negative whole number
// |- 11.6.1 If the non-negative whole number, "n", is less than or equal to 63, then a
// |  |  single-bit bit-field shall be appended to the field-list with the bit set to 0, and
// |  |  "n" shall be encoded as a non-negative-binary-integer into a 6-bit bit-field.
// |- 11.6.2 If "n" is greater than or equal to 64, a single-bit bit-field with the bit set to 1
// |  |  shall be appended to the field-list.

func (e *Encoder) EncodeNormallySmallNonNegativeWholeNumber(n uint64) error {
	if n <= MAX_NORMALLY_SMALL {
		// 11.6.1: bit set to 0, followed by 6-bit encoding of n
		return e.codec.Write(7, n)
	}
	if err := e.codec.Write(1, 1); err != nil {
		return err
	}
	octets := OctetsNonNegativeBinaryIntegerLength(n)
	if err := e.EncodeLengthDeterminant(uint64(octets)); err != nil {
		return err
	}
	return e.codec.Write(uint8(octets*8), n)
}

// 11.8 Encoding of an unconstrained whole number
// |- 11.8.3 (The indefinite length case.) The value "n" shall be encoded as a
// |  |  2's-complement-binary-integer in a bit-field (octet-aligned in the ALIGNED variant)
// |  |  with the minimum number of octets as specified in 11.4.

// EncodeUnconstrainedWholeNumber writes the length determinant and the
// minimum octet two's complement encoding of n. Callers align first.
func (e *Encoder) EncodeUnconstrainedWholeNumber(n int64) error {
	octets := OctetsTwosComplementBinaryInteger(n)
	if err := e.EncodeLengthDeterminant(uint64(octets)); err != nil {
		return err
	}
	return e.codec.Write(uint8(octets*8), uint64(n))
}

// 11.9 General rules for encoding a length determinant
// |  a) ("n" less than 128) a single octet containing "n" with bit 8 set to zero;
// |  b) ("n" less than 16K) two octets containing "n" with bit 8 of the first octet set to 1
// |     and bit 7 set to zero;
// |  c) (large "n") a single octet containing a count "m" with bit 8 set to 1 and bit 7 set
// |     to 1.

// EncodeLengthDeterminant writes an unconstrained length. The fragmented
// form (c) is not implemented.
func (e *Encoder) EncodeLengthDeterminant(n uint64) error {
	if n <= 127 {
		return e.codec.Write(8, n)
	}
	if n < FRAGMENT_SIZE {
		return e.codec.Write(16, (1<<15)|n)
	}
	return notSupported("length determinant of %d (fragmentation)", n)
}

// 11.9.3.4 normally small length, used for extension addition bitmaps.
func (e *Encoder) EncodeNormallySmallLength(n uint64) error {
	if n == 0 {
		return encodeErrorf("normally small length must be positive")
	}
	if n > MAX_NORMALLY_SMALL_LENGTH {
		return notSupported("normally small length of %d", n)
	}
	return e.codec.Write(7, n-1)
}

// 12 Encoding the boolean type

func (e *Encoder) EncodeBoolean(value bool) error {
	return e.codec.WriteBit(value)
}

// 13 Encoding the integer type

// EncodeInteger writes value constrained by r. Ranges with a missing bound
// use the unconstrained encoding.
//
// In the ALIGNED variant an extensible range only writes the extension bit
// for root values; a value outside the root is rejected with a
// NotSupportedError.
func (e *Encoder) EncodeInteger(value int64, r Range) error {
	if r.Extensible {
		extended := !r.Contains(value)
		if extended && e.aligned {
			return notSupported("INTEGER %d outside the extensible root %s in ALIGNED PER", value, r)
		}
		if err := e.codec.WriteBit(extended); err != nil {
			return err
		}
		if extended {
			return e.EncodeUnconstrainedWholeNumber(value)
		}
	} else if !r.Contains(value) {
		return encodeErrorf("Expected an integer between %s, but got %d.", r, value)
	}

	if r.Bounded() {
		return e.EncodeConstrainedWholeNumber(value, r)
	}
	if err := e.align(); err != nil {
		return err
	}
	return e.EncodeUnconstrainedWholeNumber(value)
}

// 14 Encoding the enumerated type

// EncodeEnumerated writes the index of an enumeration value. Indexes from
// r.Max+1 upwards denote extension additions.
func (e *Encoder) EncodeEnumerated(index uint64, r Range, extensible bool) error {
	count := uint64(r.Max) + 1
	if extensible {
		if index >= count {
			if err := e.codec.Write(1, 1); err != nil {
				return err
			}
			return e.EncodeNormallySmallNonNegativeWholeNumber(index - count)
		}
		if err := e.codec.Write(1, 0); err != nil {
			return err
		}
	}
	return e.EncodeNonNegativeBinaryInteger(index, r.Bits)
}

// 15 Encoding the real type

// EncodeReal writes the X.690 contents octets of value preceded by a length
// determinant.
func (e *Encoder) EncodeReal(value float64) error {
	contents, err := encodeReal(value)
	if err != nil {
		return err
	}
	if err := e.align(); err != nil {
		return err
	}
	if err := e.EncodeLengthDeterminant(uint64(len(contents))); err != nil {
		return err
	}
	return e.codec.WriteBytes(contents)
}

// 16 Encoding the bitstring type

func (e *Encoder) WriteBits(data []byte, count uint64) error {
	if count == 0 {
		return nil
	}
	return e.codec.WriteBits(data, count)
}

// EncodeBitString writes the first BitLength bits of value constrained by
// the size range r.
func (e *Encoder) EncodeBitString(value asn1.BitString, r Range) error {
	if value.BitLength < 0 || len(value.Bytes)*8 < value.BitLength {
		return encodeErrorf("Expected at least %d bits of data, but got %d.", value.BitLength, len(value.Bytes)*8)
	}
	n := uint64(value.BitLength)

	// 16.6 If the type is extensible, add a bit indicating if the length is in
	// the extension root
	if r.Extensible {
		if !r.Contains(int64(n)) {
			return notSupported("BIT STRING of %d bits outside the extensible size %s", n, r)
		}
		if err := e.codec.Write(1, 0); err != nil {
			return err
		}
	} else if !r.Contains(int64(n)) {
		return sizeError(n, r, "bits")
	}

	switch {
	case !r.sizeBounded():
		if err := e.align(); err != nil {
			return err
		}
		if err := e.EncodeLengthDeterminant(n); err != nil {
			return err
		}
	case !r.fixed():
		if err := e.EncodeConstrainedWholeNumber(int64(n), r); err != nil {
			return err
		}
		if err := e.align(); err != nil {
			return err
		}
	case r.Min > 16:
		// 16.10 fixed length > 16 bits, octet-aligned
		if err := e.align(); err != nil {
			return err
		}
	}
	return e.WriteBits(value.Bytes, n)
}

// 17 Encoding the octetstring type

func (e *Encoder) EncodeOctetString(value []byte, r Range) error {
	n := uint64(len(value))

	// 17.3 If extensible, add a bit indicating if the length is in the extension root
	if r.Extensible {
		if !r.Contains(int64(n)) {
			if err := e.codec.Write(1, 1); err != nil {
				return err
			}
			if err := e.align(); err != nil {
				return err
			}
			if err := e.EncodeLengthDeterminant(n); err != nil {
				return err
			}
			return e.codec.WriteBytes(value)
		}
		if err := e.codec.Write(1, 0); err != nil {
			return err
		}
	} else if !r.Contains(int64(n)) {
		return sizeError(n, r, "bytes")
	}

	switch {
	case !r.sizeBounded():
		// 17.8 length determinant
		if err := e.align(); err != nil {
			return err
		}
		if err := e.EncodeLengthDeterminant(n); err != nil {
			return err
		}
	case !r.fixed():
		if err := e.EncodeConstrainedWholeNumber(int64(n), r); err != nil {
			return err
		}
		if err := e.align(); err != nil {
			return err
		}
	case r.Max > 2:
		// 17.7 fixed length > 2 octets, octet-aligned
		if err := e.align(); err != nil {
			return err
		}
	}
	return e.codec.WriteBytes(value)
}

// 18 Encoding the null type

func (e *Encoder) EncodeNull() error {
	return nil
}

// 24 Encoding the object identifier type

// EncodeObjectIdentifier encodes an OBJECT IDENTIFIER value per section 24 of ITU-T X.691.
// The OID is encoded as an octet string containing the DER value octets.
func (e *Encoder) EncodeObjectIdentifier(oid asn1.ObjectIdentifier) error {
	data, err := asn1.Marshal(oid)
	if err != nil {
		return &EncodeError{Message: "Invalid OBJECT IDENTIFIER " + oid.String(), Err: err}
	}

	// Extract value octets by parsing the DER structure
	if data[1]&0x80 == 0 {
		data = data[2:]
	} else {
		data = data[2+int(data[1]&0x7f):]
	}
	return e.EncodeOpenType(data)
}

// EncodeOpenType writes already encoded contents preceded by their length in
// octets.
func (e *Encoder) EncodeOpenType(data []byte) error {
	if err := e.align(); err != nil {
		return err
	}
	if err := e.EncodeLengthDeterminant(uint64(len(data))); err != nil {
		return err
	}
	return e.codec.WriteBytes(data)
}

// appendOpenType completes sub and appends its octets as an open type.
func (e *Encoder) appendOpenType(sub *Encoder) error {
	if err := sub.alignAlways(); err != nil {
		return err
	}
	data := sub.Bytes()
	if err := e.EncodeLengthDeterminant(uint64(len(data))); err != nil {
		return err
	}
	return e.codec.WriteBytes(data)
}

// 30 Encoding the restricted character string types

// EncodeKnownMultiplierString packs value character by character with the
// width of the alphabet for this variant.
func (e *Encoder) EncodeKnownMultiplierString(value string, alphabet *Alphabet, r Range) error {
	if !utf8.ValidString(value) {
		return encodeErrorf("Expected a valid UTF-8 string, but got %q.", value)
	}
	n := uint64(utf8.RuneCountInString(value))
	view := alphabet.view(e.aligned)

	if r.Extensible {
		if !r.Contains(int64(n)) {
			return notSupported("%s of %d characters outside the extensible size %s", alphabet.Kind, n, r)
		}
		if err := e.codec.Write(1, 0); err != nil {
			return err
		}
	} else if !r.Contains(int64(n)) {
		return sizeError(n, r, "characters")
	}

	switch {
	case !r.sizeBounded():
		if err := e.align(); err != nil {
			return err
		}
		if err := e.EncodeLengthDeterminant(n); err != nil {
			return err
		}
	case !r.fixed():
		if err := e.EncodeConstrainedWholeNumber(int64(n), r); err != nil {
			return err
		}
		if r.Max > 1 && n > 0 {
			if err := e.align(); err != nil {
				return err
			}
		}
	case r.Max*int64(view.bits) > 16:
		if err := e.align(); err != nil {
			return err
		}
	}

	for _, c := range value {
		code, ok := view.encode(c)
		if !ok {
			return encodeErrorf("Expected a character in %s, but got %q (0x%02x).", alphabet.describe(), c, c)
		}
		if err := e.EncodeNonNegativeBinaryInteger(uint64(code), view.bits); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCharacterString writes a string that has no known multiplier as
// octets preceded by a length determinant. The length counts octets for
// UTF8String and characters otherwise.
func (e *Encoder) EncodeCharacterString(value string, encoding CharEncoding) error {
	data, count, err := encodeCharacters(value, encoding)
	if err != nil {
		return err
	}
	if err := e.align(); err != nil {
		return err
	}
	if err := e.EncodeLengthDeterminant(count); err != nil {
		return err
	}
	return e.codec.WriteBytes(data)
}

func sizeError(n uint64, r Range, unit string) error {
	switch {
	case r.fixed():
		return encodeErrorf("Expected %d %s, but got %d.", r.Min, unit, n)
	case r.Bounded():
		return encodeErrorf("Expected between %d and %d %s, but got %d.", r.Min, r.Max, unit, n)
	case r.HasMin:
		return encodeErrorf("Expected at least %d %s, but got %d.", r.Min, unit, n)
	default:
		return encodeErrorf("Expected at most %d %s, but got %d.", r.Max, unit, n)
	}
}
