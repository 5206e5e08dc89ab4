package per

import (
	"encoding/asn1"
	"strconv"
	"strings"

	"github.com/thebagchi/asn1per/lib/bitbuffer"
)

// Decoder represents a PER decoder
type Decoder struct {
	codec   *bitbuffer.Codec
	aligned bool
}

// NewDecoder creates a new PER decoder from encoded data
// aligned: true for APER, false for UPER
func NewDecoder(data []byte, aligned bool) *Decoder {
	return &Decoder{
		codec:   bitbuffer.CreateReader(data),
		aligned: aligned,
	}
}

// NumRead returns the number of bits consumed so far
func (d *Decoder) NumRead() uint64 {
	return d.codec.NumRead()
}

// Remaining returns the number of unread bits
func (d *Decoder) Remaining() uint64 {
	return d.codec.Remaining()
}

func (d *Decoder) read(num int) (uint64, error) {
	if num == 0 {
		return 0, nil
	}
	value, err := d.codec.Read(uint8(num))
	return value, outOfData(err)
}

func (d *Decoder) readBit() (bool, error) {
	bit, err := d.codec.ReadBit()
	return bit, outOfData(err)
}

func (d *Decoder) readBytes(n uint64) ([]byte, error) {
	if n > d.codec.Remaining()/8 {
		return nil, &DecodeError{
			Offset:  int64(d.codec.NumRead()),
			Message: "out of data",
			Err:     &OutOfDataError{Offset: d.codec.NumRead()},
		}
	}
	data, err := d.codec.ReadBytes(int(n))
	return data, outOfData(err)
}

func (d *Decoder) skip(num uint64) error {
	return outOfData(d.codec.Skip(num))
}

// align skips to the next octet boundary in the ALIGNED variant only.
func (d *Decoder) align() error {
	if !d.aligned {
		return nil
	}
	return outOfData(d.codec.Advance())
}

// DecodeNonNegativeBinaryInteger reads a bit-field of width bits.
func (d *Decoder) DecodeNonNegativeBinaryInteger(width int) (uint64, error) {
	return d.read(width)
}

// DecodeConstrainedWholeNumber decodes a constrained whole number in the range r.
// A value beyond the upper bound is reported as a DecodeError.
func (d *Decoder) DecodeConstrainedWholeNumber(r Range) (int64, error) {
	var (
		offset = d.codec.NumRead()
		size   = uint64(r.Max) - uint64(r.Min)
		value  uint64
		err    error
	)
	switch {
	case !d.aligned, size < 0xFF:
		value, err = d.read(r.Bits)
	case size == 0xFF:
		if err = d.align(); err == nil {
			value, err = d.read(8)
		}
	case size < 0x10000:
		if err = d.align(); err == nil {
			value, err = d.read(16)
		}
	default:
		if err = d.align(); err == nil {
			value, err = d.read(r.Bits)
		}
	}
	if err != nil {
		return 0, err
	}
	if value > size {
		return 0, decodeErrorf(offset, "Expected a value between %s, but got offset %d.", r, value)
	}
	return int64(uint64(r.Min) + value), nil
}

// DecodeNormallySmallNonNegativeWholeNumber decodes a normally small non-negative whole number.
func (d *Decoder) DecodeNormallySmallNonNegativeWholeNumber() (uint64, error) {
	large, err := d.readBit()
	if err != nil {
		return 0, err
	}
	if !large {
		return d.read(6)
	}
	offset := d.codec.NumRead()
	octets, err := d.DecodeLengthDeterminant()
	if err != nil {
		return 0, err
	}
	if octets == 0 || octets > 8 {
		return 0, decodeErrorf(offset, "Expected 1 to 8 octets of a normally small number, but got %d.", octets)
	}
	return d.read(int(octets * 8))
}

// DecodeUnconstrainedWholeNumber reads a length determinant followed by a
// two's complement integer.
func (d *Decoder) DecodeUnconstrainedWholeNumber() (int64, error) {
	offset := d.codec.NumRead()
	octets, err := d.DecodeLengthDeterminant()
	if err != nil {
		return 0, err
	}
	if octets == 0 || octets > 8 {
		return 0, decodeErrorf(offset, "Expected an integer of 1 to 8 octets, but got %d.", octets)
	}
	value, err := d.read(int(octets * 8))
	if err != nil {
		return 0, err
	}
	// Sign extend
	shift := 64 - octets*8
	return int64(value<<shift) >> shift, nil
}

// DecodeLengthDeterminant decodes an unconstrained length. The fragmented
// form is rejected.
func (d *Decoder) DecodeLengthDeterminant() (uint64, error) {
	offset := d.codec.NumRead()
	first, err := d.read(8)
	if err != nil {
		return 0, err
	}
	switch {
	case first&0x80 == 0:
		return first, nil
	case first&0x40 == 0:
		second, err := d.read(8)
		if err != nil {
			return 0, err
		}
		return (first&0x3F)<<8 | second, nil
	}
	return 0, &DecodeError{
		Offset:  int64(offset),
		Message: "fragmented length determinant",
		Err:     notSupported("fragmented length determinant"),
	}
}

// DecodeNormallySmallLength decodes the count of an extension addition bitmap.
func (d *Decoder) DecodeNormallySmallLength() (uint64, error) {
	offset := d.codec.NumRead()
	large, err := d.readBit()
	if err != nil {
		return 0, err
	}
	if large {
		return 0, &DecodeError{
			Offset:  int64(offset),
			Message: "normally small length above 64",
			Err:     notSupported("normally small length above %d", MAX_NORMALLY_SMALL_LENGTH),
		}
	}
	value, err := d.read(6)
	if err != nil {
		return 0, err
	}
	return value + 1, nil
}

// 12 Decoding the boolean type

func (d *Decoder) DecodeBoolean() (bool, error) {
	return d.readBit()
}

// 13 Decoding the integer type

func (d *Decoder) DecodeInteger(r Range) (int64, error) {
	if r.Extensible {
		offset := d.codec.NumRead()
		extended, err := d.readBit()
		if err != nil {
			return 0, err
		}
		if extended {
			if d.aligned {
				return 0, &DecodeError{
					Offset:  int64(offset),
					Message: "INTEGER outside the extensible root",
					Err:     notSupported("INTEGER extension in ALIGNED PER"),
				}
			}
			return d.DecodeUnconstrainedWholeNumber()
		}
	}
	if r.Bounded() {
		return d.DecodeConstrainedWholeNumber(r)
	}
	if err := d.align(); err != nil {
		return 0, err
	}
	return d.DecodeUnconstrainedWholeNumber()
}

// 14 Decoding the enumerated type

// DecodeEnumerated returns the index of an enumeration value. Indexes from
// r.Max+1 upwards denote extension additions.
func (d *Decoder) DecodeEnumerated(r Range, extensible bool) (uint64, error) {
	count := uint64(r.Max) + 1
	if extensible {
		extended, err := d.readBit()
		if err != nil {
			return 0, err
		}
		if extended {
			index, err := d.DecodeNormallySmallNonNegativeWholeNumber()
			if err != nil {
				return 0, err
			}
			return count + index, nil
		}
	}
	offset := d.codec.NumRead()
	index, err := d.read(r.Bits)
	if err != nil {
		return 0, err
	}
	if index >= count {
		names := make([]string, 0, count)
		for i := uint64(0); i < count; i++ {
			names = append(names, strconv.FormatUint(i, 10))
		}
		return 0, decodeErrorf(offset, "Expected enumeration index %s, but got %d.", formatOr(names), index)
	}
	return index, nil
}

// 15 Decoding the real type

func (d *Decoder) DecodeReal() (float64, error) {
	contents, err := d.DecodeOpenType()
	if err != nil {
		return 0, err
	}
	value, err := decodeReal(contents)
	if err != nil {
		return 0, &DecodeError{Offset: int64(d.codec.NumRead()), Message: "bad REAL", Err: err}
	}
	return value, nil
}

// 16 Decoding the bitstring type

// ReadBits reads count bits into left aligned octets.
func (d *Decoder) ReadBits(count uint64) ([]byte, error) {
	if count == 0 {
		return []byte{}, nil
	}
	data, err := d.codec.ReadBits(count)
	return data, outOfData(err)
}

func (d *Decoder) DecodeBitString(r Range) (asn1.BitString, error) {
	if r.Extensible {
		offset := d.codec.NumRead()
		extended, err := d.readBit()
		if err != nil {
			return asn1.BitString{}, err
		}
		if extended {
			return asn1.BitString{}, &DecodeError{
				Offset:  int64(offset),
				Message: "BIT STRING size outside the extensible root",
				Err:     notSupported("BIT STRING size extension"),
			}
		}
	}

	n, err := d.decodeSize(r, func() error {
		if r.Min > 16 {
			return d.align()
		}
		return nil
	})
	if err != nil {
		return asn1.BitString{}, err
	}
	data, err := d.ReadBits(n)
	if err != nil {
		return asn1.BitString{}, err
	}
	return asn1.BitString{Bytes: data, BitLength: int(n)}, nil
}

// decodeSize reads the size of a string type: a length determinant when
// unbounded, a constrained whole number followed by alignment when bounded.
// A fixed size is not encoded; fixed applies its alignment instead.
func (d *Decoder) decodeSize(r Range, fixed func() error) (uint64, error) {
	switch {
	case !r.sizeBounded():
		if err := d.align(); err != nil {
			return 0, err
		}
		return d.DecodeLengthDeterminant()
	case !r.fixed():
		n, err := d.DecodeConstrainedWholeNumber(r)
		if err != nil {
			return 0, err
		}
		return uint64(n), d.align()
	}
	return uint64(r.Min), fixed()
}

// 17 Decoding the octetstring type

func (d *Decoder) DecodeOctetString(r Range) ([]byte, error) {
	if r.Extensible {
		extended, err := d.readBit()
		if err != nil {
			return nil, err
		}
		if extended {
			return d.DecodeOpenType()
		}
	}

	n, err := d.decodeSize(r, func() error {
		if r.Max > 2 {
			return d.align()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.readBytes(n)
}

// 18 Decoding the null type

func (d *Decoder) DecodeNull() error {
	return nil
}

// 24 Decoding the object identifier type

func (d *Decoder) DecodeObjectIdentifier() (asn1.ObjectIdentifier, error) {
	offset := d.codec.NumRead()
	contents, err := d.DecodeOpenType()
	if err != nil {
		return nil, err
	}

	// Re-add the DER header and let encoding/asn1 parse the arcs
	header := []byte{0x06}
	switch n := len(contents); {
	case n < 0x80:
		header = append(header, byte(n))
	case n < 0x100:
		header = append(header, 0x81, byte(n))
	default:
		header = append(header, 0x82, byte(n>>8), byte(n))
	}

	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(append(header, contents...), &oid); err != nil {
		return nil, &DecodeError{Offset: int64(offset), Message: "bad OBJECT IDENTIFIER", Err: err}
	}
	return oid, nil
}

// DecodeOpenType reads octets preceded by their length.
func (d *Decoder) DecodeOpenType() ([]byte, error) {
	if err := d.align(); err != nil {
		return nil, err
	}
	n, err := d.DecodeLengthDeterminant()
	if err != nil {
		return nil, err
	}
	return d.readBytes(n)
}

// 30 Decoding the restricted character string types

func (d *Decoder) DecodeKnownMultiplierString(alphabet *Alphabet, r Range) (string, error) {
	view := alphabet.view(d.aligned)

	if r.Extensible {
		offset := d.codec.NumRead()
		extended, err := d.readBit()
		if err != nil {
			return "", err
		}
		if extended {
			return "", &DecodeError{
				Offset:  int64(offset),
				Message: alphabet.Kind.String() + " size outside the extensible root",
				Err:     notSupported("%s size extension", alphabet.Kind),
			}
		}
	}

	var (
		n   uint64
		err error
	)
	switch {
	case !r.sizeBounded():
		if err = d.align(); err != nil {
			return "", err
		}
		n, err = d.DecodeLengthDeterminant()
	case !r.fixed():
		var length int64
		if length, err = d.DecodeConstrainedWholeNumber(r); err == nil {
			n = uint64(length)
			if r.Max > 1 && n > 0 {
				err = d.align()
			}
		}
	default:
		n = uint64(r.Min)
		if r.Max*int64(view.bits) > 16 {
			err = d.align()
		}
	}
	if err != nil {
		return "", err
	}

	if n*uint64(view.bits) > d.codec.Remaining() {
		return "", &DecodeError{
			Offset:  int64(d.codec.NumRead()),
			Message: "out of data",
			Err:     &OutOfDataError{Offset: d.codec.NumRead()},
		}
	}

	var b strings.Builder
	b.Grow(int(n))
	for j := uint64(0); j < n; j++ {
		offset := d.codec.NumRead()
		code, err := d.read(view.bits)
		if err != nil {
			return "", err
		}
		c, ok := view.decode(uint32(code))
		if !ok {
			return "", decodeErrorf(offset, "Expected a character in %s, but got value %d.", alphabet.describe(), code)
		}
		b.WriteRune(c)
	}
	return b.String(), nil
}

// DecodeCharacterString reads a string that has no known multiplier.
func (d *Decoder) DecodeCharacterString(encoding CharEncoding) (string, error) {
	if err := d.align(); err != nil {
		return "", err
	}
	count, err := d.DecodeLengthDeterminant()
	if err != nil {
		return "", err
	}
	offset := d.codec.NumRead()
	data, err := d.readBytes(count * octetsPerCharacter(encoding))
	if err != nil {
		return "", err
	}
	value, err := decodeCharacters(data, encoding)
	if err != nil {
		return "", &DecodeError{Offset: int64(offset), Message: "bad character string", Err: err}
	}
	return value, nil
}
