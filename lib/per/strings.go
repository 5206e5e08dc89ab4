package per

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode/utf32"
)

// 30.5 non-known-multiplier character strings are written as octets. The
// octet encoding depends on the type: UTF-8, ISO 8859-1 for the ISO 2022
// based types, UTF-32BE for UniversalString.

var universal = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)

func octetsPerCharacter(encoding CharEncoding) uint64 {
	if encoding == EncodingUTF32 {
		return 4
	}
	return 1
}

// encodeCharacters returns the octets of value and the count written in the
// length determinant.
func encodeCharacters(value string, encoding CharEncoding) ([]byte, uint64, error) {
	switch encoding {
	case EncodingUTF8:
		if !utf8.ValidString(value) {
			return nil, 0, encodeErrorf("Expected a valid UTF-8 string, but got %q.", value)
		}
		return []byte(value), uint64(len(value)), nil
	case EncodingLatin1:
		data, err := charmap.ISO8859_1.NewEncoder().String(value)
		if err != nil {
			return nil, 0, &EncodeError{Message: fmt.Sprintf("Expected an ISO 8859-1 string, but got %q.", value), Err: err}
		}
		return []byte(data), uint64(len(data)), nil
	case EncodingUTF32:
		if !utf8.ValidString(value) {
			return nil, 0, encodeErrorf("Expected a valid UTF-8 string, but got %q.", value)
		}
		data, err := universal.NewEncoder().String(value)
		if err != nil {
			return nil, 0, &EncodeError{Message: "UniversalString conversion failed", Err: err}
		}
		return []byte(data), uint64(len(data)) / 4, nil
	}
	return nil, 0, encodeErrorf("unknown character encoding %d", encoding)
}

func decodeCharacters(data []byte, encoding CharEncoding) (string, error) {
	switch encoding {
	case EncodingUTF8:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid UTF-8 octets % x", data)
		}
		return string(data), nil
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().String(string(data))
	case EncodingUTF32:
		if len(data)%4 != 0 {
			return "", fmt.Errorf("UniversalString of %d octets", len(data))
		}
		for i := 0; i < len(data); i += 4 {
			cp := binary.BigEndian.Uint32(data[i:])
			if cp > unicode.MaxRune || (cp >= 0xD800 && cp <= 0xDFFF) {
				return "", fmt.Errorf("invalid UniversalString code point U+%X", cp)
			}
		}
		return universal.NewDecoder().String(string(data))
	}
	return "", fmt.Errorf("unknown character encoding %d", encoding)
}

// UTCTime and GeneralizedTime are restricted to the UTC forms
// YYMMDDHHMMSSZ and YYYYMMDDHHMMSS[.f]Z, written as VisibleString.
const (
	utcTimeLayout         = "060102150405Z"
	generalizedTimeLayout = "20060102150405.999999999Z"
	generalizedTimeParse  = "20060102150405Z"
)

var timeAlphabet = MustAlphabet(VisibleString, "")

func formatTime(kind Kind, t time.Time) string {
	t = t.UTC()
	if kind == KindUTCTime {
		return t.Format(utcTimeLayout)
	}
	return t.Format(generalizedTimeLayout)
}

func parseTime(kind Kind, s string) (time.Time, error) {
	if kind == KindUTCTime {
		return time.Parse(utcTimeLayout, s)
	}
	return time.Parse(generalizedTimeParse, s)
}

func (e *Encoder) encodeTime(kind Kind, value Value) error {
	t, ok := value.(time.Time)
	if !ok {
		return encodeErrorf("Expected a time.Time for %s, but got %T.", kind, value)
	}
	if kind == KindUTCTime && (t.UTC().Year() < 1969 || t.UTC().Year() > 2068) {
		return encodeErrorf("Expected a UTCTime year between 1969 and 2068, but got %d.", t.UTC().Year())
	}
	return e.EncodeKnownMultiplierString(formatTime(kind, t), timeAlphabet, Range{})
}

func (d *Decoder) decodeTime(kind Kind) (time.Time, error) {
	offset := d.NumRead()
	s, err := d.DecodeKnownMultiplierString(timeAlphabet, Range{})
	if err != nil {
		return time.Time{}, err
	}
	t, err := parseTime(kind, s)
	if err != nil {
		return time.Time{}, &DecodeError{Offset: int64(offset), Message: fmt.Sprintf("bad %s %q", kind, s), Err: err}
	}
	return t, nil
}
