package per

import (
	"bytes"
	"encoding/asn1"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Value is a dynamically typed ASN.1 value. The Go type depends on the Kind
// of the node it is encoded with:
//
//	Integer                 int64 (any Go integer type is accepted)
//	Boolean                 bool
//	Real                    float64
//	Null                    nil
//	BitString               asn1.BitString
//	OctetString, OpenType   []byte
//	ObjectIdentifier        asn1.ObjectIdentifier (a dotted string is accepted)
//	Enumerated              string, or nil for an unknown addition
//	string kinds            string
//	UTCTime, GeneralizedTime time.Time
//	Sequence, Set           map[string]Value
//	SequenceOf, SetOf       []Value
//	Choice                  Choice
type Value = any

// Choice is the value of a CHOICE type. A decoded unknown extension
// alternative is the zero Choice.
type Choice struct {
	Name  string
	Value Value
}

func toInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toBitString(v Value) (asn1.BitString, bool) {
	switch b := v.(type) {
	case asn1.BitString:
		return b, true
	case *asn1.BitString:
		if b == nil {
			return asn1.BitString{}, false
		}
		return *b, true
	}
	return asn1.BitString{}, false
}

func toObjectIdentifier(v Value) (asn1.ObjectIdentifier, bool) {
	switch oid := v.(type) {
	case asn1.ObjectIdentifier:
		return oid, true
	case []int:
		return asn1.ObjectIdentifier(oid), true
	case string:
		parsed, err := ParseObjectIdentifier(oid)
		return parsed, err == nil
	}
	return nil, false
}

// ParseObjectIdentifier parses the dotted form "1.2.840.113549".
func ParseObjectIdentifier(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		oid[i] = n
	}
	return oid, nil
}

// trimBitString removes trailing zero bits and pads the result back up to
// min bits.
func trimBitString(b asn1.BitString, min int) asn1.BitString {
	n := b.BitLength
	for n > 0 && b.At(n-1) == 0 {
		n--
	}
	if n < min {
		n = min
	}
	out := make([]byte, (n+7)/8)
	copy(out, b.Bytes)
	if n%8 != 0 {
		out[len(out)-1] &= 0xFF << (8 - n%8)
	}
	return asn1.BitString{Bytes: out, BitLength: n}
}

func equalBitStrings(a, b asn1.BitString) bool {
	if a.BitLength != b.BitLength {
		return false
	}
	for i := 0; i < a.BitLength; i++ {
		if a.At(i) != b.At(i) {
			return false
		}
	}
	return true
}

// isDefault reports whether v equals the DEFAULT value def. Trailing zero
// bits of a BIT STRING are only insignificant with named bits.
func isDefault(v, def Value, namedBits bool) bool {
	if a, ok := toInt64(v); ok {
		b, ok := toInt64(def)
		return ok && a == b
	}
	if a, ok := v.([]byte); ok {
		b, ok := def.([]byte)
		return ok && bytes.Equal(a, b)
	}
	if a, ok := toBitString(v); ok {
		b, ok := toBitString(def)
		if !ok {
			return false
		}
		if namedBits {
			return equalBitStrings(trimBitString(a, 0), trimBitString(b, 0))
		}
		return equalBitStrings(a, b)
	}
	return reflect.DeepEqual(v, def)
}
