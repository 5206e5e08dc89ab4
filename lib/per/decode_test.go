package per

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReadBool(t *testing.T) {
	var tests []BOOL
	load(t, "bool.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("BOOL_VALUE_%v_ALIGNED_%v", tc.Input, tc.Aligned))
		t.Run(name, func(t *testing.T) {
			encodedData, err := hex.DecodeString(tc.Output)
			if err != nil {
				t.Fatalf("Failed to decode hex string: %v", err)
			}
			result, err := NewDecoder(encodedData, tc.Aligned).DecodeBoolean()
			if err != nil {
				t.Fatalf("DecodeBoolean() error = %v", err)
			}
			if result != tc.Input {
				t.Errorf("DecodeBoolean() = %v, expected %v", result, tc.Input)
			}
		})
	}
}

func TestReadInteger(t *testing.T) {
	var tests []INT
	load(t, "integer.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("INTEGER_VALUE_%d_LB_%s_UB_%s_ALIGNED_%v_EXTENSIBLE_%s",
			tc.Input.Value, dref(tc.Input.Lb), dref(tc.Input.Ub), tc.Aligned, dref(tc.Input.Extensible)))
		t.Run(name, func(t *testing.T) {
			encodedData, err := hex.DecodeString(tc.Output)
			if err != nil {
				t.Fatalf("Failed to decode hex string: %v", err)
			}
			r := bounds(tc.Input.Lb, tc.Input.Ub, tc.Input.Extensible)
			result, err := NewDecoder(encodedData, tc.Aligned).DecodeInteger(r)
			if err != nil {
				t.Fatalf("DecodeInteger() error = %v", err)
			}
			if result != tc.Input.Value {
				t.Errorf("DecodeInteger() = %d, expected %d", result, tc.Input.Value)
			}
		})
	}
}

func TestReadLengthDeterminant(t *testing.T) {
	var tests []LEN
	load(t, "length.json", &tests)

	for _, tc := range tests {
		t.Run(fmt.Sprintf("LENGTH_%d", tc.Input), func(t *testing.T) {
			encodedData, err := hex.DecodeString(tc.Output)
			if err != nil {
				t.Fatalf("Failed to decode hex string: %v", err)
			}
			result, err := NewDecoder(encodedData, true).DecodeLengthDeterminant()
			if err != nil {
				t.Fatalf("DecodeLengthDeterminant() error = %v", err)
			}
			if result != tc.Input {
				t.Errorf("DecodeLengthDeterminant() = %d, expected %d", result, tc.Input)
			}
		})
	}

	// 11xxxxxx introduces a fragment
	_, err := NewDecoder([]byte{0xC1}, true).DecodeLengthDeterminant()
	var (
		de *DecodeError
		ne *NotSupportedError
	)
	if !errors.As(err, &de) || !errors.As(err, &ne) {
		t.Errorf("fragmented length should be a not supported DecodeError, got %v", err)
	}
}

func TestReadOctetString(t *testing.T) {
	var tests []OCT_STR
	load(t, "octet_string.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("OCTET_STRING_LENGTH_%d_LB_%s_UB_%s_ALIGNED_%v_EXTENSIBLE_%s",
			tc.Input.Length, dref(tc.Input.Lb), dref(tc.Input.Ub), tc.Aligned, dref(tc.Input.Extensible)))
		t.Run(name, func(t *testing.T) {
			encodedData, err := hex.DecodeString(tc.Output)
			if err != nil {
				t.Fatalf("Failed to decode hex string: %v", err)
			}
			r := bounds(tc.Input.Lb, tc.Input.Ub, tc.Input.Extensible)
			result, err := NewDecoder(encodedData, tc.Aligned).DecodeOctetString(r)
			if err != nil {
				t.Fatalf("DecodeOctetString() error = %v", err)
			}
			if expected := GenOctetString(tc.Input.Length); !bytes.Equal(result, expected) {
				t.Errorf("DecodeOctetString() = %x, expected %x", result, expected)
			}
		})
	}
}

func TestReadOutOfData(t *testing.T) {
	// Unconstrained integer announcing two octets but carrying one
	_, err := NewDecoder([]byte{0x02, 0x01}, true).DecodeInteger(Unbounded(false))
	var (
		de  *DecodeError
		ood *OutOfDataError
	)
	if !errors.As(err, &de) || !errors.As(err, &ood) {
		t.Fatalf("expected an out of data DecodeError, got %v", err)
	}
	if de.Offset != 8 {
		t.Errorf("offset should be 8, got %d", de.Offset)
	}
}

func TestReadConstrainedOutOfRange(t *testing.T) {
	// 0..4 needs 3 bits, 111 is beyond the upper bound
	_, err := NewDecoder([]byte{0xE0}, false).DecodeConstrainedWholeNumber(NewRange(0, 4, false))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("expected DecodeError, got %v", err)
	}
}
