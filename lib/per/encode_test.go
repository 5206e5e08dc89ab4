package per

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// dref dereferences a pointer and returns its string representation.
// If the pointer is nil, returns "NIL".
func dref[T any](ptr *T) string {
	if ptr == nil {
		return "NIL"
	}
	return fmt.Sprintf("%v", *ptr)
}

// bounds builds a Range from the nullable bounds of a test case
func bounds(lb, ub *int64, extensible *bool) Range {
	ext := extensible != nil && *extensible
	switch {
	case lb != nil && ub != nil:
		return NewRange(*lb, *ub, ext)
	case lb != nil:
		return LowerBounded(*lb, ext)
	case ub != nil:
		return UpperBounded(*ub, ext)
	}
	return Unbounded(ext)
}

// load reads a JSON test vector file from the testing directory
func load(t *testing.T, name string, v any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testing", name))
	if err != nil {
		t.Fatalf("Failed to read test data file: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to parse test data: %v", err)
	}
}

// BOOL represents a single test case from the JSON file
type BOOL struct {
	Input   bool   `json:"input"`
	Aligned bool   `json:"aligned"`
	Output  string `json:"output"`
}

func TestWriteBool(t *testing.T) {
	var tests []BOOL
	load(t, "bool.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("BOOL_VALUE_%v_ALIGNED_%v", tc.Input, tc.Aligned))
		t.Run(name, func(t *testing.T) {
			encoder := NewEncoder(tc.Aligned)
			if err := encoder.EncodeBoolean(tc.Input); err != nil {
				t.Fatalf("EncodeBoolean() error = %v", err)
			}
			if result := hex.EncodeToString(encoder.Bytes()); result != tc.Output {
				t.Errorf("EncodeBoolean() = %s, expected %s", result, tc.Output)
			}
		})
	}
}

// INT represents a single integer test case from the JSON file
type INT struct {
	Input struct {
		Value      int64  `json:"value"`
		Lb         *int64 `json:"lb"`
		Ub         *int64 `json:"ub"`
		Extensible *bool  `json:"extensible"`
	} `json:"input"`
	Output  string `json:"output"`
	Aligned bool   `json:"aligned"`
}

func TestWriteInteger(t *testing.T) {
	var tests []INT
	load(t, "integer.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("INTEGER_VALUE_%d_LB_%s_UB_%s_ALIGNED_%v_EXTENSIBLE_%s",
			tc.Input.Value, dref(tc.Input.Lb), dref(tc.Input.Ub), tc.Aligned, dref(tc.Input.Extensible)))
		t.Run(name, func(t *testing.T) {
			encoder := NewEncoder(tc.Aligned)
			r := bounds(tc.Input.Lb, tc.Input.Ub, tc.Input.Extensible)
			if err := encoder.EncodeInteger(tc.Input.Value, r); err != nil {
				t.Fatalf("EncodeInteger() error = %v", err)
			}
			if result := hex.EncodeToString(encoder.Bytes()); result != tc.Output {
				t.Errorf("EncodeInteger() = %s, expected %s", result, tc.Output)
			}
		})
	}
}

func TestWriteIntegerErrors(t *testing.T) {
	var ee *EncodeError
	if err := NewEncoder(false).EncodeInteger(8, NewRange(0, 7, false)); !errors.As(err, &ee) {
		t.Errorf("EncodeInteger(8, 0..7) should fail with EncodeError, got %v", err)
	}
	var ne *NotSupportedError
	if err := NewEncoder(true).EncodeInteger(8, NewRange(0, 7, true)); !errors.As(err, &ne) {
		t.Errorf("EncodeInteger(8, 0..7,...) in ALIGNED PER should be not supported, got %v", err)
	}
}

// LEN represents a single length determinant test case
type LEN struct {
	Input  uint64 `json:"input"`
	Output string `json:"output"`
}

func TestWriteLengthDeterminant(t *testing.T) {
	var tests []LEN
	load(t, "length.json", &tests)

	for _, tc := range tests {
		t.Run(fmt.Sprintf("LENGTH_%d", tc.Input), func(t *testing.T) {
			encoder := NewEncoder(true)
			if err := encoder.EncodeLengthDeterminant(tc.Input); err != nil {
				t.Fatalf("EncodeLengthDeterminant() error = %v", err)
			}
			if result := hex.EncodeToString(encoder.Bytes()); result != tc.Output {
				t.Errorf("EncodeLengthDeterminant() = %s, expected %s", result, tc.Output)
			}
		})
	}

	var ne *NotSupportedError
	if err := NewEncoder(true).EncodeLengthDeterminant(FRAGMENT_SIZE); !errors.As(err, &ne) {
		t.Errorf("EncodeLengthDeterminant(16384) should be not supported, got %v", err)
	}
}

// OCT_STR represents a single octet string test case
type OCT_STR struct {
	Input struct {
		Length     int    `json:"length"`
		Lb         *int64 `json:"lb"`
		Ub         *int64 `json:"ub"`
		Extensible *bool  `json:"extensible"`
	} `json:"input"`
	Output  string `json:"output"`
	Aligned bool   `json:"aligned"`
}

// GenOctetString returns length octets counting up from zero
func GenOctetString(length int) []byte {
	data := make([]byte, length)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestWriteOctetString(t *testing.T) {
	var tests []OCT_STR
	load(t, "octet_string.json", &tests)

	for _, tc := range tests {
		name := strings.ToUpper(fmt.Sprintf("OCTET_STRING_LENGTH_%d_LB_%s_UB_%s_ALIGNED_%v_EXTENSIBLE_%s",
			tc.Input.Length, dref(tc.Input.Lb), dref(tc.Input.Ub), tc.Aligned, dref(tc.Input.Extensible)))
		t.Run(name, func(t *testing.T) {
			encoder := NewEncoder(tc.Aligned)
			r := bounds(tc.Input.Lb, tc.Input.Ub, tc.Input.Extensible)
			if err := encoder.EncodeOctetString(GenOctetString(tc.Input.Length), r); err != nil {
				t.Fatalf("EncodeOctetString() error = %v", err)
			}
			if result := hex.EncodeToString(encoder.Bytes()); result != tc.Output {
				t.Errorf("EncodeOctetString() = %s, expected %s", result, tc.Output)
			}
		})
	}
}

func TestWriteNormallySmall(t *testing.T) {
	test := func(value uint64, expected string) {
		t.Run(fmt.Sprintf("VALUE_%d", value), func(t *testing.T) {
			encoder := NewEncoder(true)
			if err := encoder.EncodeNormallySmallNonNegativeWholeNumber(value); err != nil {
				t.Fatalf("EncodeNormallySmallNonNegativeWholeNumber() error = %v", err)
			}
			if result := hex.EncodeToString(encoder.Bytes()); result != expected {
				t.Errorf("EncodeNormallySmallNonNegativeWholeNumber() = %s, expected %s", result, expected)
			}
		})
	}
	test(0, "00")
	test(5, "0a")
	test(63, "7e")
	// 1 00000001 01000000
	test(64, "80a000")
}
