package per

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thebagchi/asn1per/lib/bitbuffer"
)

// OutOfDataError reports that fewer bits remained than a read required.
// The engine never returns it bare: it is always the Err of a *DecodeError,
// so errors.As finds both.
type OutOfDataError = bitbuffer.OutOfDataError

// EncodeError reports a value that does not fit the type it is encoded with:
// a missing mandatory member, an unknown choice or enumeration name, a size
// or range violation, or a Go value of the wrong type.
type EncodeError struct {
	Path    []string // Member names from the root type down to the failing one
	Message string   // Human-readable error description
	Err     error    // Underlying error
}

func (e *EncodeError) Error() string {
	return withPath(e.Path, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError reports malformed input.
type DecodeError struct {
	Path    []string // Member names from the root type down to the failing one
	Offset  int64    // Bit offset where the error occurred, -1 if unknown
	Message string   // Human-readable error description
	Err     error    // Underlying error
}

func (e *DecodeError) Error() string {
	msg := withPath(e.Path, e.Message, e.Err)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (at bit offset %d)", e.Offset)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NotSupportedError reports a valid construct the engine does not implement.
type NotSupportedError struct {
	Path    []string
	Feature string
}

func (e *NotSupportedError) Error() string {
	return withPath(e.Path, e.Feature+" is not supported", nil)
}

func encodeErrorf(format string, args ...any) error {
	return &EncodeError{Message: fmt.Sprintf(format, args...)}
}

func decodeErrorf(offset uint64, format string, args ...any) error {
	return &DecodeError{Offset: int64(offset), Message: fmt.Sprintf(format, args...)}
}

func notSupported(format string, args ...any) error {
	return &NotSupportedError{Feature: fmt.Sprintf(format, args...)}
}

// outOfData converts bit buffer failures into the decode error taxonomy.
func outOfData(err error) error {
	var ood *OutOfDataError
	if errors.As(err, &ood) {
		return &DecodeError{Offset: int64(ood.Offset), Message: "out of data", Err: err}
	}
	return err
}

// annotate prefixes the path of an engine error with location, so that an
// error leaving the root type carries the full root-to-leaf member path.
func annotate(err error, location string) error {
	if err == nil {
		return nil
	}
	var (
		ee *EncodeError
		de *DecodeError
		ne *NotSupportedError
	)
	switch {
	case errors.As(err, &ee):
		ee.Path = append([]string{location}, ee.Path...)
	case errors.As(err, &de):
		de.Path = append([]string{location}, de.Path...)
	case errors.As(err, &ne):
		ne.Path = append([]string{location}, ne.Path...)
	}
	return err
}

func withPath(path []string, message string, err error) string {
	var b strings.Builder
	for i, location := range path {
		if i > 0 && !strings.HasPrefix(location, "[") {
			b.WriteByte('.')
		}
		b.WriteString(location)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(message)
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// formatOr renders items as "'a', 'b' or 'c'".
func formatOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}
