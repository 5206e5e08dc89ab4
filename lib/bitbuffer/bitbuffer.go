// Package bitbuffer provides bit-level I/O for ASN.1 PER (Packed Encoding Rules).
//
// # Overview
//
// The Codec type manages bit-level encoding and decoding with MSB-first bit
// ordering. A writer appends arbitrary bit lengths (0-64 bits per call),
// whole octets and leading bits of octet slices; a reader consumes them back
// with an explicit bit cursor.
//
// # Key Features
//
//   - Fast paths for byte-aligned operations using encoding/binary.BigEndian
//   - Slow paths for general bit-packing/unpacking
//   - Dynamic buffer growth with exponential allocation strategy
//   - Counters for total bits written/read (uint64)
//   - Reads are all-or-nothing: a failing read leaves the cursor untouched
//   - MSB-first bit ordering (most significant bit first per PER spec)
//
// # Scope
//
// This package focuses on bit-level manipulation. Callers are responsible for
// higher-level ASN.1 semantics such as length determinants, alignment policy
// and constraint validation.
//
// # Thread Safety
//
// Codec is NOT thread-safe. Each encode or decode call is expected to own its
// Codec instance for the duration of the call.
package bitbuffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

const (
	// ENABLE_TRACE controls whether trace output is logged
	ENABLE_TRACE = false

	// BITS_PER_BYTE is the number of bits in a byte
	BITS_PER_BYTE = 8

	// TMP_ARRAY_SIZE is the size of temporary arrays used for binary operations
	TMP_ARRAY_SIZE = 8
)

// InitialBufferSize is the initial capacity for the buffer in CreateWriter.
var InitialBufferSize = 64

// ErrBitCount is returned when a single Write or Read asks for more than 64 bits.
var ErrBitCount = errors.New("bit count must be between 0 and 64")

// OutOfDataError is returned by every read operation that asks for more bits
// than remain in the input. Offset is the number of bits consumed before the
// failing read; the cursor is left at that position.
type OutOfDataError struct {
	Offset uint64
}

func (e *OutOfDataError) Error() string {
	return fmt.Sprintf("out of data at bit offset %d", e.Offset)
}

// Codec manages a bit stream for encoding and decoding.
// Fields:
//
//	Buff: byte slice holding the encoded bit stream (writer) or the input (reader)
//	written: total number of bits written; Buff always holds ceil(written/8) bytes
//	read: total number of bits consumed from Buff
type Codec struct {
	Buff    []byte
	written uint64
	read    uint64
}

// Trace logs debug information about the codec state.
// Only logs if ENABLE_TRACE is true (compile-time constant).
// Parameters:
//   - event: "ENTER" or "EXIT" to mark function entry/exit
//   - function: name of the calling function (e.g., "Write", "Read")
//   - arguments: optional additional debug info (e.g., "bits=8 value=42")
func (c *Codec) Trace(event, function, arguments string) {
	if !ENABLE_TRACE {
		return
	}
	logrus.WithFields(logrus.Fields{
		"event":    event,
		"function": function,
		"len":      len(c.Buff),
		"written":  c.written,
		"read":     c.read,
	}).Trace(arguments)
}

// CreateWriter creates a new Codec for writing.
// Initializes with an empty buffer and pre-allocates capacity (InitialBufferSize)
// to reduce early allocations.
func CreateWriter() *Codec {
	return &Codec{
		Buff: make([]byte, 0, InitialBufferSize),
	}
}

// CreateReader creates a new Codec for reading from existing data.
// The cursor starts at the first bit of data. data is not copied and must not
// be modified while the reader is in use.
func CreateReader(data []byte) *Codec {
	return &Codec{
		Buff: data,
	}
}

// Len returns the number of bytes currently in the buffer.
func (c *Codec) Len() int {
	return len(c.Buff)
}

// Cap returns the capacity of the underlying buffer.
func (c *Codec) Cap() int {
	return cap(c.Buff)
}

// NumWritten returns the total number of bits written.
// Includes partial bytes. For example, writing 3 bits then 5 bits returns 8.
func (c *Codec) NumWritten() uint64 {
	return c.written
}

// NumRead returns the total number of bits read, i.e. the reader's bit offset.
func (c *Codec) NumRead() uint64 {
	return c.read
}

// Remaining returns the number of bits that can still be read.
func (c *Codec) Remaining() uint64 {
	return uint64(len(c.Buff))*BITS_PER_BYTE - c.read
}

// Bytes returns the encoded data. The final partial byte, if any, is
// right-padded with zero bits. Use NumWritten for the exact bit count.
func (c *Codec) Bytes() []byte {
	if c.written == 0 {
		return nil
	}
	return c.Buff
}

// String implements the fmt.Stringer interface for Codec.
func (c *Codec) String() string {
	return fmt.Sprintf("Codec{Buff: len=%d, written: %d, read: %d}",
		len(c.Buff), c.written, c.read)
}

// grow appends n zeroed bytes to the buffer.
// Uses exponential growth strategy: capacity = max(current_capacity * 2, needed_size),
// giving O(1) amortized appends.
func (c *Codec) grow(n int) {
	if ENABLE_TRACE {
		c.Trace("ENTER", "grow", fmt.Sprintf("n=%d", n))
		defer c.Trace("EXIT", "grow", "")
	}
	if cap(c.Buff) < len(c.Buff)+n {
		capacity := max(cap(c.Buff)*2, len(c.Buff)+n)
		c.Buff = slices.Grow(c.Buff, capacity-len(c.Buff))
	}
	size := len(c.Buff)
	c.Buff = c.Buff[:size+n]
	clear(c.Buff[size:])
}

// Write writes the least significant 'num' bits of value (0 ≤ num ≤ 64).
// num=0 is a no-op. Returns ErrBitCount if num > 64.
// MSB-first bit ordering: most significant bits written first.
//
// Fast path: byte-aligned writes copy whole bytes via binary.BigEndian.
// Slow path: mid-byte writes pack the value chunk by chunk into the
// current partial byte.
func (c *Codec) Write(num uint8, value uint64) error {
	if ENABLE_TRACE {
		c.Trace("ENTER", "Write", fmt.Sprintf("bits=%d value=%d", num, value))
		defer c.Trace("EXIT", "Write", "")
	}
	if num > 64 {
		return ErrBitCount
	}
	if num == 0 {
		return nil
	}
	if num < 64 {
		value = value & ((1 << num) - 1)
	}

	// Fast path: writing at byte boundary.
	if c.written&7 == 0 {
		nbytes := (int(num) + 7) >> 3 // = ceil(num/8)
		tmp := [TMP_ARRAY_SIZE]byte{}
		binary.BigEndian.PutUint64(tmp[:], value<<(64-uint(num)))
		c.Buff = append(c.Buff, tmp[:nbytes]...)
		c.written += uint64(num)
		return nil
	}

	pending := num
	for pending > 0 {
		offset := uint8(c.written & 7)
		if offset == 0 {
			c.grow(1)
		}
		var (
			available = 8 - offset // Bits available in current byte
			nbits     = min(pending, available)
			remaining = pending - nbits
			chunk     = uint8(value>>remaining) & uint8((uint16(1)<<nbits)-1)
			pos       = len(c.Buff) - 1
		)
		c.Buff[pos] |= chunk << (available - nbits)
		c.written += uint64(nbits)
		pending = remaining
	}
	return nil
}

// WriteBit writes a single bit.
func (c *Codec) WriteBit(bit bool) error {
	if bit {
		return c.Write(1, 1)
	}
	return c.Write(1, 0)
}

// Read reads the next num bits from the bit stream, returning them as a uint64.
// num=0 returns 0 without error. num > 64 returns ErrBitCount.
// If fewer than num bits remain, an *OutOfDataError is returned and nothing
// is consumed.
func (c *Codec) Read(num uint8) (uint64, error) {
	if ENABLE_TRACE {
		c.Trace("ENTER", "Read", fmt.Sprintf("num=%d", num))
		defer c.Trace("EXIT", "Read", "")
	}
	if num > 64 {
		return 0, ErrBitCount
	}
	if num == 0 {
		return 0, nil
	}
	if uint64(num) > c.Remaining() {
		return 0, &OutOfDataError{Offset: c.read}
	}

	// Fast path: reading at byte boundary.
	if c.read&7 == 0 {
		var (
			start  = int(c.read >> 3)
			nbytes = (int(num) + 7) >> 3
			tmp    = [TMP_ARRAY_SIZE]byte{}
		)
		copy(tmp[:nbytes], c.Buff[start:start+nbytes])
		c.read += uint64(num)
		return binary.BigEndian.Uint64(tmp[:]) >> (64 - uint(num)), nil
	}

	var (
		result  uint64
		pending = num
	)
	for pending > 0 {
		var (
			offset    = uint8(c.read & 7)
			remaining = 8 - offset // Bits left in current byte
			reading   = min(pending, remaining)
			mask      = uint8((uint16(1) << reading) - 1)
			shift     = remaining - reading
			bits      = uint64((c.Buff[c.read>>3] >> shift) & mask)
		)
		result = (result << reading) | bits
		c.read += uint64(reading)
		pending = pending - reading
	}
	return result, nil
}

// ReadBit reads a single bit.
func (c *Codec) ReadBit() (bool, error) {
	bit, err := c.Read(1)
	if err != nil {
		return false, err
	}
	return bit != 0, nil
}

// WriteBytes writes full octets continuing from the current bit offset.
// Does NOT force alignment; the caller must Align() first if required.
func (c *Codec) WriteBytes(data []byte) error {
	if ENABLE_TRACE {
		c.Trace("ENTER", "WriteBytes", fmt.Sprintf("len(data)=%d", len(data)))
		defer c.Trace("EXIT", "WriteBytes", "")
	}
	if len(data) == 0 {
		return nil
	}

	// Fast path: already byte-aligned
	if c.written&7 == 0 {
		c.Buff = append(c.Buff, data...)
		c.written += uint64(len(data) * 8)
		return nil
	}

	for _, b := range data {
		if err := c.Write(8, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

// WriteBits writes the leading count bits of data, MSB first.
// data must hold at least ceil(count/8) bytes.
func (c *Codec) WriteBits(data []byte, count uint64) error {
	if count == 0 {
		return nil
	}
	num := count / 8
	if uint64(len(data)) < (count+7)/8 {
		return fmt.Errorf("need %d bytes for %d bits, got %d", (count+7)/8, count, len(data))
	}
	if num > 0 {
		if err := c.WriteBytes(data[:num]); err != nil {
			return err
		}
	}
	remaining := count % 8
	if remaining > 0 {
		return c.Write(uint8(remaining), uint64(data[num]>>(8-remaining)))
	}
	return nil
}

// ReadBytes reads exactly n full octets from the bit stream, continuing from
// the current bit offset. The returned slice is a copy.
func (c *Codec) ReadBytes(n int) ([]byte, error) {
	if ENABLE_TRACE {
		c.Trace("ENTER", "ReadBytes", fmt.Sprintf("n=%d", n))
		defer c.Trace("EXIT", "ReadBytes", "")
	}
	if n < 0 {
		return nil, errors.New("negative byte count")
	}
	if uint64(n)*8 > c.Remaining() {
		return nil, &OutOfDataError{Offset: c.read}
	}
	result := make([]byte, n)

	// Fast path: already byte-aligned
	if c.read&7 == 0 {
		start := int(c.read >> 3)
		copy(result, c.Buff[start:start+n])
		c.read += uint64(n * 8)
		return result, nil
	}

	for i := range result {
		val, err := c.Read(8)
		if err != nil {
			return nil, err
		}
		result[i] = uint8(val)
	}
	return result, nil
}

// ReadBits reads count bits and returns them left-aligned in
// ceil(count/8) bytes, the trailing pad bits set to zero.
func (c *Codec) ReadBits(count uint64) ([]byte, error) {
	if count > c.Remaining() {
		return nil, &OutOfDataError{Offset: c.read}
	}
	result, err := c.ReadBytes(int(count / 8))
	if err != nil {
		return nil, err
	}
	remaining := count % 8
	if remaining > 0 {
		value, err := c.Read(uint8(remaining))
		if err != nil {
			return nil, err
		}
		result = append(result, uint8(value<<(8-remaining)))
	}
	return result, nil
}

// Align pads the writer with zero bits up to the next byte boundary.
// The padding byte already exists (and is zero) because a partial byte is
// only created by a write, so alignment only moves the bit counter.
func (c *Codec) Align() error {
	if ENABLE_TRACE {
		c.Trace("ENTER", "Align", "")
		defer c.Trace("EXIT", "Align", "")
	}
	if rest := c.written & 7; rest != 0 {
		c.written += 8 - rest
	}
	return nil
}

// Advance skips the reader to the next byte boundary.
// This is the read counterpart to Align() for writing.
func (c *Codec) Advance() error {
	if ENABLE_TRACE {
		c.Trace("ENTER", "Advance", "")
		defer c.Trace("EXIT", "Advance", "")
	}
	if rest := c.read & 7; rest != 0 {
		c.read += 8 - rest
	}
	return nil
}

// Skip consumes num bits without interpreting them.
func (c *Codec) Skip(num uint64) error {
	if num > c.Remaining() {
		return &OutOfDataError{Offset: c.read}
	}
	c.read += num
	return nil
}

// SetBit sets the already written bit at position pos (counted from the
// first written bit) to one. It is used to patch presence flags that are
// only known after the fields following them have been encoded.
func (c *Codec) SetBit(pos uint64) error {
	if pos >= c.written {
		return fmt.Errorf("bit position %d beyond %d written bits", pos, c.written)
	}
	c.Buff[pos>>3] |= 0x80 >> (pos & 7)
	return nil
}
