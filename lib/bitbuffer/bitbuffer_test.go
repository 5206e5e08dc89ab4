package bitbuffer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestBitBuffer(t *testing.T) {
	w := CreateWriter()

	// Initial state
	if w.NumWritten() != 0 {
		t.Errorf("initial written should be 0, got %d", w.NumWritten())
	}
	if w.Bytes() != nil {
		t.Errorf("initial bytes should be nil, got %x", w.Bytes())
	}

	// Write 16 bits of 0
	for i := 0; i < 16; i++ {
		err := w.Write(1, 0)
		if err != nil {
			t.Fatalf("Write %d failed: %v", i+1, err)
		}
	}
	if w.NumWritten() != 16 {
		t.Errorf("after 16 writes, written should be 16, got %d", w.NumWritten())
	}

	// WriteBytes([]byte{0x00})
	err := w.WriteBytes([]byte{0x00})
	if err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	if w.NumWritten() != 24 {
		t.Errorf("after WriteBytes, written should be 24, got %d", w.NumWritten())
	}

	// Align on a byte boundary does nothing
	if err := w.Align(); err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if w.NumWritten() != 24 {
		t.Errorf("after Align, written should still be 24, got %d", w.NumWritten())
	}

	if err := w.Write(1, 1); err != nil {
		t.Fatalf("Write after Align failed: %v", err)
	}
	if w.NumWritten() != 25 {
		t.Errorf("after writing bit, written should be 25, got %d", w.NumWritten())
	}

	// Align in the middle of a byte pads with zeros
	if err := w.Align(); err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if w.NumWritten() != 32 {
		t.Errorf("after Align, written should be 32, got %d", w.NumWritten())
	}

	expected := []byte{0x00, 0x00, 0x00, 0x80}
	if !bytes.Equal(w.Bytes(), expected) {
		t.Errorf("bytes should be %x, got %x", expected, w.Bytes())
	}
}

func TestWriteReadBits(t *testing.T) {
	bits := make([]uint8, 64)
	for i := range bits {
		bits[i] = uint8(i + 1)
	}

	patterns := []struct {
		name  string
		value func(bit uint8) uint64
	}{
		{"BIT_COUNT", func(bit uint8) uint64 { return uint64(bit) }},
		{"ZERO", func(uint8) uint64 { return 0 }},
		{"ALL_ONES", func(bit uint8) uint64 { return uint64(1<<bit) - 1 }},
	}

	for _, pattern := range patterns {
		for _, interleave := range []bool{false, true} {
			name := fmt.Sprintf("%s_INTERLEAVE_BYTES_%v", pattern.name, interleave)
			t.Run(name, func(t *testing.T) {
				w := CreateWriter()
				for _, bit := range bits {
					value := pattern.value(bit)
					if err := w.Write(bit, value); err != nil {
						t.Fatalf("Write %d bits with value %d failed: %v", bit, value, err)
					}
					if interleave {
						data := fmt.Appendf(nil, "%0*x", (bit+3)/4, value)
						if err := w.WriteBytes(data); err != nil {
							t.Fatalf("WriteBytes failed: %v", err)
						}
					}
				}

				r := CreateReader(w.Bytes())
				for _, bit := range bits {
					expected := pattern.value(bit)
					actual, err := r.Read(bit)
					if err != nil {
						t.Fatalf("Read %d bits failed: %v", bit, err)
					}
					if actual != expected {
						t.Errorf("Read %d bits: expected %d, got %d", bit, expected, actual)
					}
					if interleave {
						data := fmt.Appendf(nil, "%0*x", (bit+3)/4, expected)
						content, err := r.ReadBytes(len(data))
						if err != nil {
							t.Fatalf("ReadBytes failed: %v", err)
						}
						if !bytes.Equal(content, data) {
							t.Errorf("ReadBytes: expected %v, got %v", data, content)
						}
					}
				}

				total := uint64(2080)
				if interleave {
					total = 6432
				}
				if w.NumWritten() != total {
					t.Errorf("Total written bits: expected %d, got %d", total, w.NumWritten())
				}
				if r.NumRead() != total {
					t.Errorf("Total read bits: expected %d, got %d", total, r.NumRead())
				}
			})
		}
	}
}

func TestWriteBitsReadBits(t *testing.T) {
	w := CreateWriter()
	if err := w.Write(3, 0x5); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.WriteBits([]byte{0xAB, 0xC0}, 10); err != nil {
		t.Fatalf("WriteBits failed: %v", err)
	}
	if w.NumWritten() != 13 {
		t.Errorf("written should be 13, got %d", w.NumWritten())
	}
	// 101 10101011 11 -> 1011 0101 0111 1000
	expected := []byte{0xB5, 0x78}
	if !bytes.Equal(w.Bytes(), expected) {
		t.Errorf("bytes should be %x, got %x", expected, w.Bytes())
	}

	r := CreateReader(w.Bytes())
	if _, err := r.Read(3); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	data, err := r.ReadBits(10)
	if err != nil {
		t.Fatalf("ReadBits failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0xAB, 0xC0}) {
		t.Errorf("ReadBits should be abc0, got %x", data)
	}
	if err := w.WriteBits([]byte{0xFF}, 9); err == nil {
		t.Errorf("WriteBits with a short slice should fail")
	}
}

func TestReadOutOfData(t *testing.T) {
	r := CreateReader([]byte{0xF0})
	if _, err := r.Read(3); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	_, err := r.Read(6)
	var ood *OutOfDataError
	if !errors.As(err, &ood) {
		t.Fatalf("expected OutOfDataError, got %v", err)
	}
	if ood.Offset != 3 {
		t.Errorf("offset should be 3, got %d", ood.Offset)
	}
	if r.NumRead() != 3 {
		t.Errorf("failed read must not move the cursor, read=%d", r.NumRead())
	}
	if _, err := r.ReadBytes(1); !errors.As(err, &ood) {
		t.Errorf("ReadBytes should fail with OutOfDataError, got %v", err)
	}
	if _, err := r.ReadBits(6); !errors.As(err, &ood) {
		t.Errorf("ReadBits should fail with OutOfDataError, got %v", err)
	}
	if err := r.Skip(6); !errors.As(err, &ood) {
		t.Errorf("Skip should fail with OutOfDataError, got %v", err)
	}
	if r.Remaining() != 5 {
		t.Errorf("remaining should be 5, got %d", r.Remaining())
	}

	value, err := r.Read(5)
	if err != nil {
		t.Fatalf("Read of the remaining bits failed: %v", err)
	}
	if value != 0x10 {
		t.Errorf("value should be 0x10, got %#x", value)
	}
	if _, err := r.ReadBit(); !errors.As(err, &ood) {
		t.Errorf("ReadBit on empty input should fail, got %v", err)
	}
}

func TestAdvanceSkip(t *testing.T) {
	r := CreateReader([]byte{0x80, 0x0F, 0xFF})
	bit, err := r.ReadBit()
	if err != nil || !bit {
		t.Fatalf("ReadBit = %v, %v", bit, err)
	}
	if err := r.Advance(); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if r.NumRead() != 8 {
		t.Errorf("after Advance, read should be 8, got %d", r.NumRead())
	}
	if err := r.Advance(); err != nil || r.NumRead() != 8 {
		t.Errorf("Advance on a boundary must be a no-op, read=%d", r.NumRead())
	}
	if err := r.Skip(4); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	value, err := r.Read(12)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if value != 0xFFF {
		t.Errorf("value should be 0xfff, got %#x", value)
	}
}

func TestSetBit(t *testing.T) {
	w := CreateWriter()
	if err := w.Write(10, 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.SetBit(0); err != nil {
		t.Fatalf("SetBit failed: %v", err)
	}
	if err := w.SetBit(9); err != nil {
		t.Fatalf("SetBit failed: %v", err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x80, 0x40}) {
		t.Errorf("bytes should be 8040, got %x", w.Bytes())
	}
	if err := w.SetBit(10); err == nil {
		t.Errorf("SetBit past the written bits should fail")
	}
}

func TestBitCount(t *testing.T) {
	w := CreateWriter()
	if err := w.Write(65, 0); !errors.Is(err, ErrBitCount) {
		t.Errorf("Write(65) should fail with ErrBitCount, got %v", err)
	}
	if err := w.Write(0, 0xFF); err != nil || w.NumWritten() != 0 {
		t.Errorf("Write(0) should be a no-op, written=%d err=%v", w.NumWritten(), err)
	}
	r := CreateReader(nil)
	if _, err := r.Read(65); !errors.Is(err, ErrBitCount) {
		t.Errorf("Read(65) should fail with ErrBitCount, got %v", err)
	}
	if value, err := r.Read(0); err != nil || value != 0 {
		t.Errorf("Read(0) = %d, %v", value, err)
	}
}
