package vector

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeValue_RoundTrip(t *testing.T) {
	orig := Vector{0.0, 1.5, -2.25, 3.75}

	b, err := EncodeValue(orig)
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	if len(b) != ValueHeaderSize+4*len(orig) {
		t.Fatalf("encoded length = %d, want %d", len(b), ValueHeaderSize+4*len(orig))
	}
	if dim := binary.LittleEndian.Uint32(b); dim != 4 {
		t.Fatalf("header dim = %d, want 4", dim)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[8:])); got != 1.5 {
		t.Fatalf("component 1 = %v, want 1.5", got)
	}

	decoded, err := DecodeValue(b)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if !decoded.Equal(orig) {
		t.Fatalf("decoded = %v, want %v", decoded, orig)
	}
}

func TestEncodeValue_Empty(t *testing.T) {
	if _, err := EncodeValue(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("EncodeValue(nil) err = %v, want ErrInvalidArgument", err)
	}
}

func TestDecodeValue_Malformed(t *testing.T) {
	good, _ := EncodeValue(Vector{1, 2, 3})
	cases := map[string][]byte{
		"nil":       nil,
		"short":     {1, 0},
		"zero dim":  {0, 0, 0, 0},
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 0),
	}
	for name, b := range cases {
		if _, err := DecodeValue(b); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("%s: err = %v, want ErrInvalidValue", name, err)
		}
	}
}

func TestIsValidValue(t *testing.T) {
	b, _ := EncodeValue(Vector{1, 2, 3})
	if !IsValidValue(b, 3) {
		t.Fatalf("IsValidValue(b, 3) = false, want true")
	}
	if IsValidValue(b, 2) {
		t.Fatalf("IsValidValue(b, 2) = true, want false")
	}
	if IsValidValue([]byte("garbage"), 3) {
		t.Fatalf("IsValidValue(garbage) = true, want false")
	}
	nan, _ := EncodeValue(Vector{float32(math.NaN())})
	if IsValidValue(nan, 1) {
		t.Fatalf("IsValidValue(NaN) = true, want false")
	}
}

func TestFromValue(t *testing.T) {
	blob, err := EncodeValue(Vector{1, 2})
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	v, err := FromValue(blob)
	if err != nil || !v.Equal(Vector{1, 2}) {
		t.Fatalf("FromValue(blob) = %v, %v", v, err)
	}
	v, err = FromValue("[3, 4]")
	if err != nil || !v.Equal(Vector{3, 4}) {
		t.Fatalf("FromValue(text) = %v, %v", v, err)
	}
	v, err = FromValue(nil)
	if err != nil || v != nil {
		t.Fatalf("FromValue(nil) = %v, %v", v, err)
	}
	if _, err := FromValue(int64(3)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FromValue(int64) error = %v, want ErrInvalidArgument", err)
	}
}

func TestDecodeFloats(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(-2))
	v, err := DecodeFloats(b)
	if err != nil {
		t.Fatalf("DecodeFloats failed: %v", err)
	}
	if !v.Equal(Vector{1.5, -2}) {
		t.Fatalf("DecodeFloats = %v", v)
	}
	if _, err := DecodeFloats(b[:6]); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("DecodeFloats(6 bytes) error = %v, want ErrInvalidValue", err)
	}
}
