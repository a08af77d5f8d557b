package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueHeaderSize is the size of the leading dimensionality word.
const ValueHeaderSize = 4

// EncodeValue encodes v into the opaque column value: a little-endian uint32
// dimensionality followed by that many little-endian IEEE 754 float32
// components. This layout is the only persisted/exchanged vector format.
func EncodeValue(v Vector) ([]byte, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: cannot encode empty vector", ErrInvalidArgument)
	}
	b := make([]byte, ValueHeaderSize+len(v)*4)
	binary.LittleEndian.PutUint32(b, uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[ValueHeaderSize+i*4:], math.Float32bits(f))
	}
	return b, nil
}

// DecodeValue decodes a value produced by EncodeValue.
func DecodeValue(b []byte) (Vector, error) {
	dim, err := ValueDim(b)
	if err != nil {
		return nil, err
	}
	v := make(Vector, dim)
	for i := 0; i < dim; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[ValueHeaderSize+i*4:]))
	}
	return v, nil
}

// ValueDim returns the dimensionality of an encoded value after checking
// that its length matches the header.
func ValueDim(b []byte) (int, error) {
	if len(b) < ValueHeaderSize {
		return 0, fmt.Errorf("%w: length %d shorter than header", ErrInvalidValue, len(b))
	}
	dim := binary.LittleEndian.Uint32(b)
	if dim == 0 {
		return 0, fmt.Errorf("%w: zero dimensionality", ErrInvalidValue)
	}
	if want := uint64(ValueHeaderSize) + 4*uint64(dim); uint64(len(b)) != want {
		return 0, fmt.Errorf("%w: length %d does not match dimensionality %d", ErrInvalidValue, len(b), dim)
	}
	return int(dim), nil
}

// IsValidValue reports whether b is a well-formed value with exactly
// expectedDim finite components. It never fails.
func IsValidValue(b []byte, expectedDim int) bool {
	v, err := DecodeValue(b)
	if err != nil || len(v) != expectedDim {
		return false
	}
	return v.Validate() == nil
}

// FromValue converts a SQL argument into a vector. BLOBs are decoded as
// values and TEXT is parsed as a literal. A nil argument yields a nil vector
// and no error so callers can propagate SQL NULL.
func FromValue(arg any) (Vector, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return DecodeValue(v)
	case string:
		return Construct(v)
	default:
		return nil, fmt.Errorf("%w: unsupported vector argument type %T", ErrInvalidArgument, arg)
	}
}

// DecodeFloats decodes a bare array of little-endian float32 values with no
// header, the layout produced by most embedding clients.
func DecodeFloats(b []byte) (Vector, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: float array length %d is not a positive multiple of 4", ErrInvalidValue, len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
