package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
)

// binaryTag prefixes every encoded binary vector. As a float value header it
// would imply a dimensionality far larger than any real blob, so the two
// layouts cannot be confused.
var binaryTag = []byte("MVB1")

const binaryHeaderSize = 8

// BinaryVector is a packed bit vector. Bit i lives in Data[i/8] at position
// 7-i%8.
type BinaryVector struct {
	Bits int
	Data []byte
}

// Binarize sets bit i when v[i] is positive.
func Binarize(v Vector) BinaryVector {
	out := BinaryVector{Bits: len(v), Data: make([]byte, (len(v)+7)/8)}
	for i, f := range v {
		if f > 0 {
			out.Data[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

// Bit reports whether bit i is set.
func (b BinaryVector) Bit(i int) bool { return b.Data[i/8]&(1<<(7-uint(i%8))) != 0 }

// String renders the bits as "[1, 0, 1]".
func (b BinaryVector) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < b.Bits; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseBinary parses a literal whose components are byte values 0..255,
// each contributing 8 bits.
func ParseBinary(text string) (BinaryVector, error) {
	v, err := Construct(text)
	if err != nil {
		return BinaryVector{}, err
	}
	out := BinaryVector{Bits: len(v) * 8, Data: make([]byte, len(v))}
	for i, f := range v {
		if f < 0 || f > 255 || f != float32(int(f)) {
			return BinaryVector{}, fmt.Errorf("%w: binary component %d is %v, want an integer in [0,255]", ErrInvalidArgument, i, f)
		}
		out.Data[i] = byte(f)
	}
	return out, nil
}

// EncodeBinary produces the tagged binary-vector value.
func EncodeBinary(b BinaryVector) ([]byte, error) {
	if b.Bits <= 0 || len(b.Data) != (b.Bits+7)/8 {
		return nil, fmt.Errorf("%w: binary vector with %d bits and %d bytes", ErrInvalidArgument, b.Bits, len(b.Data))
	}
	out := make([]byte, binaryHeaderSize+len(b.Data))
	copy(out, binaryTag)
	binary.LittleEndian.PutUint32(out[4:], uint32(b.Bits))
	copy(out[binaryHeaderSize:], b.Data)
	return out, nil
}

// IsBinaryValue reports whether blob carries the binary-vector tag.
func IsBinaryValue(blob []byte) bool {
	return len(blob) >= binaryHeaderSize && bytes.Equal(blob[:4], binaryTag)
}

// DecodeBinary parses a tagged binary-vector value.
func DecodeBinary(blob []byte) (BinaryVector, error) {
	if !IsBinaryValue(blob) {
		return BinaryVector{}, fmt.Errorf("%w: missing binary vector tag", ErrInvalidValue)
	}
	n := int(binary.LittleEndian.Uint32(blob[4:]))
	if n <= 0 || len(blob)-binaryHeaderSize != (n+7)/8 {
		return BinaryVector{}, fmt.Errorf("%w: binary vector of %d bits has %d bytes", ErrInvalidValue, n, len(blob)-binaryHeaderSize)
	}
	data := make([]byte, len(blob)-binaryHeaderSize)
	copy(data, blob[binaryHeaderSize:])
	return BinaryVector{Bits: n, Data: data}, nil
}

// Hamming counts differing bits.
func Hamming(a, b BinaryVector) (int, error) {
	if err := CheckDim(a.Bits, b.Bits); err != nil {
		return 0, err
	}
	n := 0
	i := 0
	for ; i+8 <= len(a.Data); i += 8 {
		n += bits.OnesCount64(binary.LittleEndian.Uint64(a.Data[i:]) ^ binary.LittleEndian.Uint64(b.Data[i:]))
	}
	for ; i < len(a.Data); i++ {
		n += bits.OnesCount8(a.Data[i] ^ b.Data[i])
	}
	return n, nil
}
