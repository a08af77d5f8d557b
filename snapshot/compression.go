package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/viant/myvector/vector"
)

// Compression selects the payload codec.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

// ParseCompression resolves none, lz4 or zstd. The empty string is none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", vector.ErrInvalidArgument, name)
}

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return "none"
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(math.MaxUint32))
}

// blockHeaderSize covers [UncompressedSize uint32][CompressedSize uint32].
// A CompressedSize of 0 marks a block stored as is.
const blockHeaderSize = 8

// maxLZ4Ratio is the largest expansion an lz4 block can encode.
const maxLZ4Ratio = 255

// zstdPrealloc caps the up-front buffer for a zstd block at this multiple of
// its compressed size; larger payloads grow while decoding.
const zstdPrealloc = 8

func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}
	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out, uint32(len(data)))
	// incompressible or uncompressed payloads are stored as is
	if len(compressed) == 0 || len(compressed) >= len(data) {
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	return append(out, compressed...), nil
}

func decompressBlock(data []byte, c Compression) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, errors.New("block too small for header")
	}
	size := binary.LittleEndian.Uint32(data)
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	body := data[blockHeaderSize:]
	if compressedSize == 0 {
		if uint32(len(body)) != size {
			return nil, errors.New("stored block size mismatch")
		}
		return bytes.Clone(body), nil
	}
	if uint32(len(body)) != compressedSize {
		return nil, errors.New("compressed block size mismatch")
	}
	switch c {
	case CompressionLZ4:
		if uint64(size) > uint64(len(body))*maxLZ4Ratio {
			return nil, fmt.Errorf("lz4 block claims %d bytes from %d", size, len(body))
		}
		result := make([]byte, size)
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint32(n) != size {
			return nil, errors.New("decompressed size mismatch")
		}
		return result, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		prealloc := min(uint64(size), uint64(len(body))*zstdPrealloc)
		decoded, err := dec.DecodeAll(body, make([]byte, 0, prealloc))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint32(len(decoded)) != size {
			return nil, errors.New("decompressed size mismatch")
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("compressed block with codec %s", c)
}
