package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viant/myvector/vector"
)

var magic = []byte("MVIX")

// Header describes a stored index.
type Header struct {
	BuildID     string    `json:"buildId"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Options     string    `json:"options,omitempty"`
	IDColumn    string    `json:"idColumn,omitempty"`
	Rows        int       `json:"rows"`
	Dim         int       `json:"dim"`
	Compression string    `json:"compression"`
	CreatedAt   time.Time `json:"createdAt"`
	// Watermark is the largest tracking column value seen by the last build
	// or refresh.
	Watermark string `json:"watermark,omitempty"`
}

// Encode frames payload behind h. An empty BuildID is assigned a new uuid
// and a zero CreatedAt is set to now.
func Encode(h Header, payload []byte, c Compression) ([]byte, Header, error) {
	if h.BuildID == "" {
		h.BuildID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	h.Compression = c.String()
	head, err := json.Marshal(h)
	if err != nil {
		return nil, h, fmt.Errorf("snapshot: encode header: %w", err)
	}
	block, err := compressBlock(payload, c)
	if err != nil {
		return nil, h, fmt.Errorf("snapshot: %w", err)
	}
	out := make([]byte, 0, len(magic)+4+len(head)+len(block))
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(head)))
	out = append(out, head...)
	out = append(out, block...)
	return out, h, nil
}

// Decode splits data into its header and decompressed payload. The payload
// never aliases data.
func Decode(data []byte) (Header, []byte, error) {
	var h Header
	if len(data) < len(magic)+4 || !bytes.Equal(data[:len(magic)], magic) {
		return h, nil, fmt.Errorf("snapshot: %w: missing magic", vector.ErrInvalidValue)
	}
	n := int(binary.LittleEndian.Uint32(data[len(magic):]))
	off := len(magic) + 4
	if n > len(data)-off {
		return h, nil, fmt.Errorf("snapshot: %w: truncated header", vector.ErrInvalidValue)
	}
	if err := json.Unmarshal(data[off:off+n], &h); err != nil {
		return h, nil, fmt.Errorf("snapshot: decode header: %w", err)
	}
	c, err := ParseCompression(h.Compression)
	if err != nil {
		return h, nil, fmt.Errorf("snapshot: %w", err)
	}
	payload, err := decompressBlock(data[off+n:], c)
	if err != nil {
		return h, nil, fmt.Errorf("snapshot: %w", err)
	}
	return h, payload, nil
}
