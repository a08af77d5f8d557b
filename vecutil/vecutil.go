package vecutil

import (
	"context"
	"fmt"

	"github.com/viant/myvector/vector"
)

// EmbedFunc converts free-form text into an embedding.
//
// Implementations can call any embedding provider (a hosted API, a local
// model and so on) as long as they return float32 components. The core
// myvector packages remain embedding-agnostic and only depend on the numeric
// vectors and their encoded BLOB representation.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// EmbedValue embeds text and encodes the result as a stored vector value.
func EmbedValue(ctx context.Context, embed EmbedFunc, text string) ([]byte, error) {
	if embed == nil {
		return nil, fmt.Errorf("vecutil: EmbedFunc is nil")
	}
	v, err := embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vector.EncodeValue(v)
}
