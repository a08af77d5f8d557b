package index

import (
	"context"
	"fmt"

	"github.com/viant/myvector/vector"
)

// Recall returns the mean fraction of the oracle's top-k ids that approx
// also returns, over all queries. With no queries, or an empty oracle, recall
// is 1. ctx is checked before every query.
func Recall(ctx context.Context, approx, oracle Index, queries []vector.Vector, k int) (float64, error) {
	var sum float64
	var n int
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		want, err := oracle.Search(q, k)
		if err != nil {
			return 0, fmt.Errorf("oracle search: %w", err)
		}
		if len(want) == 0 {
			continue
		}
		got, err := approx.Search(q, k)
		if err != nil {
			return 0, fmt.Errorf("approximate search: %w", err)
		}
		hit := make(map[int64]struct{}, len(got))
		for _, r := range got {
			hit[r.ID] = struct{}{}
		}
		matched := 0
		for _, r := range want {
			if _, ok := hit[r.ID]; ok {
				matched++
			}
		}
		sum += float64(matched) / float64(len(want))
		n++
	}
	if n == 0 {
		return 1, nil
	}
	return sum / float64(n), nil
}

// VerifyRecall measures recall and fails with ErrRecallBelowBound when it is
// under minRecall.
func VerifyRecall(ctx context.Context, approx, oracle Index, queries []vector.Vector, k int, minRecall float64) (float64, error) {
	r, err := Recall(ctx, approx, oracle, queries, k)
	if err != nil {
		return 0, err
	}
	if r < minRecall {
		return r, fmt.Errorf("%w: %.4f < %.4f", ErrRecallBelowBound, r, minRecall)
	}
	return r, nil
}
