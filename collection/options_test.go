package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/index/cover"
	"github.com/viant/myvector/index/hnsw"
	"github.com/viant/myvector/vector"
)

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions("type=HNSW, dim=3, metric=cosine, M=8, ef=100, ef_search=32, min_recall=0.9, track=updated_at, size=4000")
	require.NoError(t, err)
	assert.Equal(t, KindHNSW, o.Kind)
	assert.Equal(t, 3, o.Dim)
	assert.Equal(t, vector.Cosine, o.Metric)
	assert.Equal(t, 8, o.M)
	assert.Equal(t, 100, o.EfConstruction)
	assert.Equal(t, 32, o.EfSearch)
	assert.Equal(t, 0.9, o.MinRecall)
	assert.Equal(t, "updated_at", o.Track)
	assert.Equal(t, "type=hnsw,dim=3,metric=cosine,M=8,ef=100,ef_search=32,min_recall=0.9,track=updated_at", o.String())

	again, err := ParseOptions(o.String())
	require.NoError(t, err)
	assert.Equal(t, o, again)

	o, err = ParseOptions("")
	require.NoError(t, err)
	assert.Equal(t, KindBruteForce, o.Kind)
	assert.Equal(t, vector.Euclidean, o.Metric)
	assert.Equal(t, -1.0, o.MinRecall)

	o, err = ParseOptions("type=KNN")
	require.NoError(t, err)
	assert.Equal(t, KindBruteForce, o.Kind)
}

func TestParseOptions_Errors(t *testing.T) {
	for _, s := range []string{
		"dim",
		"dim=0",
		"dim=x",
		"metric=manhattan",
		"type=annoy",
		"min_recall=1.5",
		"base=1",
		"track=a b",
		"colour=red",
		"type=cover,metric=ip",
	} {
		_, err := ParseOptions(s)
		assert.ErrorIs(t, err, vector.ErrInvalidArgument, s)
	}
}

func TestOptions_NewIndex(t *testing.T) {
	idx, err := Options{Kind: KindHNSW, M: 4, EfSearch: 10}.NewIndex()
	require.NoError(t, err)
	h, ok := idx.(*hnsw.Index)
	require.True(t, ok)
	assert.Equal(t, 4, h.Options().M)
	assert.Equal(t, 10, h.Options().EfSearch)

	idx, err = Options{Kind: KindCover, Metric: vector.Cosine, Base: 2}.NewIndex()
	require.NoError(t, err)
	_, ok = idx.(*cover.Index)
	assert.True(t, ok)
	assert.Equal(t, vector.Cosine, idx.Metric())
}

func TestParseSearchOptions(t *testing.T) {
	o, err := ParseSearchOptions("", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, SearchOptions{NN: 10}, o)

	o, err = ParseSearchOptions("nn=5,ef_search=128", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, SearchOptions{NN: 5, EfSearch: 128}, o)

	o, err = ParseSearchOptions("nn=0", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 10, o.NN)

	o, err = ParseSearchOptions("nn=5000", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, o.NN)

	_, err = ParseSearchOptions("nn=five", 10, 1000)
	assert.ErrorIs(t, err, vector.ErrInvalidArgument)
	_, err = ParseSearchOptions("depth=3", 10, 1000)
	assert.ErrorIs(t, err, vector.ErrInvalidArgument)
}

func TestParseName(t *testing.T) {
	n, err := ParseName("items.embedding")
	require.NoError(t, err)
	assert.Equal(t, "main.items.embedding", n.String())
	assert.Equal(t, "main.items", n.Source())

	n, err = ParseName("aux.docs.vec")
	require.NoError(t, err)
	assert.Equal(t, Name{Schema: "aux", Table: "docs", Column: "vec"}, n)

	for _, s := range []string{"", "items", "a.b.c.d", "main.items.emb;drop", "main..vec"} {
		_, err := ParseName(s)
		assert.ErrorIs(t, err, vector.ErrInvalidArgument, s)
	}
}

func TestWatermark(t *testing.T) {
	assert.Equal(t, 1, compareWatermark(int64(2), nil))
	assert.Equal(t, -1, compareWatermark(int64(2), 2.5))
	assert.Equal(t, 1, compareWatermark("2024-01-02", "2024-01-01"))
	assert.Equal(t, 1, compareWatermark("a", int64(99)))

	for _, v := range []any{int64(42), 1.5, "2024-01-01 10:00:00"} {
		assert.Equal(t, v, parseWatermark(formatWatermark(v)))
	}
	assert.Nil(t, parseWatermark(""))
	assert.Equal(t, "abc", normalizeWatermark([]byte("abc")))
}
