package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/viant/myvector/vector"
)

type graphState struct {
	Options  Options
	Metric   vector.Metric
	Dim      int
	EP       uint32
	MaxLevel int
	Nodes    []*node
}

// MarshalBinary encodes the graph with gob followed by the tombstone bitmap.
func (i *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	state := graphState{
		Options:  i.opts,
		Metric:   i.metric,
		Dim:      i.dim,
		EP:       i.ep,
		MaxLevel: i.maxLevel,
		Nodes:    i.nodes,
	}
	if err := encoder.Encode(&state); err != nil {
		return nil, fmt.Errorf("hnsw: encode graph: %w", err)
	}
	if _, err := i.tombstones.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("hnsw: encode tombstones: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a graph written by MarshalBinary.
func (i *Index) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var state graphState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("hnsw: decode graph: %w", err)
	}
	if !state.Metric.Valid() {
		return fmt.Errorf("hnsw: invalid metric %d", state.Metric)
	}
	tombstones := roaring.New()
	if _, err := tombstones.ReadFrom(r); err != nil {
		return fmt.Errorf("hnsw: decode tombstones: %w", err)
	}
	live := make(map[int64]uint32, len(state.Nodes))
	for n, nd := range state.Nodes {
		if nd == nil || len(nd.Links) != nd.Level+1 {
			return fmt.Errorf("hnsw: corrupt node %d", n)
		}
		for _, links := range nd.Links {
			for _, to := range links {
				if int(to) >= len(state.Nodes) {
					return fmt.Errorf("hnsw: node %d links to missing node %d", n, to)
				}
			}
		}
		if !tombstones.Contains(uint32(n)) {
			live[nd.ID] = uint32(n)
		}
	}
	if len(state.Nodes) > 0 && int(state.EP) >= len(state.Nodes) {
		return fmt.Errorf("hnsw: entry point %d out of range", state.EP)
	}
	state.Options.normalize()
	i.opts = state.Options
	i.metric = state.Metric
	i.dist = state.Metric.Func()
	i.dim = state.Dim
	i.mmax = state.Options.M
	i.mmax0 = 2 * state.Options.M
	i.ml = 1 / math.Log(float64(state.Options.M))
	i.ep = state.EP
	i.maxLevel = state.MaxLevel
	i.nodes = state.Nodes
	i.live = live
	i.tombstones = tombstones
	i.rng = rand.New(rand.NewSource(state.Options.Seed + int64(len(state.Nodes)))) // nolint gosec
	return nil
}
