package hnsw

// Options configures graph construction and search.
type Options struct {
	// M is the number of links created for each new element on every layer
	// above 0. Layer 0 allows 2*M.
	M int

	// EfConstruction is the size of the dynamic candidate list while linking.
	EfConstruction int

	// EfSearch is the minimum candidate list size at query time. Queries use
	// max(EfSearch, k).
	EfSearch int

	// Heuristic selects neighbours with the diversity heuristic instead of
	// plain nearest-M.
	Heuristic bool

	// Seed drives level generation so that builds are reproducible.
	Seed int64
}

// DefaultOptions are used for fields left at zero.
var DefaultOptions = Options{
	M:              16,
	EfConstruction: 200,
	EfSearch:       64,
	Heuristic:      true,
	Seed:           1,
}

func (o *Options) normalize() {
	if o.M <= 1 {
		// M == 1 would make the level multiplier 1/ln(1) infinite.
		o.M = DefaultOptions.M
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = DefaultOptions.EfConstruction
	}
	if o.EfSearch <= 0 {
		o.EfSearch = DefaultOptions.EfSearch
	}
}
