package collection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/myvector/index"
	"github.com/viant/myvector/index/bruteforce"
	"github.com/viant/myvector/index/cover"
	"github.com/viant/myvector/index/hnsw"
	"github.com/viant/myvector/vector"
)

// Kind names an index strategy.
type Kind string

const (
	KindBruteForce Kind = "bruteforce"
	KindHNSW       Kind = "hnsw"
	KindCover      Kind = "cover"
)

// ParseKind accepts the strategy names used in option strings. "knn",
// "brute" and "flat" are aliases of bruteforce.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "knn", "brute", "bruteforce", "flat":
		return KindBruteForce, nil
	case "hnsw":
		return KindHNSW, nil
	case "cover":
		return KindCover, nil
	}
	return "", fmt.Errorf("%w: unknown index type %q", vector.ErrInvalidArgument, name)
}

// Approximate reports whether results of this kind are subject to a recall
// check.
func (k Kind) Approximate() bool { return k == KindHNSW }

// Options is the parsed form of an index option string such as
// "type=hnsw,dim=3,metric=l2,M=16,ef=200,ef_search=64,min_recall=0.9".
type Options struct {
	Kind   Kind
	Dim    int
	Metric vector.Metric

	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64

	Base float32

	// MinRecall below zero defers to the registry default.
	MinRecall float64

	// Track names a column whose growing values drive refresh.
	Track string
}

// ParseOptions parses a comma separated list of key=value pairs with case
// insensitive keys. Unknown keys are rejected.
func ParseOptions(s string) (Options, error) {
	o := Options{Kind: KindBruteForce, MinRecall: -1}
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, val, ok := strings.Cut(raw, "=")
		if !ok {
			return o, fmt.Errorf("%w: option %q is not key=value", vector.ErrInvalidArgument, raw)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		var err error
		switch key {
		case "type", "index":
			o.Kind, err = ParseKind(val)
		case "dim":
			o.Dim, err = positiveInt(key, val)
		case "metric", "dist", "distance":
			o.Metric, err = vector.ParseMetric(val)
		case "m":
			o.M, err = positiveInt(key, val)
		case "ef", "ef_construction":
			o.EfConstruction, err = positiveInt(key, val)
		case "ef_search":
			o.EfSearch, err = positiveInt(key, val)
		case "seed":
			o.Seed, err = strconv.ParseInt(val, 10, 64)
		case "base":
			var f float64
			if f, err = strconv.ParseFloat(val, 32); err == nil && f <= 1 {
				err = fmt.Errorf("must be greater than 1")
			}
			o.Base = float32(f)
		case "min_recall":
			if o.MinRecall, err = strconv.ParseFloat(val, 64); err == nil && (o.MinRecall < 0 || o.MinRecall > 1) {
				err = fmt.Errorf("must be within [0,1]")
			}
		case "track", "track_column":
			o.Track = val
			if !identRe.MatchString(val) {
				err = fmt.Errorf("invalid column name")
			}
		case "size":
			// capacity hint kept for option string compatibility
			_, err = positiveInt(key, val)
		default:
			return o, fmt.Errorf("%w: unknown option %q", vector.ErrInvalidArgument, key)
		}
		if err != nil {
			return o, fmt.Errorf("%w: option %s=%q: %v", vector.ErrInvalidArgument, key, val, err)
		}
	}
	if o.Kind == KindCover && o.Metric == vector.InnerProduct {
		return o, fmt.Errorf("%w: cover index does not support metric ip", vector.ErrInvalidArgument)
	}
	return o, nil
}

func positiveInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}

// String renders o back into option string form, omitting unset fields.
func (o Options) String() string {
	parts := []string{"type=" + string(o.Kind)}
	if o.Dim > 0 {
		parts = append(parts, "dim="+strconv.Itoa(o.Dim))
	}
	parts = append(parts, "metric="+o.Metric.String())
	if o.M > 0 {
		parts = append(parts, "M="+strconv.Itoa(o.M))
	}
	if o.EfConstruction > 0 {
		parts = append(parts, "ef="+strconv.Itoa(o.EfConstruction))
	}
	if o.EfSearch > 0 {
		parts = append(parts, "ef_search="+strconv.Itoa(o.EfSearch))
	}
	if o.Seed != 0 {
		parts = append(parts, "seed="+strconv.FormatInt(o.Seed, 10))
	}
	if o.Base > 0 {
		parts = append(parts, "base="+strconv.FormatFloat(float64(o.Base), 'g', -1, 32))
	}
	if o.MinRecall >= 0 {
		parts = append(parts, "min_recall="+strconv.FormatFloat(o.MinRecall, 'g', -1, 64))
	}
	if o.Track != "" {
		parts = append(parts, "track="+o.Track)
	}
	return strings.Join(parts, ",")
}

// NewIndex returns an empty index for o.
func (o Options) NewIndex() (index.Index, error) {
	switch o.Kind {
	case KindBruteForce, "":
		return bruteforce.New(o.Metric), nil
	case KindHNSW:
		return hnsw.New(o.Metric, func(h *hnsw.Options) {
			if o.M > 0 {
				h.M = o.M
			}
			if o.EfConstruction > 0 {
				h.EfConstruction = o.EfConstruction
			}
			if o.EfSearch > 0 {
				h.EfSearch = o.EfSearch
			}
			if o.Seed != 0 {
				h.Seed = o.Seed
			}
		}), nil
	case KindCover:
		var opts []cover.Option
		if o.Base > 0 {
			opts = append(opts, cover.WithBase(o.Base))
		}
		return cover.New(o.Metric, opts...)
	}
	return nil, fmt.Errorf("%w: unknown index type %q", vector.ErrInvalidArgument, o.Kind)
}

// SearchOptions tune a single query, for example "nn=10,ef_search=128".
type SearchOptions struct {
	NN       int
	EfSearch int
}

// ParseSearchOptions parses per-query options. Unset or non-positive nn
// becomes defaultNN; nn is capped at maxNN when maxNN is positive.
func ParseSearchOptions(s string, defaultNN, maxNN int) (SearchOptions, error) {
	o := SearchOptions{NN: defaultNN}
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, val, ok := strings.Cut(raw, "=")
		if !ok {
			return o, fmt.Errorf("%w: search option %q is not key=value", vector.ErrInvalidArgument, raw)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return o, fmt.Errorf("%w: search option %q: %v", vector.ErrInvalidArgument, raw, err)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "nn", "k":
			if n > 0 {
				o.NN = n
			}
		case "ef_search":
			o.EfSearch = n
		default:
			return o, fmt.Errorf("%w: unknown search option %q", vector.ErrInvalidArgument, key)
		}
	}
	if maxNN > 0 && o.NN > maxNN {
		o.NN = maxNN
	}
	return o, nil
}
