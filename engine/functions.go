package engine

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/vector"
	sqlite "modernc.org/sqlite"
)

// Settings tune the bound functions.
type Settings struct {
	// DefaultNN is the myvector_ann_set result size when options omit nn.
	DefaultNN int
	// MaxNN caps nn.
	MaxNN int
	// Precision is the myvector_display default significant digits.
	Precision int
}

// DefaultSettings match the configuration defaults.
var DefaultSettings = Settings{DefaultNN: 10, MaxNN: 1000, Precision: 7}

type binding struct {
	registry *collection.Registry
	settings Settings
}

var (
	bound        atomic.Pointer[binding]
	registerOnce sync.Once
	registerErr  error
)

// ErrUnbound is returned by functions that need a registry before Bind.
var ErrUnbound = errors.New("myvector: no collection registry bound")

// Bind sets the registry consulted by myvector_ann_set and the index
// maintenance functions. Zero settings fields take DefaultSettings values.
func Bind(reg *collection.Registry, s Settings) {
	if s.DefaultNN <= 0 {
		s.DefaultNN = DefaultSettings.DefaultNN
	}
	if s.MaxNN <= 0 {
		s.MaxNN = DefaultSettings.MaxNN
	}
	if s.Precision <= 0 {
		s.Precision = DefaultSettings.Precision
	}
	bound.Store(&binding{registry: reg, settings: s})
}

func current() *binding {
	if b := bound.Load(); b != nil {
		return b
	}
	return &binding{settings: DefaultSettings}
}

type scalar struct {
	name    string
	minArgs int
	maxArgs int
	fn      func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
	// volatile functions read or change collection state.
	volatile bool
}

// functions lists every registration. The driver keys functions by name
// only, so optional arguments are registered as variadic and counted here.
var functions = []scalar{
	{"myvector_construct", 1, 2, constructImpl, false},
	{"myvector_is_valid", 2, 2, isValidImpl, false},
	{"myvector_distance", 2, 3, distanceImpl, false},
	{"myvector_display", 1, 2, displayImpl, false},
	{"myvector_dim", 1, 1, dimImpl, false},
	{"myvector_hamming_distance", 2, 2, hammingImpl, false},
	{"myvector_ann_set", 3, 4, annSetImpl, true},
	{"myvector_index_insert", 3, 3, indexInsertImpl, true},
	{"myvector_index_remove", 2, 2, indexRemoveImpl, true},
}

func (s scalar) impl(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) < s.minArgs || len(args) > s.maxArgs {
		if s.minArgs == s.maxArgs {
			return nil, fmt.Errorf("%s: expected %d arguments, got %d", s.name, s.minArgs, len(args))
		}
		return nil, fmt.Errorf("%s: expected %d to %d arguments, got %d", s.name, s.minArgs, s.maxArgs, len(args))
	}
	return s.fn(ctx, args)
}

// RegisterFunctions registers the myvector_* functions with the driver so
// they are available on new connections opened after this call. Existing
// open connections will not see them. Repeated calls are no-ops.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		for _, f := range functions {
			nArgs := int32(f.minArgs)
			if f.maxArgs != f.minArgs {
				nArgs = -1
			}
			register := sqlite.RegisterDeterministicScalarFunction
			if f.volatile {
				register = sqlite.RegisterScalarFunction
			}
			if err := register(f.name, nArgs, f.impl); err != nil {
				if !strings.Contains(err.Error(), "already registered") {
					registerErr = fmt.Errorf("register %s: %w", f.name, err)
					return
				}
			}
		}
	})
	return registerErr
}

// constructImpl implements myvector_construct(text[, options]). Options are
// i=string|float for the input form and o=float|bv for the output form.
func constructImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	in, out := "string", "float"
	if len(args) == 2 && args[1] != nil {
		opts, err := asString(args[1])
		if err != nil {
			return nil, fmt.Errorf("myvector_construct: %w", err)
		}
		for _, kv := range strings.Split(opts, ",") {
			key, val, _ := strings.Cut(strings.TrimSpace(kv), "=")
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "":
			case "i":
				in = strings.ToLower(strings.TrimSpace(val))
			case "o":
				out = strings.ToLower(strings.TrimSpace(val))
			default:
				return nil, fmt.Errorf("myvector_construct: %w: unknown option %q", vector.ErrInvalidArgument, key)
			}
		}
	}
	var v vector.Vector
	var err error
	switch in {
	case "string":
		var text string
		if text, err = asString(args[0]); err == nil {
			v, err = vector.Construct(text)
		}
	case "float":
		blob, ok := args[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("myvector_construct: %w: i=float expects a BLOB, got %T", vector.ErrInvalidArgument, args[0])
		}
		v, err = vector.DecodeFloats(blob)
	default:
		return nil, fmt.Errorf("myvector_construct: %w: unknown input form %q", vector.ErrInvalidArgument, in)
	}
	if err != nil {
		return nil, fmt.Errorf("myvector_construct: %w", err)
	}
	switch out {
	case "float":
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("myvector_construct: %w", err)
		}
		return vector.EncodeValue(v)
	case "bv":
		return vector.EncodeBinary(vector.Binarize(v))
	}
	return nil, fmt.Errorf("myvector_construct: %w: unknown output form %q", vector.ErrInvalidArgument, out)
}

// isValidImpl implements myvector_is_valid(v, dim). It never fails.
func isValidImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	dim, err := asInt(args[1])
	if err != nil {
		return int64(0), nil
	}
	ok := false
	switch v := args[0].(type) {
	case []byte:
		if vector.IsBinaryValue(v) {
			b, err := vector.DecodeBinary(v)
			ok = err == nil && int64(b.Bits) == dim
		} else {
			ok = vector.IsValidValue(v, int(dim))
		}
	case string:
		ok = vector.IsValid(v, int(dim))
	}
	if ok {
		return int64(1), nil
	}
	return int64(0), nil
}

// distanceImpl implements myvector_distance(v1, v2[, metric]).
func distanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := vector.FromValue(args[0])
	if err != nil {
		return nil, fmt.Errorf("myvector_distance: %w", err)
	}
	b, err := vector.FromValue(args[1])
	if err != nil {
		return nil, fmt.Errorf("myvector_distance: %w", err)
	}
	if a == nil || b == nil {
		return nil, nil
	}
	metric := vector.Euclidean
	if len(args) == 3 && args[2] != nil {
		name, err := asString(args[2])
		if err != nil {
			return nil, fmt.Errorf("myvector_distance: %w", err)
		}
		if metric, err = vector.ParseMetric(name); err != nil {
			return nil, fmt.Errorf("myvector_distance: %w", err)
		}
	}
	d, err := metric.Distance(a, b)
	if err != nil {
		return nil, fmt.Errorf("myvector_distance: %w", err)
	}
	return d, nil
}

// displayImpl implements myvector_display(v[, precision]).
func displayImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if blob, ok := args[0].([]byte); ok && vector.IsBinaryValue(blob) {
		b, err := vector.DecodeBinary(blob)
		if err != nil {
			return nil, fmt.Errorf("myvector_display: %w", err)
		}
		return b.String(), nil
	}
	v, err := vector.FromValue(args[0])
	if err != nil {
		return nil, fmt.Errorf("myvector_display: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	precision := current().settings.Precision
	if len(args) == 2 && args[1] != nil {
		p, err := asInt(args[1])
		if err != nil {
			return nil, fmt.Errorf("myvector_display: %w", err)
		}
		precision = int(p)
	}
	return vector.Format(v, precision), nil
}

// dimImpl implements myvector_dim(v); binary vectors report their bit count.
func dimImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if blob, ok := args[0].([]byte); ok && vector.IsBinaryValue(blob) {
		b, err := vector.DecodeBinary(blob)
		if err != nil {
			return nil, fmt.Errorf("myvector_dim: %w", err)
		}
		return int64(b.Bits), nil
	}
	v, err := vector.FromValue(args[0])
	if err != nil {
		return nil, fmt.Errorf("myvector_dim: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	return int64(len(v)), nil
}

// hammingImpl implements myvector_hamming_distance(bv1, bv2).
func hammingImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	a, err := asBinary(args[0])
	if err != nil {
		return nil, fmt.Errorf("myvector_hamming_distance: %w", err)
	}
	b, err := asBinary(args[1])
	if err != nil {
		return nil, fmt.Errorf("myvector_hamming_distance: %w", err)
	}
	n, err := vector.Hamming(a, b)
	if err != nil {
		return nil, fmt.Errorf("myvector_hamming_distance: %w", err)
	}
	return int64(n), nil
}

func asBinary(arg driver.Value) (vector.BinaryVector, error) {
	switch v := arg.(type) {
	case []byte:
		return vector.DecodeBinary(v)
	case string:
		return vector.ParseBinary(v)
	}
	return vector.BinaryVector{}, fmt.Errorf("%w: unsupported binary vector type %T", vector.ErrInvalidArgument, arg)
}

// annSetImpl implements myvector_ann_set(name, id_column, v[, options]) and
// returns the nearest ids as a JSON array.
func annSetImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	b := current()
	if b.registry == nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", ErrUnbound)
	}
	if args[2] == nil {
		return nil, nil
	}
	name, err := asString(args[0])
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	idColumn, err := asString(args[1])
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	c, err := b.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	if !strings.EqualFold(idColumn, c.IDColumn()) {
		return nil, fmt.Errorf("myvector_ann_set: %w: index %s is keyed by %s, not %s", vector.ErrInvalidArgument, c.Name(), c.IDColumn(), idColumn)
	}
	q, err := vector.FromValue(args[2])
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	var options string
	if len(args) == 4 && args[3] != nil {
		if options, err = asString(args[3]); err != nil {
			return nil, fmt.Errorf("myvector_ann_set: %w", err)
		}
	}
	so, err := collection.ParseSearchOptions(options, b.settings.DefaultNN, b.settings.MaxNN)
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	results, err := c.SearchWith(q, so)
	if err != nil {
		return nil, fmt.Errorf("myvector_ann_set: %w", err)
	}
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// indexInsertImpl implements myvector_index_insert(name, id, v). A NULL
// vector removes id. It returns 1.
func indexInsertImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	c, id, err := target("myvector_index_insert", args)
	if err != nil {
		return nil, err
	}
	v, err := vector.FromValue(args[2])
	if err != nil {
		return nil, fmt.Errorf("myvector_index_insert: %w", err)
	}
	if v == nil {
		c.Remove(id)
		return int64(1), nil
	}
	if err := c.Insert(id, v); err != nil {
		return nil, fmt.Errorf("myvector_index_insert: %w", err)
	}
	return int64(1), nil
}

// indexRemoveImpl implements myvector_index_remove(name, id) and returns 1
// when id was indexed.
func indexRemoveImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	c, id, err := target("myvector_index_remove", args)
	if err != nil {
		return nil, err
	}
	if c.Remove(id) {
		return int64(1), nil
	}
	return int64(0), nil
}

func target(fn string, args []driver.Value) (*collection.Collection, int64, error) {
	b := current()
	if b.registry == nil {
		return nil, 0, fmt.Errorf("%s: %w", fn, ErrUnbound)
	}
	name, err := asString(args[0])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", fn, err)
	}
	c, err := b.registry.Get(name)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", fn, err)
	}
	id, err := asInt(args[1])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", fn, err)
	}
	return c, id, nil
}

func asString(v driver.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("%w: unexpected NULL", vector.ErrInvalidArgument)
	default:
		return "", fmt.Errorf("%w: unsupported text type %T", vector.ErrInvalidArgument, v)
	}
}

func asInt(v driver.Value) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("%w: %v is not an integer", vector.ErrInvalidArgument, val)
		}
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", vector.ErrInvalidArgument, val)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%w: unexpected NULL", vector.ErrInvalidArgument)
	default:
		return 0, fmt.Errorf("%w: unsupported integer type %T", vector.ErrInvalidArgument, v)
	}
}
