package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{key: "storage.dsn", typ: kString, env: "MYVECTOR_STORAGE_DSN",
		apply: func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) }},
	{key: "index.dir", typ: kString, env: "MYVECTOR_INDEX_DIR",
		apply: func(cfg *Config, v any) { cfg.Index.Dir = v.(string) }},
	{key: "index.compression", typ: kString, env: "MYVECTOR_INDEX_COMPRESSION",
		apply: func(cfg *Config, v any) { cfg.Index.Compression = v.(string) }},
	{key: "index.min_recall", typ: kFloat, env: "MYVECTOR_INDEX_MIN_RECALL",
		apply: func(cfg *Config, v any) { cfg.Index.MinRecall = v.(float64) }},
	{key: "index.recall_sample", typ: kInt, env: "MYVECTOR_INDEX_RECALL_SAMPLE",
		apply: func(cfg *Config, v any) { cfg.Index.RecallSample = v.(int) }},
	{key: "index.build_rows_per_sec", typ: kInt, env: "MYVECTOR_INDEX_BUILD_ROWS_PER_SEC",
		apply: func(cfg *Config, v any) { cfg.Index.BuildRowsPerSec = v.(int) }},
	{key: "search.default_nn", typ: kInt, env: "MYVECTOR_SEARCH_DEFAULT_NN",
		apply: func(cfg *Config, v any) { cfg.Search.DefaultNN = v.(int) }},
	{key: "search.max_nn", typ: kInt, env: "MYVECTOR_SEARCH_MAX_NN",
		apply: func(cfg *Config, v any) { cfg.Search.MaxNN = v.(int) }},
	{key: "display.precision", typ: kInt, env: "MYVECTOR_DISPLAY_PRECISION",
		apply: func(cfg *Config, v any) { cfg.Display.Precision = v.(int) }},
	{key: "log.level", typ: kString, env: "MYVECTOR_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) }},
	{key: "snapshot.minio.endpoint", typ: kString, env: "MYVECTOR_MINIO_ENDPOINT",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.Endpoint = v.(string) }},
	{key: "snapshot.minio.access_key", typ: kString, env: "MYVECTOR_MINIO_ACCESS_KEY",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.AccessKey = v.(string) }},
	{key: "snapshot.minio.secret_key", typ: kString, env: "MYVECTOR_MINIO_SECRET_KEY",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.SecretKey = v.(string) }},
	{key: "snapshot.minio.bucket", typ: kString, env: "MYVECTOR_MINIO_BUCKET",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.Bucket = v.(string) }},
	{key: "snapshot.minio.prefix", typ: kString, env: "MYVECTOR_MINIO_PREFIX",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.Prefix = v.(string) }},
	{key: "snapshot.minio.secure", typ: kBool, env: "MYVECTOR_MINIO_SECURE",
		apply: func(cfg *Config, v any) { cfg.Snapshot.Minio.Secure = v.(bool) }},
}

func applyBackend(cfg *Config, b backend) error {
	for _, s := range specs {
		var (
			v   any
			ok  bool
			err error
		)
		switch s.typ {
		case kString:
			v, ok, err = b.GetString(s.key)
		case kInt:
			v, ok, err = b.GetInt(s.key)
		case kBool:
			v, ok, err = b.GetBool(s.key)
		case kFloat:
			v, ok, err = b.GetFloat(s.key)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using configured value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using configured value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using configured value.\n", s.env, raw, err)
			}
		}
	}
}
