package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/viant/myvector/admin"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/engine"
	"github.com/viant/myvector/internal/config"
	"github.com/viant/myvector/search"
	"github.com/viant/myvector/snapshot"
	"github.com/viant/myvector/snapshot/minio"
)

// app holds the resources shared by commands that touch the database.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	registry *collection.Registry
}

type globalFlags struct {
	configPath string
	dsn        string
	logLevel   string
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.dsn != "" {
		cfg.Storage.DSN = flags.dsn
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func openSnapshots(ctx context.Context, cfg config.Config) (snapshot.Store, error) {
	if m := cfg.Snapshot.Minio; m.Enabled() {
		return minio.Connect(ctx, minio.Config{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
			Secure:    m.Secure,
		})
	}
	return snapshot.NewLocalStore(cfg.Index.Dir)
}

// openApp opens the database, registers the SQL surface and reloads every
// saved index.
func openApp(ctx context.Context, flags *globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}
	compression, err := snapshot.ParseCompression(cfg.Index.Compression)
	if err != nil {
		return nil, err
	}
	store, err := openSnapshots(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	if err := engine.RegisterFunctions(); err != nil {
		return nil, err
	}
	db, err := engine.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Storage.DSN, err)
	}
	opts := []collection.Option{
		collection.WithLogger(logger),
		collection.WithSnapshotStore(store, compression),
		collection.WithMinRecall(cfg.Index.MinRecall),
		collection.WithRecallSample(cfg.Index.RecallSample),
	}
	if cfg.Index.BuildRowsPerSec > 0 {
		opts = append(opts, collection.WithBuildRate(cfg.Index.BuildRowsPerSec))
	}
	reg := collection.New(db, opts...)
	if err := search.Register(db.DB, reg, search.WithDefaultK(cfg.Search.DefaultNN), search.WithMaxK(cfg.Search.MaxNN)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := admin.Register(db.DB, reg, admin.WithContext(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}
	engine.Bind(reg, engine.Settings{
		DefaultNN: cfg.Search.DefaultNN,
		MaxNN:     cfg.Search.MaxNN,
		Precision: cfg.Display.Precision,
	})
	loaded, err := reg.OpenAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading indexes: %w", err)
	}
	logger.Debug("indexes loaded", "names", loaded)
	return &app{cfg: cfg, logger: logger, db: db, registry: reg}, nil
}

func (a *app) Close() error { return a.db.Close() }
