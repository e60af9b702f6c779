package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence"
	"github.com/DanielPopoola/openapi-testflow/internal/persistence/postgres"
	"github.com/DanielPopoola/openapi-testflow/internal/session"
	"github.com/DanielPopoola/openapi-testflow/internal/testdata"
	"github.com/DanielPopoola/openapi-testflow/internal/transport"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	data     *testdata.Store
	client   *transport.Client
	sessions *session.Store
	cache    *persistence.Cache
	store    *persistence.Store
	runState *persistence.RunStateFile
	db       *postgres.DB
	out      io.Writer
}

func newApp(ctx context.Context, opts *rootOptions, out io.Writer) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("FLOW_CONFIG_FILE")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logger.Level = opts.logLevel
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	data, err := testdata.Open(cfg.Paths.TestData...)
	if err != nil {
		return nil, err
	}

	var clientOpts []transport.Option
	if cfg.Paths.RecordCSV != "" {
		clientOpts = append(clientOpts, transport.WithRecorder(transport.NewRecorder(cfg.Paths.RecordCSV, logger)))
	}
	client, err := transport.NewClient(cfg.Transport, logger, clientOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		data:     data,
		client:   client,
		sessions: session.NewStore(cfg.Paths.SessionKeys, cfg.Session, data, transport.NewRetrySender(client, cfg.Transport, logger), logger),
		cache:    persistence.NewCache(cfg.Paths.Cache, clock.Real{}, logger),
		runState: persistence.NewRunStateFile(cfg.Paths.RunState),
		out:      out,
	}

	var backend persistence.Backend = persistence.NewFileBackend(cfg.Paths.Store)
	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		backend = postgres.NewBackend(db)
	}
	a.store = persistence.NewStore(backend, clock.Real{}, logger)

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
