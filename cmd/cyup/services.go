package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cyface-de/cyup/internal/adapters/fs"
	httpadapter "github.com/cyface-de/cyup/internal/adapters/http"
	"github.com/cyface-de/cyup/internal/adapters/memory"
	"github.com/cyface-de/cyup/internal/adapters/metrics"
	redisadapter "github.com/cyface-de/cyup/internal/adapters/redis"
	"github.com/cyface-de/cyup/internal/adapters/sqlite"
	"github.com/cyface-de/cyup/internal/app"
	"github.com/cyface-de/cyup/internal/cliconfig"
	"github.com/cyface-de/cyup/internal/ports"
	"github.com/cyface-de/cyup/pkg/log"
)

// services holds the adapters shared by the subcommands.
type services struct {
	cfg      cliconfig.Config
	logger   log.Logger
	db       *sqlite.DB
	store    *sqlite.MeasurementStore
	registry ports.SessionRegistry
	redis    *goredis.Client
}

func openServices(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (*services, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sqlite.Open(sqlite.Config{Path: cfg.Database, Logger: log.Named(logger, "sqlite")})
	if err != nil {
		return nil, err
	}
	s := &services{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  sqlite.NewMeasurementStore(db),
	}

	switch cfg.Registry {
	case cliconfig.RegistryMemory:
		s.registry = memory.NewRegistry()
	case cliconfig.RegistrySQLite:
		s.registry = sqlite.NewRegistry(db)
	case cliconfig.RegistryRedis:
		client, err := redisadapter.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.redis = client
		s.registry = redisadapter.NewRegistry(client, "")
	}
	logger.Debug("registry ready", log.String("kind", cfg.Registry))
	return s, nil
}

func (s *services) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// tokens returns the configured token source. The token file is non-nil
// when it should be watched.
func (s *services) tokens() (ports.TokenSource, *fs.TokenFile, error) {
	if s.cfg.TokenFile != "" {
		f, err := fs.NewTokenFile(s.cfg.TokenFile, log.Named(s.logger, "tokens"))
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	if s.cfg.AuthToken == "" {
		return nil, nil, fmt.Errorf("no credentials: set auth-token or token-file")
	}
	return ports.StaticToken(s.cfg.AuthToken), nil, nil
}

// syncer wires the upload process and returns a syncer over the store.
// m may be nil.
func (s *services) syncer(config app.SyncerConfig, tokens ports.TokenSource, m *metrics.Metrics) (*app.Syncer, error) {
	collector, err := httpadapter.NewCollector(
		httpadapter.NewHTTPClient(s.cfg.HTTPTimeout),
		s.cfg.Endpoint,
		log.Named(s.logger, "collector"),
	)
	if err != nil {
		return nil, err
	}

	deviceID, err := fs.DeviceID(s.cfg.StateDir)
	if err != nil {
		return nil, err
	}

	var (
		wrapped ports.Collector = collector
		emitter app.UploadEventEmitter
	)
	if m != nil {
		wrapped = m.WrapCollector(collector)
		emitter = m
	}

	process := app.NewProcess(app.ProcessConfig{
		MaxAttempts:    s.cfg.MaxAttempts,
		BackoffInitial: s.cfg.BackoffInitial,
		BackoffMax:     s.cfg.BackoffMax,
		MaxRetryAfter:  s.cfg.MaxRetryAfter,
		Device: app.DeviceInfo{
			ID:         deviceID,
			OSVersion:  runtime.GOOS,
			DeviceType: "cyup/" + runtime.GOARCH,
			AppVersion: getVersion(),
		},
	}, wrapped, s.registry, app.NewFactory(), log.Named(s.logger, "process"))

	return app.NewSyncer(config, s.store, process, tokens, log.Named(s.logger, "syncer"), emitter), nil
}
