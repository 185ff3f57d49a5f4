package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
)

// SyncerConfig contains configuration for the synchronization loop.
type SyncerConfig struct {
	PollInterval time.Duration

	// Concurrency bounds how many measurements upload at the same time.
	Concurrency int

	// Once processes the current backlog and returns.
	Once bool
}

// UploadEventEmitter is called after each measurement upload.
type UploadEventEmitter interface {
	OnUploadSuccess(measurementID uint64, bytes int, failedAttempts int, duration time.Duration)
	OnUploadFailure(measurementID uint64, err error, failedAttempts int)
}

// Summary counts the outcomes of one synchronization pass.
type Summary struct {
	Succeeded int
	Failed    int
}

// Syncer uploads every finished, unsynchronized measurement of the store
// and marks it synchronized once the collector confirmed it.
type Syncer struct {
	config  SyncerConfig
	store   ports.MeasurementStore
	process *Process
	tokens  ports.TokenSource
	logger  ports.Logger
	emitter UploadEventEmitter
}

// NewSyncer creates a new syncer with the given dependencies.
// emitter may be nil.
func NewSyncer(
	config SyncerConfig,
	store ports.MeasurementStore,
	process *Process,
	tokens ports.TokenSource,
	logger ports.Logger,
	emitter UploadEventEmitter,
) *Syncer {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	return &Syncer{
		config:  config,
		store:   store,
		process: process,
		tokens:  tokens,
		logger:  logger,
		emitter: emitter,
	}
}

// Run executes synchronization passes until the context is canceled.
// With Once set it returns after the first pass.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		summary, err := s.SyncOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.config.Once {
				return err
			}
			s.logger.Error("synchronization pass failed", ports.Err(err))
		} else if summary.Succeeded+summary.Failed > 0 {
			s.logger.Info("synchronization pass done",
				ports.Int("succeeded", summary.Succeeded),
				ports.Int("failed", summary.Failed),
			)
		}

		if s.config.Once {
			if summary.Failed > 0 {
				return fmt.Errorf("%w: %d measurement(s)", domain.ErrUploadFailed, summary.Failed)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.PollInterval):
		}
	}
}

// SyncOnce uploads the current backlog with bounded concurrency.
func (s *Syncer) SyncOnce(ctx context.Context) (Summary, error) {
	ids, err := s.store.ListUnsynchronized(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list unsynchronized: %w", err)
	}

	var (
		mu      sync.Mutex
		summary Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.SyncMeasurement(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
			// Cancellation stops the pass; other failures only count.
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	return summary, err
}

// SyncMeasurement uploads one measurement and marks it synchronized on
// success. A rejected token is refreshed once before giving up.
func (s *Syncer) SyncMeasurement(ctx context.Context, id uint64) (*Upload, error) {
	m, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load measurement %d: %w", id, err)
	}

	start := time.Now()
	upload, err := s.upload(ctx, m)
	if err == nil && !upload.Succeeded() {
		err = upload.LastError
	}
	if err != nil {
		attempts := 0
		fields := []ports.Field{ports.Uint64("measurement", id)}
		if upload != nil {
			attempts = upload.FailedUploadsCounter
			if e := upload.LastEvent(); e != nil {
				fields = append(fields, ports.String("last_event", e.Message+e.Error))
			}
		}
		fields = append(fields, ports.Int("failed_attempts", attempts), ports.Err(err))
		s.logger.Warn("measurement not uploaded", fields...)
		if s.emitter != nil {
			s.emitter.OnUploadFailure(id, err, attempts)
		}
		return upload, err
	}

	if err := s.store.MarkSynchronized(ctx, id); err != nil {
		return upload, fmt.Errorf("mark measurement %d synchronized: %w", id, err)
	}
	if s.emitter != nil {
		s.emitter.OnUploadSuccess(id, upload.PayloadSize, upload.FailedUploadsCounter, time.Since(start))
	}
	return upload, nil
}

func (s *Syncer) upload(ctx context.Context, m domain.Measurement) (*Upload, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	upload, err := s.process.Upload(ctx, m, token)
	if !errors.Is(err, domain.ErrUnauthorized) {
		return upload, err
	}

	s.logger.Info("token rejected, refreshing", ports.Uint64("measurement", m.ID))
	if rerr := s.tokens.Refresh(ctx); rerr != nil {
		return upload, fmt.Errorf("%w (refresh failed: %v)", err, rerr)
	}
	token, terr := s.tokens.Token(ctx)
	if terr != nil {
		return upload, fmt.Errorf("token: %w", terr)
	}
	return s.process.Upload(ctx, m, token)
}
