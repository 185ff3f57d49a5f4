package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cyface-de/cyup/internal/adapters/metrics"
	"github.com/cyface-de/cyup/internal/app"
	"github.com/cyface-de/cyup/pkg/log"
)

func newSyncCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload all finished measurements, polling for new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, c)
		},
	}

	cmd.Flags().DurationVar(&c.cfg.PollInterval, "poll", c.cfg.PollInterval, "interval between synchronization passes")
	cmd.Flags().IntVar(&c.cfg.Concurrency, "concurrency", c.cfg.Concurrency, "measurements uploaded in parallel")
	cmd.Flags().StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9100)")
	cmd.Flags().BoolVar(&c.cfg.Once, "once", c.cfg.Once, "upload the current backlog and exit")
	return cmd
}

func runSync(ctx context.Context, c *cli) error {
	svc, err := openServices(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	tokens, tokenFile, err := svc.tokens()
	if err != nil {
		return err
	}
	m := metrics.New()
	syncer, err := svc.syncer(app.SyncerConfig{
		PollInterval: c.cfg.PollInterval,
		Concurrency:  c.cfg.Concurrency,
		Once:         c.cfg.Once,
	}, tokens, m)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if tokenFile != nil {
		g.Go(func() error { return tokenFile.Watch(gctx) })
	}

	if c.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: c.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			c.logger.Info("serving metrics", log.String("addr", c.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		c.logger.Info("synchronization started",
			log.String("endpoint", c.cfg.Endpoint),
			log.Bool("once", c.cfg.Once),
		)
		err := syncer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			c.logger.Info("received signal, stopping")
			return nil
		}
		return err
	})

	return g.Wait()
}
