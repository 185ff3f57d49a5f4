package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cyface-de/cyup/internal/app"
	"github.com/cyface-de/cyup/internal/domain"
)

func newUploadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <measurement-id>...",
		Short: "Upload the given measurements now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openServices(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			tokens, _, err := svc.tokens()
			if err != nil {
				return err
			}
			syncer, err := svc.syncer(app.SyncerConfig{Once: true}, tokens, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, id := range ids {
				upload, err := syncer.SyncMeasurement(ctx, id)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "%d\tfailed\t%v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%d\t%s\t%d bytes, %d failed attempts\n",
					id, upload.Status, upload.PayloadSize, upload.FailedUploadsCounter)
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d measurement(s)", domain.ErrUploadFailed, failed, len(ids))
			}
			return nil
		},
	}
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid measurement id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
