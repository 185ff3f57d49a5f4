package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyface-de/cyup/pkg/ccyf"
)

func newInspectCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <measurement-id>",
		Short: "Encode a measurement and summarize the transfer payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := openServices(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			m, err := svc.store.Load(cmd.Context(), ids[0])
			if err != nil {
				return err
			}

			compressed, err := ccyf.SerializeCompressed(m)
			if err != nil {
				return err
			}
			raw, err := ccyf.Decompress(compressed)
			if err != nil {
				return err
			}
			payload, err := ccyf.Deserialize(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "measurement     %d (finished=%t synchronized=%t)\n", m.ID, m.Finished, m.Synchronized)
			fmt.Fprintf(out, "tracks          %d\n", len(m.Tracks))
			fmt.Fprintf(out, "format version  %d\n", payload.Version)
			fmt.Fprintf(out, "locations       %d\n", len(payload.Locations))
			fmt.Fprintf(out, "accelerations   %d\n", len(payload.Accelerations))
			fmt.Fprintf(out, "payload         %d bytes raw, %d bytes compressed\n", len(raw), len(compressed))
			if n := len(payload.Locations); n > 0 {
				first, last := payload.Locations[0], payload.Locations[n-1]
				fmt.Fprintf(out, "start           %.6f,%.6f at %s\n", first.Latitude, first.Longitude,
					time.UnixMilli(first.Timestamp).UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "end             %.6f,%.6f at %s\n", last.Latitude, last.Longitude,
					time.UnixMilli(last.Timestamp).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}
