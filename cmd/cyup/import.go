package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyface-de/cyup/internal/domain"
)

func newImportCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Store measurements from a JSON export for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			measurements, err := readMeasurements(args[0])
			if err != nil {
				return err
			}

			svc, err := openServices(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			for _, m := range measurements {
				if err := svc.store.Save(cmd.Context(), m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d (%d locations, %d accelerations)\n",
					m.ID, m.LocationCount(), m.AccelerationCount())
			}
			return nil
		},
	}
}

// readMeasurements accepts one measurement object or an array of them.
func readMeasurements(path string) ([]domain.Measurement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var ms []domain.Measurement
		if err := json.Unmarshal(data, &ms); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return ms, nil
	}
	var m domain.Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []domain.Measurement{m}, nil
}
