package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyface-de/cyup/internal/domain"
)

func newSessionsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage registered upload sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered upload sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			sessions, err := svc.registry.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MEASUREMENT\tCREATED\tEVENTS\tLAST\tLOCATION")
			for _, s := range sessions {
				last := describeEvent(s.LastEvent())
				location := s.Location
				if location == "" {
					location = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
					s.MeasurementID, s.CreatedAt.Local().Format(time.DateTime), len(s.Events), last, location)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <measurement-id>",
		Short: "Print a session with its protocol log as JSON",
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

			s, ok, err := svc.registry.Get(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no session for measurement %d", ids[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drop <measurement-id>...",
		Short: "Forget sessions so the next upload starts with a pre-request",
		Args:  cobra.MinimumNArgs(1),
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

			for _, id := range ids {
				if err := svc.registry.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %d\n", id)
			}
			return nil
		},
	})

	return cmd
}

// describeEvent renders the LAST column of "sessions list".
func describeEvent(e *domain.Event) string {
	switch {
	case e == nil:
		return "-"
	case e.Error != "":
		return fmt.Sprintf("%s error (failed)", e.RequestType)
	case e.Failed():
		return fmt.Sprintf("%s %d (failed)", e.RequestType, e.StatusCode)
	default:
		return fmt.Sprintf("%s %d", e.RequestType, e.StatusCode)
	}
}
