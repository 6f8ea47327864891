package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"fieldreport/internal/api"
)

func newDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Deliver queued reports now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			summary, err := client.Drain(cmd.Context())
			switch {
			case err == nil:
			case api.StatusCode(err) == http.StatusServiceUnavailable:
				return errors.New("daemon has no offline queue (persistent storage disabled)")
			case !api.IsUnavailable(err):
				return err
			default:
				local, online, localErr := localDrain(cmd.Context(), cfg, ctx.localLogger(cfg))
				if errors.Is(localErr, errQueueLocked) {
					return fmt.Errorf("%w; is the daemon running with a different api_bind?", localErr)
				}
				if !online {
					if localErr != nil {
						return localErr
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Report server unreachable; queue left intact")
					return nil
				}
				summary = api.FromDrainSummary(local)
				err = localErr
			}

			if ctx.JSONMode() {
				if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			printDrainSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}
}

func printDrainSummary(out io.Writer, s api.DrainSummary) {
	if s.Skipped {
		fmt.Fprintln(out, "A drain is already in progress")
		return
	}
	if s.Visited == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprintf(out, "Delivered %d of %d report(s)\n", s.Delivered, s.Visited)
	if s.Rejected > 0 {
		fmt.Fprintf(out, "Rejected: %d (%d newly parked)\n", s.Rejected, s.NewlyParked)
	}
	if s.TransportFailures > 0 {
		fmt.Fprintf(out, "Transport failures: %d (kept for the next pass)\n", s.TransportFailures)
	}
	if s.Deferred > 0 || s.Parked > 0 {
		fmt.Fprintf(out, "Waiting: %d backing off, %d parked\n", s.Deferred, s.Parked)
	}
	if s.Error != "" {
		fmt.Fprintf(out, "Stopped early: %s\n", s.Error)
	}
}
