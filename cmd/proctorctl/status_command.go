package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"proctor/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var resp api.StatusResponse
			if err := client.get(cmd.Context(), "/api/status", &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:      %t (pid %d)\n", resp.Running, resp.PID)
			fmt.Fprintf(out, "Uptime:       %s\n", resp.Uptime)
			fmt.Fprintf(out, "Database:     %s\n", resp.DBPath)
			fmt.Fprintf(out, "Evidence dir: %s\n", resp.EvidenceDir)
			fmt.Fprintf(out, "Lock file:    %s\n", resp.LockFilePath)
			fmt.Fprintf(out, "Pool:         %d workers, queue %d, pending %d\n",
				resp.Pool.Workers, resp.Pool.QueueDepth, resp.Pool.Pending)

			if len(resp.Checks) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Checks:")
				for _, check := range resp.Checks {
					mark := "ok"
					if !check.Passed {
						mark = "FAIL"
					}
					fmt.Fprintf(out, "  [%-4s] %s", mark, check.Name)
					if check.Detail != "" {
						fmt.Fprintf(out, " (%s)", check.Detail)
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}
