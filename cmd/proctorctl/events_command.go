package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"proctor/internal/api"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "events <session-id>",
		Short: "Show the event log for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}

			var resp api.EventListResponse
			if err := client.get(cmd.Context(), fmt.Sprintf("/api/sessions/%d/events", id), &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Events) == 0 {
				fmt.Fprintln(out, "No events recorded.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Events))
			for _, event := range resp.Events {
				evidence := "-"
				if event.EvidencePath != "" {
					evidence = event.EvidencePath
				}
				rows = append(rows, []string{
					strconv.FormatInt(event.ID, 10),
					event.Timestamp,
					event.Type,
					event.Details,
					fmt.Sprintf("%.1f", event.Score),
					evidence,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Timestamp", "Type", "Details", "Score", "Evidence"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
