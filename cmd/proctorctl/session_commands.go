package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"proctor/internal/api"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Start and end monitoring sessions",
	}

	sessionCmd.AddCommand(newSessionStartCommand(ctx))
	sessionCmd.AddCommand(newSessionEndCommand(ctx))

	return sessionCmd
}

func newSessionStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <candidate-id>",
		Short: "Start a monitoring session for a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid candidate id %q", args[0])
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}

			var resp api.SessionResponse
			if err := client.post(cmd.Context(), "/api/session/start", api.SessionStartRequest{CandidateID: id}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %d started for candidate %d\n", resp.Session.ID, id)
			return nil
		},
	}
}

func newSessionEndCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a monitoring session",
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

			var resp api.SessionResponse
			if err := client.post(cmd.Context(), "/api/session/end", api.SessionEndRequest{SessionID: id}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %d ended (verdict: %s, score: %.1f)\n",
				resp.Session.ID, resp.Session.Verdict, resp.Session.SuspicionScore)
			return nil
		},
	}
}
