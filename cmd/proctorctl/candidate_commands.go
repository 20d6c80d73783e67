package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"proctor/internal/api"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var framePath string

	cmd := &cobra.Command{
		Use:   "register <name> <roll-number>",
		Short: "Enroll a candidate, optionally with a reference photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.RegisterRequest{Name: args[0], RollNumber: args[1]}
			if path := strings.TrimSpace(framePath); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read reference photo: %w", err)
				}
				req.Frame = base64.StdEncoding.EncodeToString(data)
			}

			var resp api.RegisterResponse
			if err := client.post(cmd.Context(), "/api/register", req, &resp); err != nil {
				return err
			}

			enrolled := "no reference face"
			if resp.Candidate.Enrolled {
				enrolled = "reference face enrolled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered candidate %d (%s, %s): %s\n",
				resp.Candidate.ID, resp.Candidate.Name, resp.Candidate.RollNumber, enrolled)
			return nil
		},
	}

	cmd.Flags().StringVar(&framePath, "photo", "", "Path to a reference photo used for identity checks")

	return cmd
}

func newBlockCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block <candidate-id>",
		Short: "Block a candidate and close their active sessions",
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
			if err := client.post(cmd.Context(), "/api/block", api.BlockRequest{CandidateID: id, Reason: reason}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d blocked\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the block")

	return cmd
}

func newUnblockCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <candidate-id>",
		Short: "Clear a candidate's block",
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
			if err := client.post(cmd.Context(), "/api/unblock", api.UnblockRequest{CandidateID: id}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d unblocked\n", id)
			return nil
		},
	}
}
