package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"proctor/internal/api"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var activeOnly bool
	var blockedOnly bool
	var candidateID int64

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List monitoring sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			path := "/api/sessions?"
			if activeOnly {
				path += "active=1&"
			}
			if blockedOnly {
				path += "blocked=1&"
			}
			if candidateID > 0 {
				path += "candidate=" + strconv.FormatInt(candidateID, 10)
			}

			var resp api.SessionListResponse
			if err := client.get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
			} else {
				fmt.Fprintln(out, renderSessionsTable(resp.Sessions))
			}
			fmt.Fprintf(out, "Candidates: %d  Active: %d  Suspicious: %d  Clean: %d\n",
				resp.Stats.TotalCandidates,
				resp.Stats.ActiveSessions,
				resp.Stats.SuspiciousCount,
				resp.Stats.CleanActiveCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active sessions")
	cmd.Flags().BoolVar(&blockedOnly, "blocked", false, "Only show blocked sessions")
	cmd.Flags().Int64Var(&candidateID, "candidate", 0, "Only show sessions for one candidate")

	return cmd
}

func renderSessionsTable(snapshots []api.SessionSnapshot) string {
	tty := stdoutIsTerminal()

	rows := make([][]string, 0, len(snapshots))
	for _, snap := range snapshots {
		state := "ended"
		if snap.Session.Active {
			state = "active"
		}
		lastEvent := snap.LastEventType
		if lastEvent == "" {
			lastEvent = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(snap.Session.ID, 10),
			snap.CandidateName,
			snap.RollNumber,
			state,
			colorizeVerdict(snap.Session.Verdict, tty),
			fmt.Sprintf("%.1f", snap.Session.SuspicionScore),
			strconv.Itoa(snap.EventCount),
			lastEvent,
		})
	}

	return renderTable(
		[]string{"ID", "Candidate", "Roll", "State", "Verdict", "Score", "Events", "Last Event"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
