package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var configFlag string

	ctx := newCommandContext(&serverFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "proctorctl",
		Short:         "Operator CLI for the proctoring daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon API address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRegisterCommand(ctx))
	rootCmd.AddCommand(newSessionCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))
	rootCmd.AddCommand(newBlockCommand(ctx))
	rootCmd.AddCommand(newUnblockCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
