package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/oftopo/pkg/statedb"
)

var (
	showAddr string
	showDB   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the topology mirrored in Redis",
	Long: `Read SWITCH_TABLE, PORT_TABLE and LINK_TABLE from the Redis mirror
written by a running adaptor.

Examples:
  oftopo show
  oftopo show --addr 10.0.0.5:6379 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cfg.StateDBOptions()
		if cmd.Flags().Changed("addr") {
			opts.Addr = showAddr
		}
		if cmd.Flags().Changed("db") {
			opts.DB = showDB
		}
		if opts.Addr == "" && opts.SSHHost == "" {
			opts.Addr = statedb.DefaultRemoteAddr
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client, err := statedb.Dial(ctx, opts)
		if err != nil {
			return err
		}
		defer client.Close()

		snap, err := client.Snapshot(ctx)
		if err != nil {
			return err
		}
		return printSnapshot(cmd.OutOrStdout(), snap, jsonOutput)
	},
}

func init() {
	showCmd.Flags().StringVar(&showAddr, "addr", "", "Redis address (default from settings, else 127.0.0.1:6379)")
	showCmd.Flags().IntVar(&showDB, "db", statedb.DefaultDB, "Redis database")
}
