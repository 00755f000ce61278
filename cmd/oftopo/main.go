// Oftopo - OpenFlow topology adaptor
//
// Tracks OpenFlow switches, their ports and the links between them, and
// keeps a switch's identity across short control-channel outages.
//
// Events come from a JSON-lines stream (one step per line), or from a YAML
// scenario replayed on a manual clock:
//
//	oftopo run --events session.jsonl          # live run, wall clock
//	tail -f events.jsonl | oftopo run --hold   # keep running after EOF
//	oftopo replay scenarios/links.yaml         # deterministic replay
//	oftopo show                                # read the Redis mirror
//	oftopo journal --dpid 00-00-00-00-00-01    # query the journal
//
// Settings are read from ~/.oftopo/settings.yaml unless --config is given.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/oftopo/pkg/settings"
	"github.com/newtron-network/oftopo/pkg/util"
	"github.com/newtron-network/oftopo/pkg/version"
)

var (
	settingsPath     string
	verbose          bool
	jsonOutput       bool
	reconnectTimeout time.Duration

	cfg *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "oftopo",
	Short:             "OpenFlow topology adaptor",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Oftopo tracks OpenFlow switches, ports and links.

A switch that loses its control connection keeps its identity, ports and
links until the reconnect timeout expires.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		if settingsPath != "" {
			cfg, err = settings.LoadFrom(settingsPath)
		} else {
			cfg, err = settings.Load()
		}
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		if cmd.Flags().Changed("reconnect-timeout") {
			cfg.ReconnectTimeout = reconnectTimeout
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		if err := cfg.ApplyLogging(); err != nil {
			return err
		}
		if verbose {
			util.SetLogLevel("debug")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "Settings file (default ~/.oftopo/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().DurationVar(&reconnectTimeout, "reconnect-timeout", 0, "Override the reconnect grace window")

	for _, cmd := range []*cobra.Command{runCmd, replayCmd, showCmd, journalCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "adaptor", Title: "Adaptor:"},
		&cobra.Group{ID: "query", Title: "Queries:"},
		&cobra.Group{ID: "meta", Title: "Meta:"},
	)
	for _, cmd := range []*cobra.Command{runCmd, replayCmd} {
		cmd.GroupID = "adaptor"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{showCmd, journalCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	versionCmd.GroupID = "meta"
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Fprintln(cmd.OutOrStdout(), "oftopo dev build (set version info with -ldflags, see pkg/version)")
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "oftopo %s\n", version.Info())
	},
}
