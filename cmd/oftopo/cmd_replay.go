package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/oftopo/pkg/cli"
	"github.com/newtron-network/oftopo/pkg/feed"
	"github.com/newtron-network/oftopo/pkg/statedb"
)

var replayCmd = &cobra.Command{
	Use:   "replay SCENARIO.yaml...",
	Short: "Replay scenarios on a manual clock",
	Long: `Replay YAML scenarios deterministically. Time only moves on "advance"
steps, so reconnect timeouts fire exactly when the scenario says.
"expect" steps check the topology; the first failing step stops the
scenario.

Examples:
  oftopo replay pkg/feed/testdata/reconnect.yaml
  oftopo replay --json scenarios/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			sc, err := feed.ParseScenario(path)
			if err != nil {
				return err
			}

			// Each scenario gets fresh consumers; the mirror is cleared on open.
			k, err := openSinks(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			r, err := feed.Replay(sc, cfg.AdaptorConfig(), k.attach)
			k.close()
			result := cli.Green("PASS")
			if err != nil {
				result = cli.Red("FAIL")
				failed++
			}
			if !jsonOutput {
				fmt.Fprintf(out, "%s %s\n", cli.DotPad(sc.Name, 40), result)
				if err != nil {
					fmt.Fprintf(out, "  %v\n", err)
				}
			}
			if r != nil {
				if err := printSnapshot(out, statedb.Capture(r.Adaptor()), jsonOutput); err != nil {
					return err
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
		}
		return nil
	},
}
