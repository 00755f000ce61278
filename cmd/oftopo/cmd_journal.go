package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/oftopo/pkg/cli"
	"github.com/newtron-network/oftopo/pkg/journal"
	"github.com/newtron-network/oftopo/pkg/openflow"
)

var (
	journalPath     string
	journalDPID     string
	journalType     string
	journalSeverity string
	journalLast     time.Duration
	journalLimit    int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the topology journal",
	Long: `Query the journal of switch, port and link changes.

Examples:
  oftopo journal --dpid 00-00-00-00-00-01
  oftopo journal --type link-removed --last 1h
  oftopo journal --severity error`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Journal.Path
		if journalPath != "" {
			path = journalPath
		}
		if path == "" {
			return fmt.Errorf("no journal configured: set journal.path or use --file")
		}

		filter := journal.Filter{
			Type:     journal.EventType(journalType),
			Severity: journal.Severity(journalSeverity),
			Limit:    journalLimit,
		}
		if journalDPID != "" {
			dpid, err := openflow.ParseDPID(journalDPID)
			if err != nil {
				return err
			}
			filter.Switch = dpid.String()
		}
		if journalLast > 0 {
			filter.StartTime = time.Now().Add(-journalLast)
		}

		events, err := journal.QueryFiles(journal.Files(path), filter)
		if err != nil {
			return fmt.Errorf("querying journal: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return json.NewEncoder(out).Encode(events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No journal events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "EVENT", "SWITCH", "PORT", "PEER", "DETAIL").WithWriter(out)
		for _, e := range events {
			port, peer := "", ""
			if e.Port != 0 {
				port = strconv.Itoa(e.Port)
				if e.PortName != "" {
					port += " (" + e.PortName + ")"
				}
			}
			if e.Peer != "" {
				peer = fmt.Sprintf("%s:%d", e.Peer, e.PeerPort)
			}
			t.Row(e.Timestamp.Local().Format("2006-01-02 15:04:05"), severity(e), e.Switch, port, peer, e.Detail)
		}
		t.Flush()
		return nil
	},
}

func severity(e *journal.Event) string {
	switch e.Severity {
	case journal.SeverityError:
		return cli.Red(string(e.Type))
	case journal.SeverityWarning:
		return cli.Yellow(string(e.Type))
	}
	return string(e.Type)
}

func init() {
	journalCmd.Flags().StringVarP(&journalPath, "file", "f", "", "Journal file (default from settings)")
	journalCmd.Flags().StringVar(&journalDPID, "dpid", "", "Filter by switch (either end of a link)")
	journalCmd.Flags().StringVar(&journalType, "type", "", "Filter by event type (e.g. switch-leave, link-removed)")
	journalCmd.Flags().StringVar(&journalSeverity, "severity", "", "Filter by severity (info, warning, error)")
	journalCmd.Flags().DurationVar(&journalLast, "last", 0, "Show events from the last duration (e.g. 24h)")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 100, "Maximum events to show")
}
