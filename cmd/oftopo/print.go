package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/newtron-network/oftopo/pkg/cli"
	"github.com/newtron-network/oftopo/pkg/statedb"
)

// printSnapshot writes snap as tables, or as indented JSON with asJSON.
func printSnapshot(w io.Writer, snap *statedb.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if len(snap.Switches) == 0 {
		fmt.Fprintln(w, "No switches")
		return nil
	}

	fmt.Fprintln(w, cli.Bold("Switches"))
	t := cli.NewTable("DPID", "STATUS", "CAPABILITIES", "PORTS").WithWriter(w).WithPrefix("  ")
	for _, sw := range snap.Switches {
		state := "connected"
		if !sw.Connected {
			state = "reconnecting"
		}
		t.Row(sw.DPID, cli.Status(state), sw.Capabilities, strconv.Itoa(sw.Ports))
	}
	t.Flush()

	if len(snap.Ports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.Bold("Ports"))
		t = cli.NewTable("SWITCH", "PORT", "NAME", "ADMIN", "OPER", "NEIGHBORS").WithWriter(w).WithPrefix("  ")
		for _, p := range snap.Ports {
			neighbors := cli.Dim("-")
			if len(p.Neighbors) > 0 {
				neighbors = strings.Join(p.Neighbors, ", ")
			}
			t.Row(p.Switch, strconv.Itoa(p.Number), p.Name, cli.Status(p.AdminStatus), cli.Status(p.OperStatus), neighbors)
		}
		t.Flush()
	}

	if len(snap.Links) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.Bold("Links"))
		t = cli.NewTable("END A", "END B").WithWriter(w).WithPrefix("  ")
		for _, l := range snap.Links {
			t.Row(fmt.Sprintf("%s:%d", l.DPID1, l.Port1), fmt.Sprintf("%s:%d", l.DPID2, l.Port2))
		}
		t.Flush()
	}
	return nil
}
