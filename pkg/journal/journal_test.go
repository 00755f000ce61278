package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/feed"
	"github.com/newtron-network/oftopo/pkg/oftopo"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newLogger(t *testing.T, rotation RotationConfig) *FileLogger {
	t.Helper()
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "journal.log"), rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestEvent_Chaining(t *testing.T) {
	e := NewEvent(t0, EventLinkAdded, "00-00-00-00-00-01").
		WithPort(3, "eth3").
		WithPeer("00-00-00-00-00-02", 1).
		WithSeverity(SeverityWarning).
		WithDetail("%s", "superseded")

	if e.Switch != "00-00-00-00-00-01" || e.Port != 3 || e.PortName != "eth3" {
		t.Errorf("switch/port = %q %d %q", e.Switch, e.Port, e.PortName)
	}
	if e.Peer != "00-00-00-00-00-02" || e.PeerPort != 1 {
		t.Errorf("peer = %q %d", e.Peer, e.PeerPort)
	}
	if e.Severity != SeverityWarning || e.Detail != "superseded" {
		t.Errorf("severity/detail = %q %q", e.Severity, e.Detail)
	}
	if e.ID == "" || !e.Timestamp.Equal(t0) {
		t.Errorf("ID = %q, Timestamp = %v", e.ID, e.Timestamp)
	}
	if other := NewEvent(t0, EventLinkAdded, ""); other.ID == e.ID {
		t.Error("events at the same instant share an ID")
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger := newLogger(t, RotationConfig{})

	events := []*Event{
		NewEvent(t0, EventSwitchJoin, "00-00-00-00-00-01"),
		NewEvent(t0.Add(time.Second), EventSwitchJoin, "00-00-00-00-00-02"),
		NewEvent(t0.Add(2*time.Second), EventLinkAdded, "00-00-00-00-00-01").WithPeer("00-00-00-00-00-02", 1),
		NewEvent(t0.Add(3*time.Second), EventProtocolViolation, "00-00-00-00-00-03").WithSeverity(SeverityError),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by switch", Filter{Switch: "00-00-00-00-00-01"}, 2},
		{"by switch includes peer", Filter{Switch: "00-00-00-00-00-02"}, 2},
		{"by type", Filter{Type: EventSwitchJoin}, 2},
		{"by severity", Filter{Severity: SeverityError}, 1},
		{"start time", Filter{StartTime: t0.Add(2 * time.Second)}, 2},
		{"end time", Filter{EndTime: t0}, 1},
		{"limit", Filter{Limit: 3}, 3},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d events, want %d", len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "journal.log")
	content := `{"type":"switch-join","dpid":"00-00-00-00-00-01"}
invalid json line
{"type":"switch-join","dpid":"00-00-00-00-00-02"}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger := newLogger(t, RotationConfig{
		MaxSize:    50, // every event rotates
		MaxBackups: 2,
	})

	for i := 0; i < 6; i++ {
		if err := logger.Log(NewEvent(t0, EventSwitchJoin, "00-00-00-00-00-01")); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(logger.Path() + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 || len(matches) > 2 {
		t.Errorf("got %d backup files, want 1 or 2", len(matches))
	}

	// Query reads the kept backups plus the current file.
	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != len(matches)+1 {
		t.Errorf("got %d events across %d backups, want %d", len(results), len(matches), len(matches)+1)
	}
}

func TestFileLogger_OpenErrors(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/journal.log", RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when directory creation fails")
	}

	dir := filepath.Join(t.TempDir(), "journal.log")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLogger(dir, RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when the path is a directory")
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger := newLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Log(NewEvent(t0, EventSwitchJoin, "")); err == nil {
		t.Error("Log after Close should fail")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestQueryFiles_MissingFileIsEmpty(t *testing.T) {
	results, err := QueryFiles([]string{filepath.Join(t.TempDir(), "nope.log")}, Filter{})
	if err != nil {
		t.Fatalf("QueryFiles: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestRecorder(t *testing.T) {
	logger := newLogger(t, RotationConfig{})
	rec := NewRecorder(logger)

	sc := &feed.Scenario{
		Register: []string{"topology", "openflow", "openflow_discovery"},
		Steps: []feed.Step{
			{Action: feed.ActionConnect, DPID: 1, Ports: []feed.PortSpec{{Range: "1-2", Name: "eth%d"}}},
			{Action: feed.ActionConnect, DPID: 2, Ports: []feed.PortSpec{{Number: 1, Name: "eth1"}}},
			{Action: feed.ActionLinkUp, Link: &discovery.Link{DPID1: 1, Port1: 1, DPID2: 2, Port2: 1}},
			{Action: feed.ActionPortStatus, DPID: 1, Reason: "add", Port: &feed.PortSpec{Number: 1, Name: "eth1"}},
			{Action: feed.ActionDisconnect, DPID: 2},
			{Action: feed.ActionAdvance, Duration: feed.Duration(oftopo.DefaultReconnectTimeout)},
		},
	}
	if _, err := feed.Replay(sc, oftopo.DefaultConfig(), rec.Attach); err != nil {
		t.Fatal(err)
	}
	rec.Close()
	if rec.Failed() != 0 {
		t.Errorf("Failed() = %d", rec.Failed())
	}

	count := func(f Filter) int {
		t.Helper()
		results, err := logger.Query(f)
		if err != nil {
			t.Fatal(err)
		}
		return len(results)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"joins", Filter{Type: EventSwitchJoin}, 2},
		{"ports added on connect", Filter{Type: EventPortAdded}, 3},
		{"links added", Filter{Type: EventLinkAdded}, 1},
		{"links removed", Filter{Type: EventLinkRemoved}, 1},
		{"leaves", Filter{Type: EventSwitchLeave}, 1},
		{"violations", Filter{Type: EventProtocolViolation, Severity: SeverityError}, 1},
		{"after grace window", Filter{StartTime: time.Unix(1, 0)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := count(tt.filter); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}

	removed, _ := logger.Query(Filter{Type: EventLinkRemoved})
	if len(removed) == 1 && removed[0].Detail != "detached" {
		t.Errorf("link-removed detail = %q, want detached", removed[0].Detail)
	}
}
