package util

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

type fakeDPID string

func (d fakeDPID) String() string { return string(d) }

func TestSetLogLevel(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSetLogOutput(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)

	Info("test message")

	if buf.Len() == 0 {
		t.Error("Expected output to be written to buffer")
	}
}

func TestSetLogFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	if err := SetLogFormat("json"); err != nil {
		t.Fatal(err)
	}
	Info("test json")
	if output := buf.String(); len(output) == 0 || output[0] != '{' {
		t.Errorf("Expected JSON output starting with '{', got: %s", output)
	}

	buf.Reset()
	if err := SetLogFormat("text"); err != nil {
		t.Fatal(err)
	}
	Info("test text")
	if !strings.Contains(buf.String(), `msg="test text"`) {
		t.Errorf("Expected text output, got: %s", buf.String())
	}

	if err := SetLogFormat("xml"); err == nil {
		t.Error("SetLogFormat(xml) should fail")
	}
}

func TestWithSwitch(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)

	WithSwitch(fakeDPID("00-00-00-00-00-01")).Warn("already connected")

	if !strings.Contains(buf.String(), "dpid=00-00-00-00-00-01") {
		t.Errorf("expected dpid field in output, got: %s", buf.String())
	}
}

func TestWithPort(t *testing.T) {
	entry := WithPort(fakeDPID("00-00-00-00-00-02"), 7)
	if entry.Data["dpid"] != "00-00-00-00-00-02" || entry.Data["port"] != uint16(7) {
		t.Errorf("fields = %v", entry.Data)
	}
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent("openflow_topology")
	if entry == nil {
		t.Fatal("WithComponent should return non-nil entry")
	}
	if entry.Data["component"] != "openflow_topology" {
		t.Errorf("component field = %v", entry.Data["component"])
	}
}

func TestLevelFiltering(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("warn")

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("debug/info should be filtered at warn level, got: %s", buf.String())
	}

	Warnf("warn %d", 3)
	if buf.Len() == 0 {
		t.Error("Expected warn output")
	}
}
