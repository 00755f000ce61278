package openflow

import (
	"encoding/json"
	"testing"
)

func TestDPIDString(t *testing.T) {
	tests := []struct {
		dpid DPID
		want string
	}{
		{0, "00-00-00-00-00-00"},
		{1, "00-00-00-00-00-01"},
		{0x0000aabbccddeeff, "aa-bb-cc-dd-ee-ff"},
		{0x0001000000000002, "00-00-00-00-00-02|1"},
		{0xffff000000000000, "00-00-00-00-00-00|65535"},
	}

	for _, tt := range tests {
		if got := tt.dpid.String(); got != tt.want {
			t.Errorf("DPID(%#x).String() = %q, want %q", uint64(tt.dpid), got, tt.want)
		}
	}
}

func TestParseDPID(t *testing.T) {
	tests := []struct {
		in      string
		want    DPID
		wantErr bool
	}{
		{"00-00-00-00-00-01", 1, false},
		{"aa:bb:cc:dd:ee:ff", 0xaabbccddeeff, false},
		{"00-00-00-00-00-02|1", 0x0001000000000002, false},
		{"0x10", 16, false},
		{"42", 42, false},
		{"", 0, true},
		{"00-00-00", 0, true},
		{"zz-00-00-00-00-00", 0, true},
		{"00-00-00-00-00-01|x", 0, true},
		{"0xgg", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDPID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDPID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDPID(%q) = %#x, want %#x", tt.in, uint64(got), uint64(tt.want))
			}
		})
	}
}

func TestDPIDRoundTrip(t *testing.T) {
	for _, d := range []DPID{1, 0xaabbccddeeff, 0x00ff000000000001} {
		got, err := ParseDPID(d.String())
		if err != nil || got != d {
			t.Errorf("round trip %#x -> %q -> %#x (%v)", uint64(d), d.String(), uint64(got), err)
		}
	}
}

func TestDPIDJSON(t *testing.T) {
	type wrapper struct {
		DPID DPID `json:"dpid"`
	}
	data, err := json.Marshal(wrapper{DPID: 2})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"dpid":"00-00-00-00-00-02"}` {
		t.Errorf("Marshal = %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"dpid":"7"}`), &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if w.DPID != 7 {
		t.Errorf("DPID = %d, want 7", w.DPID)
	}
}

func TestPortNo(t *testing.T) {
	if PortController.String() != "CONTROLLER" {
		t.Errorf("PortController.String() = %q", PortController.String())
	}
	if PortNo(3).String() != "3" {
		t.Errorf("PortNo(3).String() = %q", PortNo(3).String())
	}
	if !PortLocal.IsReserved() || PortNo(48).IsReserved() {
		t.Error("IsReserved misclassifies ports")
	}
}

func TestPortReason(t *testing.T) {
	for _, r := range []PortReason{PortReasonAdd, PortReasonDelete, PortReasonModify} {
		got, err := ParsePortReason(r.String())
		if err != nil || got != r {
			t.Errorf("ParsePortReason(%q) = %v, %v", r.String(), got, err)
		}
	}
	if _, err := ParsePortReason("flap"); err == nil {
		t.Error("ParsePortReason should reject unknown reasons")
	}
	if PortReason(9).String() != "reason(9)" {
		t.Errorf("unknown reason String() = %q", PortReason(9).String())
	}
}
