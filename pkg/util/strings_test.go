package util

import (
	"reflect"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"openflow", []string{"openflow"}},
		{"openflow,topology", []string{"openflow", "topology"}},
		{" openflow , topology ,, openflow_discovery ", []string{"openflow", "topology", "openflow_discovery"}},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommaSeparated(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
