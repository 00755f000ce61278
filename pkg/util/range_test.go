package util

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"5", []int{5}, false},
		{"1-3", []int{1, 2, 3}, false},
		{"1-3,7", []int{1, 2, 3, 7}, false},
		{"7, 1-2 ,2", []int{1, 2, 7}, false},
		{"1,,3", []int{1, 3}, false},
		{"3-1", nil, true},
		{"a-3", nil, true},
		{"1-b", nil, true},
		{"x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ExpandRange(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandRange(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestCompactRange(t *testing.T) {
	tests := []struct {
		values []int
		want   string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{1, 2, 3, 5, 7, 8, 9}, "1-3,5,7-9"},
		{[]int{3, 1, 2, 2}, "1-3"},
	}

	for _, tt := range tests {
		if got := CompactRange(tt.values); got != tt.want {
			t.Errorf("CompactRange(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}

func TestRangeRoundTrip(t *testing.T) {
	for _, spec := range []string{"1-4", "1,3,5", "1-2,10-12,65534"} {
		values, err := ExpandRange(spec)
		if err != nil {
			t.Fatalf("ExpandRange(%q): %v", spec, err)
		}
		if got := CompactRange(values); got != spec {
			t.Errorf("round trip %q -> %q", spec, got)
		}
	}
}
