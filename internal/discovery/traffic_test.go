// internal/discovery/traffic_test.go
package discovery

import (
	"reflect"
	"testing"
)

func TestGradeTraffic(t *testing.T) {
	tags := []string{"ABE", "ABB"}

	cases := []struct {
		name     string
		data     string
		hexLines int
		matched  []string
	}{
		{
			name: "empty capture",
			data: "",
		},
		{
			name:     "matching tag",
			data:     "ABE1000FC5000BB8000DAC00\n",
			hexLines: 1,
			matched:  []string{"ABE"},
		},
		{
			name:     "both tags across lines",
			data:     "ABE1000FC5000BB8000DAC00\nABB2000FC5000BB8000DAC00\n",
			hexLines: 2,
			matched:  []string{"ABE", "ABB"},
		},
		{
			name:     "tag reported once",
			data:     "ABE1000FC5\nABE2000FC5\n",
			hexLines: 2,
			matched:  []string{"ABE"},
		},
		{
			name:     "unknown tag counts as hex only",
			data:     "CCC1000FC5000BB8\n",
			hexLines: 1,
		},
		{
			name: "lowercase and noise rejected",
			data: "abe1000fc5\nhello world\nG123\n",
		},
		{
			name: "lines shorter than a header rejected",
			data: "ABE\nAB1\n",
		},
		{
			name:     "carriage returns trimmed",
			data:     "ABE1000FC5\r\nABB2000FC5\r\n",
			hexLines: 2,
			matched:  []string{"ABE", "ABB"},
		},
		{
			name:     "partial trailing line still graded",
			data:     "ABE1000FC5\nABB2000",
			hexLines: 2,
			matched:  []string{"ABE", "ABB"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grade := GradeTraffic([]byte(tc.data), tags)
			if grade.HexLines != tc.hexLines {
				t.Errorf("HexLines = %d, want %d", grade.HexLines, tc.hexLines)
			}
			if !reflect.DeepEqual(grade.MatchedTags, tc.matched) {
				t.Errorf("MatchedTags = %v, want %v", grade.MatchedTags, tc.matched)
			}
		})
	}
}

func TestGradeTrafficNoTags(t *testing.T) {
	grade := GradeTraffic([]byte("ABE1000FC5\n"), nil)
	if grade.HexLines != 1 {
		t.Errorf("HexLines = %d, want 1", grade.HexLines)
	}
	if len(grade.MatchedTags) != 0 {
		t.Errorf("MatchedTags = %v, want none", grade.MatchedTags)
	}
}
