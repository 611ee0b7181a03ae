package tags

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		tag      string
		expected string
	}{
		{"norse", "norse"},
		{"  norse  ", "norse"},
		{"red   hair", "red hair"},
		{"\tred\nhair ", "red hair"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.tag); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.tag, got, tt.expected)
		}
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple", "norse,female", []string{"norse", "female"}},
		{"spaces around commas", " norse , female ", []string{"norse", "female"}},
		{"duplicates dropped", "norse,Norse,NORSE", []string{"norse"}},
		{"empty entries dropped", "norse,,female,", []string{"norse", "female"}},
		{"empty string", "", nil},
		{"only commas", ",,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.input)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("ParseList(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestDedupeKeepsFirstSpelling(t *testing.T) {
	got := Dedupe([]string{"Norse", "norse", "Female"})
	want := []string{"Norse", "Female"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dedupe mismatch (-want +got):\n%s", diff)
	}
}

func TestMatches(t *testing.T) {
	list := []string{"norse", "red hair", "Female"}

	tests := []struct {
		query    string
		expected bool
	}{
		{"norse", true},
		{"NORSE", true},
		{"red", true},
		{"female", true},
		{"irish", false},
		{"", false},
		{"  ", false},
	}

	for _, tt := range tests {
		if got := Matches(list, tt.query); got != tt.expected {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.expected)
		}
	}
}

func TestFrequency(t *testing.T) {
	freq := Frequency(
		[]string{"norse", "female"},
		[]string{"Norse", "irish"},
		[]string{"norse"},
	)

	if freq["norse"] != 3 {
		t.Errorf("norse count = %d, want 3 (case-insensitive merge)", freq["norse"])
	}
	if freq["female"] != 1 || freq["irish"] != 1 {
		t.Errorf("unexpected counts: %v", freq)
	}
}

func TestSortedKeys(t *testing.T) {
	freq := map[string]int{"b": 2, "a": 2, "c": 5}
	got := SortedKeys(freq)
	want := []string{"c", "a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortedKeys mismatch (-want +got):\n%s", diff)
	}
}
