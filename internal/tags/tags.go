// Package tags handles the free-form labels users attach to characters and
// coats of arms.
package tags

import (
	"sort"
	"strings"
)

// Normalize trims surrounding whitespace and collapses internal runs of
// whitespace to single spaces.
func Normalize(tag string) string {
	return strings.Join(strings.Fields(tag), " ")
}

// ParseList splits a comma-separated tag string into normalized, deduplicated
// tags, preserving first-seen order. Empty entries are dropped.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		t := Normalize(part)
		if t != "" {
			out = append(out, t)
		}
	}
	return Dedupe(out)
}

// Dedupe removes duplicate tags case-insensitively, keeping the first
// spelling seen.
func Dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, t := range in {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Matches reports whether any tag matches the query, case-insensitively.
// A query matches on equality or substring.
func Matches(list []string, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, t := range list {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// Frequency counts how often each tag occurs across the given lists,
// case-insensitively, keyed by the first spelling seen.
func Frequency(lists ...[]string) map[string]int {
	counts := make(map[string]int)
	spelling := make(map[string]string)
	for _, list := range lists {
		for _, t := range list {
			key := strings.ToLower(t)
			if _, ok := spelling[key]; !ok {
				spelling[key] = t
			}
			counts[spelling[key]]++
		}
	}
	return counts
}

// SortedKeys returns the tags of a frequency map ordered by descending
// count, ties broken alphabetically.
func SortedKeys(freq map[string]int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
