// Package util provides common string helpers used across photomap.
package util

import (
	"strconv"
	"strings"
)

// ContainsFold reports whether substr is within s, ignoring case.
// An empty substr always matches.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Distinct returns the values of ss with duplicates removed, keeping the
// position of each value's first occurrence.
func Distinct(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FormatCoordinate renders a coordinate the shortest way that round-trips,
// e.g. 6.9255413357207045 or 79.5.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
