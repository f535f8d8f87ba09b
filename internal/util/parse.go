package util

import (
	"strconv"
	"strings"
)

func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// ParseIDList splits a comma-separated query value into distinct non-empty ids.
func ParseIDList(s string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ClampPageSize parses a page size, falling back to def when absent or invalid and
// capping at max.
func ClampPageSize(s string, def, max int) int {
	n := SafeAtoi(s)
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
