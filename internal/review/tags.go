package review

import (
	"slices"
	"strings"
)

// EncodeTags joins catalog tag ids and free-text extras into the stored
// classification string: sorted ids first, then sorted extras, duplicates
// removed, comma-separated. Equal sets always encode identically.
func EncodeTags(ids, extras []string) string {
	seen := make(map[string]bool, len(ids)+len(extras))
	var out []string
	for _, group := range [][]string{sortedClean(ids), sortedClean(extras)} {
		for _, v := range group {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return strings.Join(out, ",")
}

// DecodeTags splits a stored classification string.
func DecodeTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func sortedClean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
