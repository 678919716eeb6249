package domain

import "strings"

// NormalizeTags flattens raw tag inputs into a deduplicated, order
// preserving tag set. Each value may itself be a comma-delimited list
// (the upload form sends one "tags" field with comma separators, the JSON
// APIs send repeated values); entries are trimmed and empties dropped.
func NormalizeTags(values []string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, len(values))

	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	return tags
}

// HasAllTags reports whether the file carries every tag in want.
// Used by the listing filter (AND semantics).
func (f *File) HasAllTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range f.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
