package service

import "strings"

// ParseTags splits a comma separated tag list and trims each entry. Empty
// entries are kept and nothing is deduplicated or lower-cased, so "" yields [""].
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, len(parts))
	for i, p := range parts {
		tags[i] = strings.TrimSpace(p)
	}
	return tags
}
