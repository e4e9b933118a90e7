package utils

import (
	"fmt"
	"strings"
)

// MakeSlug creates a URL-friendly slug from a name and an ID.
// It lowercases the name, replaces non-alphanumeric characters with
// dashes, and appends the ID. If the resulting slug is empty, it
// defaults to "r-<id>".
func MakeSlug(name, id string) string {
	t := strings.ToLower(name)
	var b strings.Builder
	lastDash := false
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else {
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "r"
	}
	return fmt.Sprintf("%s-%s", s, id)
}
