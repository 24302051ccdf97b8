package slug

import (
	"regexp"
	"strings"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make joins the non-empty parts into one lowercase, dash-separated token.
func Make(parts ...string) string {
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		s := nonAlphaNum.ReplaceAllString(strings.ToLower(strings.TrimSpace(part)), "-")
		if s = strings.Trim(s, "-"); s != "" {
			tokens = append(tokens, s)
		}
	}
	if len(tokens) == 0 {
		return "untitled"
	}
	return strings.Join(tokens, "-")
}
