package markdown

import "strings"

// Block is a generated region of a note delimited by two marker lines. Text
// outside the markers belongs to the user and is never touched.
type Block struct {
	Start string
	End   string
}

// Replace swaps the block's content for generated, appending the block when
// body has none.
func (b Block) Replace(body, generated string) string {
	rendered := b.Start + "\n" + generated + "\n" + b.End
	if start, end, ok := b.bounds(body); ok {
		return body[:start] + rendered + body[end:]
	}
	switch {
	case strings.TrimSpace(body) == "":
		return rendered + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + rendered + "\n"
	}
	return body + "\n\n" + rendered + "\n"
}

// Content returns what is currently between the markers.
func (b Block) Content(body string) (string, bool) {
	start, end, ok := b.bounds(body)
	if !ok {
		return "", false
	}
	inner := body[start+len(b.Start) : end-len(b.End)]
	return strings.Trim(inner, "\n"), true
}

func (b Block) bounds(body string) (int, int, bool) {
	start := strings.Index(body, b.Start)
	if start < 0 {
		return 0, 0, false
	}
	end := strings.Index(body[start:], b.End)
	if end < 0 {
		return 0, 0, false
	}
	return start, start + end + len(b.End), true
}
