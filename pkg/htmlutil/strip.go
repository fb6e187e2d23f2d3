package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Label turns text that may carry markup, such as an EPUB title or a chapter
// label from the renderer's table of contents, into a single plain line.
func Label(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// OptionalLabel is Label for optional values. A label that is empty after
// cleaning becomes nil.
func OptionalLabel(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := Label(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
