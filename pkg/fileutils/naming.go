package fileutils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	smartDoubleQuotes = regexp.MustCompile(`[“”]`)
	smartSingleQuotes = regexp.MustCompile(`[‘’]`)
	invalidChars      = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespace        = regexp.MustCompile(`\s+`)
	separators        = regexp.MustCompile(`[_.]+`)
)

// BookFilename builds the stored file name for a book: the id keeps it unique
// and the title keeps it recognizable on disk.
func BookFilename(id, title, ext string) string {
	title = sanitizeForFilename(title)
	if title == "" {
		return id + ext
	}
	return id + " - " + title + ext
}

// TitleFromFilename derives a display title from a picked file's name when the
// file carries no metadata of its own.
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = separators.ReplaceAllString(base, " ")
	base = whitespace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)
	if base == "" || base == "." {
		return "Untitled"
	}
	return base
}

// sanitizeForFilename removes or replaces characters that are not safe for filenames.
func sanitizeForFilename(name string) string {
	name = smartDoubleQuotes.ReplaceAllString(name, `"`)
	name = smartSingleQuotes.ReplaceAllString(name, `'`)

	name = invalidChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")

	// Windows doesn't like trailing dots.
	name = strings.Trim(name, " .")

	if len(name) > 120 {
		name = name[:120]
		name = strings.Trim(name, " .")
	}

	return name
}
