// Package bookfile inspects raw book content: format detection, PDF page
// counts, content hashing, and the text-safe encoding the store persists.
package bookfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

const (
	mimePDF  = "application/pdf"
	mimeEPUB = "application/epub+zip"
)

// DetectFormat determines the book format from its content, falling back to
// the declared mime type and then to the file name's extension. It returns an
// empty string when none of them identify a supported format.
func DetectFormat(content []byte, declaredMime, name string) string {
	if len(content) > 0 {
		mtype := mimetype.Detect(content)
		switch {
		case mtype.Is(mimePDF):
			return models.FormatPDF
		case mtype.Is(mimeEPUB):
			return models.FormatEPUB
		}
	}

	switch strings.ToLower(strings.TrimSpace(strings.SplitN(declaredMime, ";", 2)[0])) {
	case mimePDF:
		return models.FormatPDF
	case mimeEPUB:
		return models.FormatEPUB
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return models.FormatPDF
	case ".epub":
		return models.FormatEPUB
	}

	return ""
}

// Extension returns the file extension used when storing a book of format.
func Extension(format string) string {
	return "." + format
}

// PageCount returns the number of pages in a PDF.
func PageCount(content []byte) (n int, err error) {
	// Malformed input can make pdfcpu panic instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, errors.Errorf("counting pdf pages: %v", r)
		}
	}()

	n, err = api.PageCount(bytes.NewReader(content), nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n, nil
}

// Encode converts raw content into the text-safe representation that is
// persisted alongside the book row.
func Encode(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

// Hash returns the hex-encoded SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
