// Package epub reads the metadata of EPUB files being imported: title,
// authors, reading order and table of contents.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Metadata is what the reader needs from an EPUB to list and open it.
type Metadata struct {
	Title    string    `json:"title"`
	Authors  []string  `json:"authors"`
	Language string    `json:"language,omitempty"`
	Spine    []string  `json:"spine"`
	Chapters []Chapter `json:"chapters"`
}

// Author returns the authors joined for display, or an empty string.
func (m *Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

type container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

func Parse(filepath string) (*Metadata, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ParseReader(f, stats.Size())
}

// ParseReader parses an EPUB held in r. The OPF is located through
// META-INF/container.xml, falling back to the first .opf in the archive.
func ParseReader(r io.ReaderAt, size int64) (*Metadata, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files := make(map[string]*zip.File, len(zipReader.File))
	for _, file := range zipReader.File {
		files[file.Name] = file
	}

	opfPath, err := findOPF(files)
	if err != nil {
		return nil, err
	}

	rc, err := files[opfPath].Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	opf, err := ParseOPF(opfPath, rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Title:    opf.Title,
		Authors:  opf.Authors,
		Language: opf.Language,
		Spine:    opf.Spine,
	}

	// A missing or broken table of contents does not make the book unreadable.
	switch {
	case opf.NavHref != "" && files[opf.NavHref] != nil:
		md.Chapters = readChapters(files[opf.NavHref], parseNavDocument)
	case opf.NCXHref != "" && files[opf.NCXHref] != nil:
		md.Chapters = readChapters(files[opf.NCXHref], parseNCX)
	}

	return md, nil
}

func findOPF(files map[string]*zip.File) (string, error) {
	if f, ok := files["META-INF/container.xml"]; ok {
		rc, err := f.Open()
		if err != nil {
			return "", errors.WithStack(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", errors.WithStack(err)
		}
		c := &container{}
		if err := xml.Unmarshal(b, c); err == nil {
			for _, rf := range c.Rootfiles.Rootfile {
				if _, ok := files[rf.FullPath]; ok {
					return rf.FullPath, nil
				}
			}
		}
	}

	for name := range files {
		if strings.EqualFold(path.Ext(name), ".opf") {
			return name, nil
		}
	}

	return "", errors.New("no opf file found")
}

func readChapters(f *zip.File, parse func(io.Reader) ([]Chapter, error)) []Chapter {
	rc, err := f.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()
	chapters, err := parse(rc)
	if err != nil {
		return nil
	}
	return chapters
}
