package epub

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Kindred</dc:title>
    <dc:creator>Octavia E. Butler</dc:creator>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="c1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c1"/></spine>
</package>`

const testNav = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body><nav epub:type="toc"><ol><li><a href="ch1.xhtml">The River</a></li></ol></nav></body>
</html>`

func TestParse(t *testing.T) {
	t.Parallel()

	b := buildEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/nav.xhtml":        testNav,
		"OEBPS/ch1.xhtml":        "<html/>",
	})
	path := filepath.Join(t.TempDir(), "kindred.epub")
	require.NoError(t, os.WriteFile(path, b, 0600))

	md, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Kindred", md.Title)
	assert.Equal(t, "Octavia E. Butler", md.Author())
	assert.Equal(t, []string{"OEBPS/ch1.xhtml"}, md.Spine)
	require.Len(t, md.Chapters, 1)
	assert.Equal(t, "The River", md.Chapters[0].Title)
}

func TestParseReader_FallsBackToFirstOPF(t *testing.T) {
	t.Parallel()

	b := buildEPUB(t, map[string]string{
		"book.opf": testOPF,
	})

	md, err := ParseReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	assert.Equal(t, "Kindred", md.Title)
	assert.Empty(t, md.Chapters)
}

func TestParseReader_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not a zip", func(t *testing.T) {
		b := []byte("plain text")
		_, err := ParseReader(bytes.NewReader(b), int64(len(b)))
		require.Error(t, err)
	})

	t.Run("no opf", func(t *testing.T) {
		b := buildEPUB(t, map[string]string{"ch1.xhtml": "<html/>"})
		_, err := ParseReader(bytes.NewReader(b), int64(len(b)))
		require.EqualError(t, err, "no opf file found")
	})
}
