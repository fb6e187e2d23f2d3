package bookfile

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func epubBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	w, err = zw.Create("META-INF/container.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><container/>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	t.Run("pdf by content", func(t *testing.T) {
		assert.Equal(t, models.FormatPDF, DetectFormat([]byte("%PDF-1.7\n%fake"), "", "book.bin"))
	})

	t.Run("epub by content", func(t *testing.T) {
		assert.Equal(t, models.FormatEPUB, DetectFormat(epubBytes(t), "", "book.bin"))
	})

	t.Run("declared mime type when content is unknown", func(t *testing.T) {
		assert.Equal(t, models.FormatEPUB, DetectFormat([]byte("???"), "application/epub+zip; charset=binary", ""))
	})

	t.Run("extension as the last resort", func(t *testing.T) {
		assert.Equal(t, models.FormatPDF, DetectFormat(nil, "application/octet-stream", "Notes.PDF"))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Empty(t, DetectFormat([]byte("hello"), "text/plain", "notes.txt"))
	})
}

func TestEncode(t *testing.T) {
	t.Parallel()

	encoded := Encode([]byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff})
	assert.Equal(t, "JVBERgD/", encoded)
}

func TestHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Hash([]byte("a")), Hash([]byte("a")))
	assert.NotEqual(t, Hash([]byte("a")), Hash([]byte("b")))
	assert.Len(t, Hash(nil), 64)
}

func TestPageCount_InvalidPDF(t *testing.T) {
	t.Parallel()
	_, err := PageCount([]byte("%PDF-1.4 not really"))
	require.Error(t, err)
}
