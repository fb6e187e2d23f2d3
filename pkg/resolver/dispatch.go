package resolver

import (
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/fileutils"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
)

// dispatch checks that a stored book can be handed to the renderer for its
// format: a PDF needs its encoded content, an EPUB needs its file on disk.
func dispatch(b *OpenableBook, content *string) (*OpenableBook, error) {
	switch b.Format {
	case models.FormatPDF:
		if content == nil || *content == "" {
			return nil, errcodes.MissingContent(b.Format)
		}
		b.Base64Content = content
	case models.FormatEPUB:
		if !fileutils.Exists(b.FilePath) {
			return nil, errcodes.FileNotFound(b.FilePath)
		}
	default:
		return nil, errcodes.UnsupportedFormat(b.Format)
	}
	return b, nil
}

func openableOnline(book *models.OnlineBook) (*OpenableBook, error) {
	return dispatch(&OpenableBook{
		Ref:             book.Ref(),
		Title:           book.Title,
		Author:          book.Author,
		Format:          book.Format,
		FilePath:        book.Filepath,
		ImageURL:        book.ImageURL,
		CurrentPosition: book.CurrentPosition,
		TotalExtent:     book.TotalExtent,
		Location:        book.Location,
	}, book.Base64Content)
}

func openableLocal(book *models.LocalBook) (*OpenableBook, error) {
	return dispatch(&OpenableBook{
		Ref:             book.Ref(),
		Title:           book.Title,
		Author:          book.Author,
		Format:          book.Format,
		FilePath:        book.Filepath,
		CurrentPosition: book.CurrentPosition,
		TotalExtent:     book.TotalExtent,
		Location:        book.Location,
	}, book.Base64Content)
}
