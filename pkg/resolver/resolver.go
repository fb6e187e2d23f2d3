// Package resolver turns a catalog entry or a picked file into a book the
// reader can open, downloading or copying its content at most once.
package resolver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/bookfile"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/epub"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/fileutils"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/htmlutil"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/singleflight"
)

// Fetcher downloads the content of catalog books.
type Fetcher interface {
	DownloadBook(ctx context.Context, bookID int) (*catalog.Download, error)
}

// Store is the part of the book store the resolver reads and writes.
type Store interface {
	InsertLocalBook(ctx context.Context, book *models.LocalBook) error
	RetrieveLocalBook(ctx context.Context, opts books.RetrieveLocalBookOptions) (*models.LocalBook, error)
	DeleteLocalBook(ctx context.Context, id string) error
	InsertOnlineBook(ctx context.Context, opts books.InsertOnlineBookOptions) (*models.OnlineBook, error)
	RetrieveOnlineBook(ctx context.Context, opts books.RetrieveOnlineBookOptions) (*models.OnlineBook, error)
	DeleteOnlineBook(ctx context.Context, id int) error
	TouchLastOpened(ctx context.Context, ref models.BookRef) error
}

// CatalogBook is the catalog entry the user chose to open.
type CatalogBook struct {
	OnlineID int     `json:"online_id" validate:"required,min=1"`
	Title    string  `json:"title" mod:"trim" validate:"required"`
	Author   *string `json:"author" mod:"trim"`
	Format   string  `json:"format" mod:"trim,lcase" validate:"bookformat"`
	ImageURL *string `json:"image_url"`
}

// PickedFile is what the document picker hands back. URI is a path on the
// local filesystem.
type PickedFile struct {
	Name     string `json:"name" mod:"trim"`
	URI      string `json:"uri" mod:"trim" validate:"required"`
	MimeType string `json:"mime_type" mod:"trim"`
}

// OpenableBook is everything a renderer needs to show a book. Base64Content is
// only set for PDFs.
type OpenableBook struct {
	Ref             models.BookRef `json:"ref"`
	Title           string         `json:"title"`
	Author          *string        `json:"author"`
	Format          string         `json:"format"`
	FilePath        string         `json:"file_path"`
	Base64Content   *string        `json:"base64_content,omitempty"`
	ImageURL        *string        `json:"image_url,omitempty"`
	CurrentPosition int            `json:"current_position"`
	TotalExtent     int            `json:"total_extent"`
	Location        *string        `json:"location,omitempty"`
}

type Resolver struct {
	documentsDir     string
	maxDownloadBytes int64
	store            Store
	fetcher          Fetcher
	flights          singleflight.Group
}

func New(cfg *config.Config, store Store, fetcher Fetcher) *Resolver {
	return &Resolver{
		documentsDir:     cfg.DocumentsDir,
		maxDownloadBytes: cfg.MaxDownloadBytes,
		store:            store,
		fetcher:          fetcher,
	}
}

// OpenOnline returns the cached copy of a catalog book, downloading and
// caching it first when there is none. Concurrent calls for the same online id
// share one download. The download and save continue even if ctx is canceled,
// so a dismissed screen still ends up with a cached book.
func (r *Resolver) OpenOnline(ctx context.Context, cb CatalogBook) (*OpenableBook, error) {
	if cb.OnlineID <= 0 {
		return nil, errcodes.ValidationError("A catalog book needs an online id.")
	}

	book, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{OnlineID: &cb.OnlineID})
	if err != nil && !errcodes.IsNotFound(err) {
		return nil, err
	}

	if book == nil {
		ch := r.flights.DoChan(strconv.Itoa(cb.OnlineID), func() (interface{}, error) {
			return r.cacheOnline(context.WithoutCancel(ctx), cb)
		})
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			book = res.Val.(*models.OnlineBook)
		}
	}

	openable, err := openableOnline(book)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, book.Ref())
	return openable, nil
}

// cacheOnline runs fetch, encode, persist and re-lookup for one catalog book.
func (r *Resolver) cacheOnline(ctx context.Context, cb CatalogBook) (*models.OnlineBook, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"online_id": cb.OnlineID})

	// Another flight may have finished between our lookup and this one.
	existing, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{OnlineID: &cb.OnlineID})
	if err == nil {
		return existing, nil
	}
	if !errcodes.IsNotFound(err) {
		return nil, err
	}

	// Fetch
	download, err := r.fetcher.DownloadBook(ctx, cb.OnlineID)
	if err != nil {
		log.Err(err).Warn("book download failed")
		return nil, errcodes.FetchFailure(err)
	}
	if len(download.Content) == 0 {
		return nil, errcodes.FetchFailure(errors.New("downloaded book is empty"))
	}

	format := bookfile.DetectFormat(download.Content, download.ContentType, download.Filename)
	if format == "" && models.IsSupportedFormat(cb.Format) {
		format = cb.Format
	}
	if format == "" {
		return nil, errcodes.UnsupportedFormat(download.ContentType)
	}

	// Encode
	encoded := bookfile.Encode(download.Content)

	// Persist
	path := fileutils.UniqueFilepath(filepath.Join(r.documentsDir, "online", fileutils.BookFilename(strconv.Itoa(cb.OnlineID), cb.Title, bookfile.Extension(format))))
	err = fileutils.WriteFile(path, download.Content)
	if err != nil {
		return nil, errcodes.PersistenceFailure(err)
	}

	inserted, err := r.store.InsertOnlineBook(ctx, books.InsertOnlineBookOptions{
		OnlineID:    cb.OnlineID,
		Title:       cb.Title,
		Author:      cb.Author,
		Filepath:    path,
		Format:      format,
		Content:     encoded,
		ImageURL:    cb.ImageURL,
		TotalExtent: initialExtent(format, download.Content),
	})
	if err != nil {
		if errors.Is(err, books.ErrDuplicateOnlineID) {
			// Cached by another process in the meantime. Its row and file win.
			// Both may have picked the same free name, in which case the file
			// on disk is the row's and must stay.
			existing, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{OnlineID: &cb.OnlineID})
			if err != nil {
				r.removeFile(ctx, path)
				return nil, errcodes.PersistenceFailure(err)
			}
			if existing.Filepath != path {
				r.removeFile(ctx, path)
			}
			return existing, nil
		}
		r.removeFile(ctx, path)
		return nil, errcodes.PersistenceFailure(err)
	}

	// Re-lookup
	book, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{ID: &inserted.ID})
	if err != nil {
		r.removeFile(ctx, path)
		return nil, errcodes.PersistenceFailure(err)
	}

	log.Info("cached catalog book", logger.Data{"id": book.ID, "format": book.Format, "bytes": len(download.Content)})
	return book, nil
}

// OpenCached reopens a cached catalog book by its internal id. It never
// touches the network.
func (r *Resolver) OpenCached(ctx context.Context, internalID int) (*OpenableBook, error) {
	book, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{ID: &internalID})
	if err != nil {
		return nil, err
	}
	openable, err := openableOnline(book)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, book.Ref())
	return openable, nil
}

func (r *Resolver) OpenLocal(ctx context.Context, id string) (*OpenableBook, error) {
	book, err := r.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &id})
	if err != nil {
		return nil, err
	}
	openable, err := openableLocal(book)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, book.Ref())
	return openable, nil
}

// ImportLocal copies a picked file into the documents area and records it as a
// local book. Importing the same bytes again returns the existing book, and
// puts its file back if it was deleted behind the reader's back.
func (r *Resolver) ImportLocal(ctx context.Context, picked PickedFile) (*OpenableBook, error) {
	if picked.URI == "" {
		return nil, errcodes.ValidationError("A picked file needs a uri.")
	}
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx).Data(logger.Data{"uri": picked.URI})

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	localDir := filepath.Join(r.documentsDir, "local")

	// Fetch: copy into the documents area before looking at the bytes, so the
	// picked file may go away as soon as this returns.
	staged := filepath.Join(localDir, "."+id.String()+".import")
	_, err = fileutils.CopyFile(picked.URI, staged, r.maxDownloadBytes)
	if err != nil {
		log.Err(err).Warn("copying picked file failed")
		return nil, errcodes.FetchFailure(err)
	}
	defer r.removeFile(ctx, staged)

	content, err := os.ReadFile(staged)
	if err != nil {
		return nil, errcodes.FetchFailure(errors.WithStack(err))
	}

	hash := bookfile.Hash(content)
	existing, err := r.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ContentHash: &hash})
	if err == nil {
		log.Info("picked file was already imported", logger.Data{"id": existing.ID})
		if !fileutils.Exists(existing.Filepath) && fileutils.IsWithin(localDir, existing.Filepath) {
			err = os.Rename(staged, existing.Filepath)
			if err != nil {
				return nil, errcodes.PersistenceFailure(errors.WithStack(err))
			}
			log.Info("restored missing book file", logger.Data{"path": existing.Filepath})
		}
		return r.openLocalBook(ctx, existing)
	}
	if !errcodes.IsNotFound(err) {
		return nil, err
	}

	name := picked.Name
	if name == "" {
		name = filepath.Base(picked.URI)
	}
	format := bookfile.DetectFormat(content, picked.MimeType, name)
	if format == "" {
		return nil, errcodes.UnsupportedFormat(picked.MimeType)
	}

	title, author := describe(format, content, name)
	encoded := bookfile.Encode(content)

	// Persist
	path := filepath.Join(localDir, fileutils.BookFilename(id.String(), title, bookfile.Extension(format)))
	err = os.Rename(staged, path)
	if err != nil {
		return nil, errcodes.PersistenceFailure(errors.WithStack(err))
	}

	book := &models.LocalBook{
		ID:            id.String(),
		Title:         title,
		Author:        author,
		Filepath:      path,
		Format:        format,
		Base64Content: &encoded,
		ContentHash:   hash,
		TotalExtent:   initialExtent(format, content),
	}
	err = r.store.InsertLocalBook(ctx, book)
	if err != nil {
		r.removeFile(ctx, path)
		// The same bytes may have been imported concurrently.
		if existing, lookupErr := r.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ContentHash: &hash}); lookupErr == nil {
			return r.openLocalBook(ctx, existing)
		}
		return nil, errcodes.PersistenceFailure(err)
	}

	// Re-lookup
	saved, err := r.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &book.ID})
	if err != nil {
		r.removeFile(ctx, path)
		return nil, errcodes.PersistenceFailure(err)
	}

	log.Info("imported local book", logger.Data{"id": saved.ID, "format": saved.Format, "bytes": len(content)})
	return r.openLocalBook(ctx, saved)
}

func (r *Resolver) openLocalBook(ctx context.Context, book *models.LocalBook) (*OpenableBook, error) {
	openable, err := openableLocal(book)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, book.Ref())
	return openable, nil
}

// RemoveLocal deletes a local book's row and then its file.
func (r *Resolver) RemoveLocal(ctx context.Context, id string) error {
	book, err := r.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &id})
	if err != nil {
		return err
	}
	err = r.store.DeleteLocalBook(ctx, id)
	if err != nil {
		return err
	}
	r.removeFile(ctx, book.Filepath)
	return nil
}

// EvictOnline drops a cached catalog book. The catalog entry itself, and any
// annotations keyed by its online id, are left alone.
func (r *Resolver) EvictOnline(ctx context.Context, internalID int) error {
	book, err := r.store.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{ID: &internalID})
	if err != nil {
		return err
	}
	err = r.store.DeleteOnlineBook(ctx, internalID)
	if err != nil {
		return err
	}
	r.removeFile(ctx, book.Filepath)
	return nil
}

func (r *Resolver) touch(ctx context.Context, ref models.BookRef) {
	err := r.store.TouchLastOpened(ctx, ref)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to record last opened book", logger.Data{"ref": ref.String()})
	}
}

// removeFile deletes a book file. Paths outside the documents area are never
// touched, whatever a row says.
func (r *Resolver) removeFile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if !fileutils.IsWithin(r.documentsDir, path) {
		logger.FromContext(ctx).Warn("refusing to remove file outside the documents area", logger.Data{"path": path})
		return
	}
	if err := fileutils.RemoveFile(path); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to remove book file", logger.Data{"path": path})
	}
}

// initialExtent is the page count for PDFs. EPUB locations are generated by
// the renderer, so they start unknown.
func initialExtent(format string, content []byte) int {
	if format != models.FormatPDF {
		return 0
	}
	n, err := bookfile.PageCount(content)
	if err != nil {
		return 0
	}
	return n
}

// describe finds a title and author for an imported file, preferring EPUB
// metadata over the file name.
func describe(format string, content []byte, name string) (string, *string) {
	title := fileutils.TitleFromFilename(name)
	if format != models.FormatEPUB {
		return title, nil
	}
	md, err := epub.ParseReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return title, nil
	}
	if t := htmlutil.Label(md.Title); t != "" {
		title = t
	}
	var author *string
	if a := htmlutil.Label(md.Author()); a != "" {
		author = &a
	}
	return title, author
}
