package annotations

import (
	"context"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type AddBookmarkOptions struct {
	Position     int
	ChapterLabel *string
}

type AddCommentOptions struct {
	Page         int
	SelectedText string
	CommentText  string
}

// Service stores bookmarks and comments. Rows are keyed by the book's kind and
// key, so annotations on a catalog book survive eviction of its cache row.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) AddBookmark(ctx context.Context, ref models.BookRef, opts AddBookmarkOptions) (*models.Bookmark, error) {
	return addBookmark(ctx, svc.db, ref, opts)
}

func (svc *Service) ListBookmarks(ctx context.Context, ref models.BookRef) ([]*models.Bookmark, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	bookmarks := []*models.Bookmark{}
	err := svc.db.
		NewSelect().
		Model(&bookmarks).
		Where("bm.book_kind = ?", ref.Kind).
		Where("bm.book_key = ?", ref.Key()).
		Order("bm.position ASC", "bm.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return bookmarks, nil
}

// DeleteBookmark removes every bookmark at position. It returns NotFound when
// there was none.
func (svc *Service) DeleteBookmark(ctx context.Context, ref models.BookRef, position int) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	n, err := deleteBookmarks(ctx, svc.db, ref, position)
	if err != nil {
		return err
	}
	if n == 0 {
		return errcodes.NotFound("Bookmark")
	}
	return nil
}

func (svc *Service) IsBookmarked(ctx context.Context, ref models.BookRef, position int) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}
	return isBookmarked(ctx, svc.db, ref, position)
}

func (svc *Service) AddComment(ctx context.Context, ref models.BookRef, opts AddCommentOptions) (*models.Comment, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		CreatedAt:    time.Now(),
		BookKind:     ref.Kind,
		BookKey:      ref.Key(),
		Page:         opts.Page,
		SelectedText: opts.SelectedText,
		CommentText:  opts.CommentText,
	}

	_, err := svc.db.
		NewInsert().
		Model(comment).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return comment, nil
}

func (svc *Service) ListComments(ctx context.Context, ref models.BookRef) ([]*models.Comment, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	comments := []*models.Comment{}
	err := svc.db.
		NewSelect().
		Model(&comments).
		Where("c.book_kind = ?", ref.Kind).
		Where("c.book_key = ?", ref.Key()).
		Order("c.page ASC", "c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return comments, nil
}

func (svc *Service) DeleteComment(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Comment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	if n == 0 {
		return errcodes.NotFound("Comment")
	}
	return nil
}

// The helpers below take a bun.IDB so they can run inside a transaction.

func addBookmark(ctx context.Context, db bun.IDB, ref models.BookRef, opts AddBookmarkOptions) (*models.Bookmark, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if opts.Position < 0 {
		return nil, errcodes.ValidationError("A bookmark position can't be negative.")
	}

	bookmark := &models.Bookmark{
		CreatedAt:    time.Now(),
		BookKind:     ref.Kind,
		BookKey:      ref.Key(),
		ChapterLabel: opts.ChapterLabel,
		Position:     opts.Position,
	}

	_, err := db.
		NewInsert().
		Model(bookmark).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return bookmark, nil
}

func isBookmarked(ctx context.Context, db bun.IDB, ref models.BookRef, position int) (bool, error) {
	exists, err := db.
		NewSelect().
		Model((*models.Bookmark)(nil)).
		Where("bm.book_kind = ?", ref.Kind).
		Where("bm.book_key = ?", ref.Key()).
		Where("bm.position = ?", position).
		Exists(ctx)
	if err != nil {
		return false, errcodes.StorageError(errors.WithStack(err))
	}
	return exists, nil
}

func deleteBookmarks(ctx context.Context, db bun.IDB, ref models.BookRef, position int) (int64, error) {
	res, err := db.
		NewDelete().
		Model((*models.Bookmark)(nil)).
		Where("book_kind = ?", ref.Kind).
		Where("book_key = ?", ref.Key()).
		Where("position = ?", position).
		Exec(ctx)
	if err != nil {
		return 0, errcodes.StorageError(errors.WithStack(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errcodes.StorageError(errors.WithStack(err))
	}
	return n, nil
}

func validateRef(ref models.BookRef) error {
	if err := ref.Validate(); err != nil {
		return errcodes.ValidationError(err.Error())
	}
	return nil
}
