package annotations

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/htmlutil"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/keylock"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Manager is what the reader screens use to bookmark, comment and list
// annotations.
type Manager struct {
	db      *bun.DB
	service *Service
	locks   keylock.Locker
}

func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:      db,
		service: NewService(db),
	}
}

// ToggleBookmark removes the bookmarks at position if there are any and adds
// one otherwise. It returns whether position is bookmarked afterwards.
func (m *Manager) ToggleBookmark(ctx context.Context, ref models.BookRef, position int, chapterLabel *string) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}
	if position < 0 {
		return false, errcodes.ValidationError("A bookmark position can't be negative.")
	}

	chapterLabel = htmlutil.OptionalLabel(chapterLabel)

	unlock := m.locks.Lock(lockKey(ref, position))
	defer unlock()

	var bookmarked bool
	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := isBookmarked(ctx, tx, ref, position)
		if err != nil {
			return err
		}
		if exists {
			_, err = deleteBookmarks(ctx, tx, ref, position)
			return err
		}
		_, err = addBookmark(ctx, tx, ref, AddBookmarkOptions{Position: position, ChapterLabel: chapterLabel})
		if err != nil {
			return err
		}
		bookmarked = true
		return nil
	})
	if err != nil {
		var e *errcodes.Error
		if errors.As(err, &e) {
			return false, err
		}
		return false, errcodes.StorageError(errors.WithStack(err))
	}

	logger.FromContext(ctx).Info("toggled bookmark", logger.Data{"ref": ref.String(), "position": position, "bookmarked": bookmarked})
	return bookmarked, nil
}

func (m *Manager) RemoveBookmark(ctx context.Context, ref models.BookRef, position int) error {
	unlock := m.locks.Lock(lockKey(ref, position))
	defer unlock()

	return m.service.DeleteBookmark(ctx, ref, position)
}

func (m *Manager) IsBookmarked(ctx context.Context, ref models.BookRef, position int) (bool, error) {
	return m.service.IsBookmarked(ctx, ref, position)
}

// SaveComment stores a note on page. The selected text may be empty but the
// comment itself may not.
func (m *Manager) SaveComment(ctx context.Context, ref models.BookRef, opts AddCommentOptions) (*models.Comment, error) {
	opts.CommentText = strings.TrimSpace(opts.CommentText)
	if opts.CommentText == "" {
		return nil, errcodes.ValidationError("A comment can't be blank.")
	}
	if opts.Page < 0 {
		return nil, errcodes.ValidationError("A comment page can't be negative.")
	}
	return m.service.AddComment(ctx, ref, opts)
}

func (m *Manager) DeleteComment(ctx context.Context, id int) error {
	return m.service.DeleteComment(ctx, id)
}

// ListAnnotations merges the bookmarks and comments of a book, oldest first.
func (m *Manager) ListAnnotations(ctx context.Context, ref models.BookRef) ([]*models.Annotation, error) {
	bookmarks, err := m.service.ListBookmarks(ctx, ref)
	if err != nil {
		return nil, err
	}
	comments, err := m.service.ListComments(ctx, ref)
	if err != nil {
		return nil, err
	}

	annotations := make([]*models.Annotation, 0, len(bookmarks)+len(comments))
	for _, b := range bookmarks {
		annotations = append(annotations, &models.Annotation{
			Kind:         models.AnnotationKindBookmark,
			ID:           b.ID,
			Book:         ref,
			Position:     b.Position,
			ChapterLabel: b.ChapterLabel,
			CreatedAt:    b.CreatedAt,
		})
	}
	for _, c := range comments {
		comment := c.CommentText
		a := &models.Annotation{
			Kind:        models.AnnotationKindComment,
			ID:          c.ID,
			Book:        ref,
			Position:    c.Page,
			CommentText: &comment,
			CreatedAt:   c.CreatedAt,
		}
		if c.SelectedText != "" {
			selected := c.SelectedText
			a.SelectedText = &selected
		}
		annotations = append(annotations, a)
	}

	sort.SliceStable(annotations, func(i, j int) bool {
		a, b := annotations[i], annotations[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Kind < b.Kind
	})

	return annotations, nil
}

// lockKey ignores the internal id of online refs, so every ref to one book
// position shares a lock.
func lockKey(ref models.BookRef, position int) string {
	return string(ref.Kind) + ":" + ref.Key() + "@" + strconv.Itoa(position)
}
