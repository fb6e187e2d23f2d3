package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/database"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// ErrDuplicateOnlineID is wrapped in the StorageError returned when a cache
// row for the same online id already exists.
var ErrDuplicateOnlineID = errors.New("a cached book with this online id already exists")

type RetrieveLocalBookOptions struct {
	ID          *string
	ContentHash *string
}

type RetrieveOnlineBookOptions struct {
	ID       *int
	OnlineID *int
}

type InsertOnlineBookOptions struct {
	OnlineID    int
	Title       string
	Author      *string
	Filepath    string
	Format      string
	Content     string
	ImageURL    *string
	TotalExtent int
}

type UpdateProgressOptions struct {
	CurrentPosition int
	TotalExtent     int
	// Seq orders progress writes for a book. Zero is unsequenced and always
	// applies.
	Seq      int64
	Location *string
}

// LastOpened is the most recently opened book across both tables. Exactly one
// of Local and Online is set.
type LastOpened struct {
	Ref      models.BookRef     `json:"ref"`
	OpenedAt time.Time          `json:"opened_at"`
	Local    *models.LocalBook  `json:"local,omitempty"`
	Online   *models.OnlineBook `json:"online,omitempty"`
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) InsertLocalBook(ctx context.Context, book *models.LocalBook) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	if book.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		book.ID = id.String()
	}

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}

	return nil
}

func (svc *Service) RetrieveLocalBook(ctx context.Context, opts RetrieveLocalBookOptions) (*models.LocalBook, error) {
	book := &models.LocalBook{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("lb.id = ?", *opts.ID)
	}
	if opts.ContentHash != nil {
		q = q.Where("lb.content_hash = ?", *opts.ContentHash)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Local book")
		}
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return book, nil
}

func (svc *Service) ListLocalBooks(ctx context.Context) ([]*models.LocalBook, error) {
	var books []*models.LocalBook

	err := svc.db.
		NewSelect().
		Model(&books).
		Order("lb.title ASC", "lb.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return books, nil
}

func (svc *Service) DeleteLocalBook(ctx context.Context, id string) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.LocalBook)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	return requireAffected(res, "Local book")
}

// InsertOnlineBook creates the cache row for a catalog book. The unique index
// on online_id rejects a second row for the same catalog book.
func (svc *Service) InsertOnlineBook(ctx context.Context, opts InsertOnlineBookOptions) (*models.OnlineBook, error) {
	now := time.Now()
	book := &models.OnlineBook{
		CreatedAt:   now,
		UpdatedAt:   now,
		OnlineID:    opts.OnlineID,
		Title:       opts.Title,
		Author:      opts.Author,
		Filepath:    opts.Filepath,
		Format:      opts.Format,
		ImageURL:    opts.ImageURL,
		TotalExtent: opts.TotalExtent,
	}
	if opts.Content != "" {
		content := opts.Content
		book.Base64Content = &content
	}

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.StorageError(errors.WithStack(ErrDuplicateOnlineID))
		}
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return book, nil
}

func (svc *Service) RetrieveOnlineBook(ctx context.Context, opts RetrieveOnlineBookOptions) (*models.OnlineBook, error) {
	book := &models.OnlineBook{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("ob.id = ?", *opts.ID)
	}
	if opts.OnlineID != nil {
		q = q.Where("ob.online_id = ?", *opts.OnlineID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Online book")
		}
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return book, nil
}

func (svc *Service) ListOnlineBooks(ctx context.Context) ([]*models.OnlineBook, error) {
	var books []*models.OnlineBook

	err := svc.db.
		NewSelect().
		Model(&books).
		Order("ob.title ASC", "ob.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errcodes.StorageError(errors.WithStack(err))
	}

	return books, nil
}

func (svc *Service) DeleteOnlineBook(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.OnlineBook)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	return requireAffected(res, "Online book")
}

// progressTarget maps a ref onto the table, progress columns and row filter
// that hold its progress.
type progressTarget struct {
	table    string
	position string
	extent   string
	where     string
	whereArgs []any
	resource  string
}

func targetFor(ref models.BookRef) (progressTarget, error) {
	if err := ref.Validate(); err != nil {
		return progressTarget{}, errcodes.ValidationError(err.Error())
	}
	if ref.IsLocal() {
		return progressTarget{
			table:    "local_books",
			position: "current_position",
			extent:   "total_extent",
			where:     "id = ?",
			whereArgs: []any{ref.LocalID},
			resource:  "Local book",
		}, nil
	}
	t := progressTarget{
		table:    "online_books",
		position: "current_page",
		extent:   "total_pages",
		where:     "online_id = ?",
		whereArgs: []any{ref.OnlineID},
		resource:  "Online book",
	}
	// Both ids must agree, so a ref can't write through to another book's row.
	if ref.InternalID != 0 {
		t.where = "id = ? AND online_id = ?"
		t.whereArgs = []any{ref.InternalID, ref.OnlineID}
	}
	return t, nil
}

// UpdateProgress writes the reading position of the book ref points at. It
// reports false without error when opts.Seq is not newer than the last applied
// sequence number.
func (svc *Service) UpdateProgress(ctx context.Context, ref models.BookRef, opts UpdateProgressOptions) (bool, error) {
	t, err := targetFor(ref)
	if err != nil {
		return false, err
	}

	q := svc.db.
		NewUpdate().
		Table(t.table).
		Set(t.position+" = ?", opts.CurrentPosition).
		Set(t.extent+" = ?", opts.TotalExtent).
		Set("updated_at = ?", time.Now()).
		Where(t.where, t.whereArgs...)
	if opts.Location != nil {
		q = q.Set("location = ?", *opts.Location)
	}
	if opts.Seq > 0 {
		q = q.
			Set("progress_seq = ?", opts.Seq).
			Where("progress_seq < ?", opts.Seq)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, errcodes.StorageError(errors.WithStack(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errcodes.StorageError(errors.WithStack(err))
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either the row is gone or the write was stale.
	exists, err := svc.db.
		NewSelect().
		Table(t.table).
		Where(t.where, t.whereArgs...).
		Exists(ctx)
	if err != nil {
		return false, errcodes.StorageError(errors.WithStack(err))
	}
	if !exists {
		return false, errcodes.NotFound(t.resource)
	}
	return false, nil
}

func (svc *Service) TouchLastOpened(ctx context.Context, ref models.BookRef) error {
	t, err := targetFor(ref)
	if err != nil {
		return err
	}

	res, err := svc.db.
		NewUpdate().
		Table(t.table).
		Set("last_opened_at = ?", time.Now()).
		Where(t.where, t.whereArgs...).
		Exec(ctx)
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	return requireAffected(res, t.resource)
}

// RetrieveLastOpened returns the book with the most recent last_opened_at
// across local and cached online books.
func (svc *Service) RetrieveLastOpened(ctx context.Context) (*LastOpened, error) {
	local := &models.LocalBook{}
	err := svc.db.
		NewSelect().
		Model(local).
		Where("lb.last_opened_at IS NOT NULL").
		Order("lb.last_opened_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.StorageError(errors.WithStack(err))
		}
		local = nil
	}

	online := &models.OnlineBook{}
	err = svc.db.
		NewSelect().
		Model(online).
		Where("ob.last_opened_at IS NOT NULL").
		Order("ob.last_opened_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.StorageError(errors.WithStack(err))
		}
		online = nil
	}

	switch {
	case local == nil && online == nil:
		return nil, errcodes.NotFound("Last opened book")
	case online == nil || (local != nil && !local.LastOpenedAt.Before(*online.LastOpenedAt)):
		return &LastOpened{Ref: local.Ref(), OpenedAt: *local.LastOpenedAt, Local: local}, nil
	default:
		return &LastOpened{Ref: online.Ref(), OpenedAt: *online.LastOpenedAt, Online: online}, nil
	}
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errcodes.StorageError(errors.WithStack(err))
	}
	if n == 0 {
		return errcodes.NotFound(resource)
	}
	return nil
}
