// Package progress records reading positions from the renderer and reconciles
// them with the progress the catalog backend knows about.
package progress

import (
	"context"
	"math"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/keylock"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	EventTypeInit     = "init"
	EventTypeProgress = "progress"
)

// Event is a position report from the renderer. Seq increases with every event
// the renderer emits for a book. Zero means the event is unsequenced.
type Event struct {
	Ref             models.BookRef
	Type            string
	CurrentPosition int
	TotalExtent     int
	Seq             int64
	Location        *string
}

type Store interface {
	RetrieveLocalBook(ctx context.Context, opts books.RetrieveLocalBookOptions) (*models.LocalBook, error)
	RetrieveOnlineBook(ctx context.Context, opts books.RetrieveOnlineBookOptions) (*models.OnlineBook, error)
	ListOnlineBooks(ctx context.Context) ([]*models.OnlineBook, error)
	UpdateProgress(ctx context.Context, ref models.BookRef, opts books.UpdateProgressOptions) (bool, error)
}

// Server is the catalog backend's progress API.
type Server interface {
	GetProgress(ctx context.Context) ([]catalog.ServerProgress, error)
	SyncProgress(ctx context.Context, updates []catalog.ProgressUpdate) error
}

// Queue takes progress pushes to send in the background.
type Queue interface {
	Enqueue(update catalog.ProgressUpdate) bool
}

// Book is a stored book whose progress can be shown.
type Book interface {
	Ref() models.BookRef
	Progress() (current int, total int)
}

type Tracker struct {
	store  Store
	server Server
	queue  Queue
	locks  keylock.Locker
}

func NewTracker(store Store, server Server, queue Queue) *Tracker {
	return &Tracker{
		store:  store,
		server: server,
		queue:  queue,
	}
}

// OnReaderProgressEvent writes a renderer event through to the store. It
// reports false when the event was older than one already applied. Applied
// progress events on catalog books are also pushed to the backend.
func (t *Tracker) OnReaderProgressEvent(ctx context.Context, ev Event) (bool, error) {
	if err := ev.Ref.Validate(); err != nil {
		return false, errcodes.ValidationError(err.Error())
	}
	switch ev.Type {
	case "":
		ev.Type = EventTypeProgress
	case EventTypeInit, EventTypeProgress:
	default:
		return false, errcodes.ValidationError("Unknown progress event type " + ev.Type + ".")
	}
	if ev.CurrentPosition < 0 || ev.TotalExtent < 0 || ev.Seq < 0 {
		return false, errcodes.ValidationError("Progress values can't be negative.")
	}
	if ev.TotalExtent > 0 && ev.CurrentPosition > ev.TotalExtent {
		ev.CurrentPosition = ev.TotalExtent
	}

	unlock := t.locks.Lock(lockKey(ev.Ref))
	defer unlock()

	applied, err := t.store.UpdateProgress(ctx, ev.Ref, books.UpdateProgressOptions{
		CurrentPosition: ev.CurrentPosition,
		TotalExtent:     ev.TotalExtent,
		Seq:             ev.Seq,
		Location:        ev.Location,
	})
	if err != nil {
		return false, err
	}

	log := logger.FromContext(ctx)
	if !applied {
		log.Info("discarded stale progress event", logger.Data{"ref": ev.Ref.String(), "seq": ev.Seq})
		return false, nil
	}

	if ev.Type == EventTypeProgress && ev.Ref.IsOnline() {
		t.PushProgressToServer(ctx, ev.Ref, Ratio(ev.CurrentPosition, ev.TotalExtent), ev.CurrentPosition)
	}
	return true, nil
}

// PushProgressToServer queues a push of the book's progress. It never fails:
// local books and a full queue are logged and ignored.
func (t *Tracker) PushProgressToServer(ctx context.Context, ref models.BookRef, ratio float64, position int) {
	log := logger.FromContext(ctx).Data(logger.Data{"ref": ref.String()})
	if !ref.IsOnline() || ref.OnlineID <= 0 {
		log.Info("skipping progress push for a book without a catalog id")
		return
	}
	if t.queue == nil {
		log.Warn("no progress push queue configured")
		return
	}
	t.queue.Enqueue(catalog.ProgressUpdate{
		BookID:   ref.OnlineID,
		Progress: clamp(ratio),
		Position: position,
	})
}

// ServerProgress returns the backend's progress ratios keyed by online id. A
// failed request is logged and yields an empty map.
func (t *Tracker) ServerProgress(ctx context.Context) map[int]float64 {
	ratios := map[int]float64{}
	if t.server == nil {
		return ratios
	}
	records, err := t.server.GetProgress(ctx)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to fetch server progress")
		return ratios
	}
	for _, r := range records {
		ratios[r.Book.ID] = clamp(r.Progress)
	}
	return ratios
}

// ComputeDisplayRatio resolves one 0..1 ratio for book. A known local extent
// wins over the server's ratio for the same catalog book.
func ComputeDisplayRatio(book Book, serverProgress map[int]float64) float64 {
	current, total := book.Progress()
	if total > 0 {
		return Ratio(current, total)
	}
	ref := book.Ref()
	if ref.IsOnline() {
		if r, ok := serverProgress[ref.OnlineID]; ok {
			return clamp(r)
		}
	}
	return 0
}

// DisplayRatio loads the book ref points at and computes its display ratio,
// asking the backend only when the local extent is unknown.
func (t *Tracker) DisplayRatio(ctx context.Context, ref models.BookRef) (float64, error) {
	book, err := t.load(ctx, ref)
	if err != nil {
		return 0, err
	}
	if _, total := book.Progress(); total > 0 || !ref.IsOnline() {
		return ComputeDisplayRatio(book, nil), nil
	}
	return ComputeDisplayRatio(book, t.ServerProgress(ctx)), nil
}

// ApplyServerProgress moves the local position to ratio of the book's extent
// and returns the new position. Nothing is written, and false is returned,
// while the extent is unknown.
func (t *Tracker) ApplyServerProgress(ctx context.Context, ref models.BookRef, ratio float64) (int, bool, error) {
	if math.IsNaN(ratio) {
		return 0, false, errcodes.ValidationError("A progress ratio must be a number.")
	}

	unlock := t.locks.Lock(lockKey(ref))
	defer unlock()

	book, err := t.load(ctx, ref)
	if err != nil {
		return 0, false, err
	}
	_, total := book.Progress()
	if total <= 0 {
		return 0, false, nil
	}

	position := int(math.Round(clamp(ratio) * float64(total)))
	_, err = t.store.UpdateProgress(ctx, book.Ref(), books.UpdateProgressOptions{
		CurrentPosition: position,
		TotalExtent:     total,
	})
	if err != nil {
		return 0, false, err
	}
	return position, true, nil
}

// SyncAll uploads the progress of every cached catalog book whose extent is
// known in one request.
func (t *Tracker) SyncAll(ctx context.Context) error {
	if t.server == nil {
		return nil
	}
	cached, err := t.store.ListOnlineBooks(ctx)
	if err != nil {
		return err
	}

	updates := make([]catalog.ProgressUpdate, 0, len(cached))
	for _, b := range cached {
		if b.TotalExtent <= 0 {
			continue
		}
		updates = append(updates, catalog.ProgressUpdate{
			BookID:   b.OnlineID,
			Progress: Ratio(b.CurrentPosition, b.TotalExtent),
			Position: b.CurrentPosition,
		})
	}
	if len(updates) == 0 {
		return nil
	}

	err = t.server.SyncProgress(ctx, updates)
	if err != nil {
		return errors.WithStack(err)
	}
	logger.FromContext(ctx).Info("synced progress", logger.Data{"books": len(updates)})
	return nil
}

func (t *Tracker) load(ctx context.Context, ref models.BookRef) (Book, error) {
	if err := ref.Validate(); err != nil {
		return nil, errcodes.ValidationError(err.Error())
	}
	if ref.IsLocal() {
		return t.store.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &ref.LocalID})
	}
	opts := books.RetrieveOnlineBookOptions{OnlineID: &ref.OnlineID}
	if ref.InternalID != 0 {
		opts = books.RetrieveOnlineBookOptions{ID: &ref.InternalID}
	}
	return t.store.RetrieveOnlineBook(ctx, opts)
}

// lockKey is the same for every ref to one book, whether or not it carries an
// internal id.
func lockKey(ref models.BookRef) string {
	return string(ref.Kind) + ":" + ref.Key()
}

// Ratio is current/total clamped to [0, 1]. An unknown total gives 0.
func Ratio(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return clamp(float64(current) / float64(total))
}

func clamp(r float64) float64 {
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
