package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/robinjoseph08/golib/logger"
)

// Pusher sends one progress update to the catalog backend.
type Pusher interface {
	PushProgress(ctx context.Context, update catalog.ProgressUpdate) error
}

// Syncer uploads the progress of every cached catalog book at once.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// Worker pushes reading progress to the catalog backend in the background.
// Pending pushes are coalesced per book so only the latest position is sent,
// and a book is only ever pushed by one goroutine at a time.
type Worker struct {
	config *config.Config
	log    logger.Logger

	pusher Pusher
	syncer Syncer
	cron   *cron.Cron

	mu       sync.Mutex
	pending  map[int]catalog.ProgressUpdate
	inFlight map[int]bool
	started  bool

	queue          chan int
	shutdown       chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, pusher Pusher) *Worker {
	workers := cfg.SyncWorkers
	if workers < 1 {
		workers = 1
	}
	cfg.SyncWorkers = workers

	return &Worker{
		config: cfg,
		log:    logger.New(),

		pusher: pusher,
		cron:   cron.New(),

		pending:  map[int]catalog.ProgressUpdate{},
		inFlight: map[int]bool{},

		queue:          make(chan int, cfg.SyncQueueSize),
		shutdown:       make(chan struct{}),
		doneProcessing: make(chan struct{}, workers),
	}
}

// SetSyncer registers the bulk sync run on the configured interval. It must be
// called before Start.
func (w *Worker) SetSyncer(s Syncer) {
	w.syncer = s
}

func (w *Worker) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	for i := 0; i < w.config.SyncWorkers; i++ {
		go w.processPushes()
	}

	if w.syncer == nil || w.config.SyncIntervalMinutes <= 0 {
		return
	}
	_, err := w.cron.AddFunc("@every "+w.config.SyncInterval().String(), w.runSync)
	if err != nil {
		w.log.Err(err).Error("failed to schedule progress sync")
		return
	}
	w.cron.Start()
	w.log.Info("scheduled progress sync", logger.Data{"interval": w.config.SyncInterval().String()})
}

// Enqueue schedules a push of update. If a push for the same book is already
// waiting, update replaces it. It reports false when the queue is full and the
// update was dropped.
func (w *Worker) Enqueue(update catalog.ProgressUpdate) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The goroutine pushing this book picks the update up when it is done.
	if _, ok := w.pending[update.BookID]; ok || w.inFlight[update.BookID] {
		w.pending[update.BookID] = update
		return true
	}

	select {
	case w.queue <- update.BookID:
		w.pending[update.BookID] = update
		return true
	default:
		w.log.Warn("progress push queue is full, dropping update", logger.Data{"book_id": update.BookID})
		return false
	}
}

// take claims bookID for the calling goroutine and returns its pending
// update. It reports false when there is nothing to push or another goroutine
// already owns the book.
func (w *Worker) take(bookID int) (catalog.ProgressUpdate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[bookID] {
		return catalog.ProgressUpdate{}, false
	}
	update, ok := w.pending[bookID]
	if !ok {
		return update, false
	}
	delete(w.pending, bookID)
	w.inFlight[bookID] = true
	return update, true
}

// next hands the owner of bookID the update that arrived while it was pushing,
// or releases the book when there is none.
func (w *Worker) next(bookID int) (catalog.ProgressUpdate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	update, ok := w.pending[bookID]
	if ok {
		select {
		case <-w.shutdown:
			ok = false
		default:
			delete(w.pending, bookID)
			return update, true
		}
	}
	delete(w.inFlight, bookID)
	return update, ok
}

func (w *Worker) hasPending(bookID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[bookID]
	return ok
}

func (w *Worker) processPushes() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case bookID := <-w.queue:
			update, ok := w.take(bookID)
			for ok {
				id, err := uuid.NewRandom()
				if err != nil {
					w.log.Err(err).Error("new uuid error")
					update, ok = w.next(bookID)
					continue
				}
				log := w.log.ID(id.String()).Root(logger.Data{"book_id": update.BookID})
				ctx := log.WithContext(context.Background())

				w.push(ctx, update)
				update, ok = w.next(bookID)
			}
		}
	}
}

// push retries a failed push with exponential backoff until it succeeds, the
// attempts run out, a newer update for the book arrives or the worker shuts
// down.
func (w *Worker) push(ctx context.Context, update catalog.ProgressUpdate) {
	log := logger.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		err := w.pusher.PushProgress(ctx, update)
		if err == nil {
			log.Info("pushed progress", logger.Data{"progress": update.Progress, "attempts": attempt + 1})
			return
		}
		if errors.Is(err, catalog.ErrUnauthorized) {
			log.Err(err).Warn("progress push unauthorized, not retrying")
			return
		}
		if attempt+1 >= w.config.SyncMaxAttempts {
			log.Err(err).Error("progress push failed, giving up", logger.Data{"attempts": attempt + 1})
			return
		}

		delay := Backoff(w.config.SyncBaseDelay, w.config.SyncMaxDelay, attempt)
		log.Err(err).Warn("progress push failed, retrying", logger.Data{"attempt": attempt + 1, "delay": delay.String()})

		select {
		case <-w.shutdown:
			return
		case <-time.After(delay):
		}

		if w.hasPending(update.BookID) {
			log.Info("newer progress is queued, dropping retry")
			return
		}
	}
}

func (w *Worker) runSync() {
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job": "progress_sync"})
	ctx := log.WithContext(context.Background())

	err = w.syncer.SyncAll(ctx)
	if err != nil {
		log.Err(err).Error("progress sync failed")
	}
}

// Shutdown stops the schedule and waits for the push goroutines to exit.
// Pushes still waiting in the queue are dropped.
func (w *Worker) Shutdown() {
	stopped := w.cron.Stop()
	close(w.shutdown)

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		for i := 0; i < w.config.SyncWorkers; i++ {
			<-w.doneProcessing
		}
	}
	<-stopped.Done()

	w.mu.Lock()
	dropped := len(w.pending)
	w.mu.Unlock()
	if dropped > 0 {
		w.log.Warn("dropped queued progress pushes on shutdown", logger.Data{"count": dropped})
	}
}

// Backoff returns base * 2^attempt plus up to 25% jitter, capped at max.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := base << attempt
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	if quarter := int64(d / 4); quarter > 0 {
		d += time.Duration(rand.Int63n(quarter + 1))
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
