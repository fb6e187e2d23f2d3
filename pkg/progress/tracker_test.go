package progress

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/migrations"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type fakeServer struct {
	mu       sync.Mutex
	progress []catalog.ServerProgress
	err      error
	synced   [][]catalog.ProgressUpdate
	gets     int
}

func (s *fakeServer) GetProgress(_ context.Context) ([]catalog.ServerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	return s.progress, s.err
}

func (s *fakeServer) SyncProgress(_ context.Context, updates []catalog.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, updates)
	return s.err
}

type fakeQueue struct {
	mu      sync.Mutex
	updates []catalog.ProgressUpdate
}

func (q *fakeQueue) Enqueue(update catalog.ProgressUpdate) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates = append(q.updates, update)
	return true
}

type testEnv struct {
	tracker *Tracker
	books   *books.Service
	server  *fakeServer
	queue   *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc := books.NewService(setupTestDB(t))
	server := &fakeServer{}
	queue := &fakeQueue{}
	return &testEnv{
		tracker: NewTracker(svc, server, queue),
		books:   svc,
		server:  server,
		queue:   queue,
	}
}

func (e *testEnv) cacheOnline(t *testing.T, onlineID int) *models.OnlineBook {
	t.Helper()
	book, err := e.books.InsertOnlineBook(context.Background(), books.InsertOnlineBookOptions{
		OnlineID: onlineID,
		Title:    "Book",
		Filepath: "/docs/online/book.pdf",
		Format:   models.FormatPDF,
		Content:  "JVBERi0=",
	})
	require.NoError(t, err)
	return book
}

func (e *testEnv) importLocal(t *testing.T, id string) *models.LocalBook {
	t.Helper()
	book := &models.LocalBook{
		ID:          id,
		Title:       "Local",
		Filepath:    "/docs/local/" + id + ".epub",
		Format:      models.FormatEPUB,
		ContentHash: "hash-" + id,
	}
	require.NoError(t, e.books.InsertLocalBook(context.Background(), book))
	return book
}

func TestComputeDisplayRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		book   Book
		server map[int]float64
		want   float64
	}{
		{"local extent", &models.LocalBook{ID: "a", CurrentPosition: 3, TotalExtent: 10}, nil, 0.3},
		{"position past extent", &models.LocalBook{ID: "a", CurrentPosition: 12, TotalExtent: 10}, nil, 1},
		{"unknown extent", &models.LocalBook{ID: "a", CurrentPosition: 4}, nil, 0},
		{"local wins over server", &models.OnlineBook{OnlineID: 42, CurrentPosition: 3, TotalExtent: 10}, map[int]float64{42: 0.9}, 0.3},
		{"server fallback", &models.OnlineBook{OnlineID: 42}, map[int]float64{42: 0.6}, 0.6},
		{"server ratio clamped", &models.OnlineBook{OnlineID: 42}, map[int]float64{42: 1.7}, 1},
		{"server has another book", &models.OnlineBook{OnlineID: 42}, map[int]float64{7: 0.6}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDisplayRatio(tt.book, tt.server)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestOnReaderProgressEvent_Scenario42(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.cacheOnline(t, 42)

	ratio, err := env.tracker.DisplayRatio(ctx, book.Ref())
	require.NoError(t, err)
	assert.Zero(t, ratio)

	applied, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: book.Ref(), Type: EventTypeProgress, CurrentPosition: 3, TotalExtent: 10})
	require.NoError(t, err)
	assert.True(t, applied)

	ratio, err = env.tracker.DisplayRatio(ctx, book.Ref())
	require.NoError(t, err)
	assert.InDelta(t, 0.3, ratio, 1e-9)

	require.Len(t, env.queue.updates, 1)
	assert.Equal(t, catalog.ProgressUpdate{BookID: 42, Progress: 0.3, Position: 3}, env.queue.updates[0])
}

func TestOnReaderProgressEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	local := env.importLocal(t, "b1")

	t.Run("stale events are discarded", func(t *testing.T) {
		applied, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: local.Ref(), CurrentPosition: 20, TotalExtent: 100, Seq: 5})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = env.tracker.OnReaderProgressEvent(ctx, Event{Ref: local.Ref(), CurrentPosition: 10, TotalExtent: 100, Seq: 4})
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := env.books.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &local.ID})
		require.NoError(t, err)
		assert.Equal(t, 20, got.CurrentPosition)
	})

	t.Run("position is clamped to the extent", func(t *testing.T) {
		_, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: local.Ref(), CurrentPosition: 150, TotalExtent: 100, Seq: 6, Location: pointerutil.String("epubcfi(/6/4)")})
		require.NoError(t, err)

		got, err := env.books.RetrieveLocalBook(ctx, books.RetrieveLocalBookOptions{ID: &local.ID})
		require.NoError(t, err)
		assert.Equal(t, 100, got.CurrentPosition)
		require.NotNil(t, got.Location)
		assert.Equal(t, "epubcfi(/6/4)", *got.Location)
	})

	t.Run("local books are never pushed", func(t *testing.T) {
		assert.Empty(t, env.queue.updates)
	})

	t.Run("invalid events", func(t *testing.T) {
		_, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: local.Ref(), CurrentPosition: -1})
		assert.True(t, errcodes.HasCode(err, errcodes.CodeValidationError))

		_, err = env.tracker.OnReaderProgressEvent(ctx, Event{Ref: local.Ref(), Type: "jump"})
		assert.True(t, errcodes.HasCode(err, errcodes.CodeValidationError))

		_, err = env.tracker.OnReaderProgressEvent(ctx, Event{Ref: models.BookRef{Kind: models.BookKindLocal}})
		assert.True(t, errcodes.HasCode(err, errcodes.CodeValidationError))
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: models.LocalRef("missing"), CurrentPosition: 1})
		assert.True(t, errcodes.IsNotFound(err))
	})
}

func TestOnReaderProgressEvent_InitIsNotPushed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.cacheOnline(t, 8)

	applied, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: book.Ref(), Type: EventTypeInit, TotalExtent: 240, Seq: 1})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Empty(t, env.queue.updates)
}

func TestOnReaderProgressEvent_ConcurrentSequencedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.cacheOnline(t, 9)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			_, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: book.Ref(), CurrentPosition: seq, TotalExtent: 20, Seq: int64(seq)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := env.books.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 20, got.CurrentPosition)
}

func TestServerProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("maps ratios by online id", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.progress = []catalog.ServerProgress{
			{Book: catalog.ProgressBook{ID: 42}, Progress: 0.5},
			{Book: catalog.ProgressBook{ID: 7}, Progress: -0.2},
		}
		got := env.tracker.ServerProgress(ctx)
		assert.Equal(t, map[int]float64{42: 0.5, 7: 0}, got)
	})

	t.Run("failures give an empty map", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.err = errors.New("offline")
		assert.Empty(t, env.tracker.ServerProgress(ctx))
	})
}

func TestDisplayRatio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.cacheOnline(t, 42)
	env.server.progress = []catalog.ServerProgress{{Book: catalog.ProgressBook{ID: 42}, Progress: 0.75}}

	ratio, err := env.tracker.DisplayRatio(ctx, book.Ref())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, ratio, 1e-9)
	assert.Equal(t, 1, env.server.gets)

	_, err = env.tracker.OnReaderProgressEvent(ctx, Event{Ref: book.Ref(), CurrentPosition: 1, TotalExtent: 4})
	require.NoError(t, err)

	ratio, err = env.tracker.DisplayRatio(ctx, models.OnlineRef(0, 42))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, ratio, 1e-9)
	assert.Equal(t, 1, env.server.gets, "a known local extent needs no server call")
}

func TestApplyServerProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.cacheOnline(t, 42)

	_, applied, err := env.tracker.ApplyServerProgress(ctx, book.Ref(), 0.5)
	require.NoError(t, err)
	assert.False(t, applied, "extent is unknown")

	_, err = env.tracker.OnReaderProgressEvent(ctx, Event{Ref: book.Ref(), CurrentPosition: 1, TotalExtent: 9})
	require.NoError(t, err)

	position, applied, err := env.tracker.ApplyServerProgress(ctx, book.Ref(), 0.5)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 5, position)

	got, err := env.books.RetrieveOnlineBook(ctx, books.RetrieveOnlineBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentPosition)
	assert.Equal(t, 9, got.TotalExtent)
}

func TestSyncAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	known := env.cacheOnline(t, 1)
	env.cacheOnline(t, 2)
	_, err := env.tracker.OnReaderProgressEvent(ctx, Event{Ref: known.Ref(), CurrentPosition: 5, TotalExtent: 10})
	require.NoError(t, err)

	require.NoError(t, env.tracker.SyncAll(ctx))
	require.Len(t, env.server.synced, 1)
	assert.Equal(t, []catalog.ProgressUpdate{{BookID: 1, Progress: 0.5, Position: 5}}, env.server.synced[0])

	t.Run("server errors are returned", func(t *testing.T) {
		env.server.err = errors.New("offline")
		assert.Error(t, env.tracker.SyncAll(ctx))
	})
}
