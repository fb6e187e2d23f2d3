package server

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/database"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/migrations"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/progress"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/worker"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fakeCatalog struct {
	mu        sync.Mutex
	downloads int
	pushes    []catalog.ProgressUpdate
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/books/public/file/42":
		f.downloads++
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4\n% fake\n")
	case r.Method == http.MethodGet && r.URL.Path == "/books/public":
		_, _ = io.WriteString(w, `[{"id":42,"title":"Forty Two"}]`)
	case r.Method == http.MethodPost && r.URL.Path == "/mobile/progress":
		var u catalog.ProgressUpdate
		_ = json.NewDecoder(r.Body).Decode(&u)
		f.pushes = append(f.pushes, u)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCatalog) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, len(f.pushes)
}

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

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestServer_ReadingSession(t *testing.T) {
	fake := &fakeCatalog{}
	backend := httptest.NewServer(fake)
	defer backend.Close()

	cfg := config.NewForTest()
	cfg.DocumentsDir = t.TempDir()
	cfg.APIBaseURL = backend.URL

	db := setupTestDB(t)
	client := catalog.New(cfg)
	wrkr := worker.New(cfg, client)
	tracker := progress.NewTracker(books.NewService(db), client, wrkr)
	wrkr.SetSyncer(tracker)
	wrkr.Start()
	defer wrkr.Shutdown()

	e, err := newEcho(cfg, db, client, tracker)
	require.NoError(t, err)

	t.Run("open a catalog book twice", func(t *testing.T) {
		code, body := do(t, e, http.MethodPost, "/books/online/open", `{"online_id":42,"title":"Forty Two"}`)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, "online:42:1", body["ref"])
		assert.Equal(t, "pdf", body["format"])
		assert.NotEmpty(t, body["base64_content"])

		code, _ = do(t, e, http.MethodPost, "/books/online/open", `{"online_id":42,"title":"Forty Two"}`)
		require.Equal(t, http.StatusOK, code)

		downloads, _ := fake.counts()
		assert.Equal(t, 1, downloads)
	})

	t.Run("record progress and read the ratio", func(t *testing.T) {
		code, body := do(t, e, http.MethodPost, "/progress", `{"ref":"online:42","type":"progress","current_position":3,"total_extent":10,"seq":1}`)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, true, body["applied"])

		code, body = do(t, e, http.MethodGet, "/progress/online:42", "")
		require.Equal(t, http.StatusOK, code, body)
		assert.InDelta(t, 0.3, body["ratio"], 1e-9)

		require.Eventually(t, func() bool {
			_, pushes := fake.counts()
			return pushes == 1
		}, 2*time.Second, time.Millisecond)
	})

	t.Run("bookmark and list annotations", func(t *testing.T) {
		code, body := do(t, e, http.MethodPost, "/annotations/bookmarks/toggle", `{"ref":"online:42","position":5}`)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, true, body["bookmarked"])

		code, body = do(t, e, http.MethodPost, "/annotations/comments", `{"ref":"online:42","page":5,"comment_text":"note"}`)
		require.Equal(t, http.StatusCreated, code, body)

		code, body = do(t, e, http.MethodGet, "/annotations/online:42", "")
		require.Equal(t, http.StatusOK, code, body)
		assert.EqualValues(t, 2, body["total"])
	})

	t.Run("last opened book", func(t *testing.T) {
		code, body := do(t, e, http.MethodGet, "/books/last-opened", "")
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, "online:42:1", body["ref"])
	})

	t.Run("catalog listing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog/public", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"id":42,"title":"Forty Two"}]`, rec.Body.String())
	})

	t.Run("errors", func(t *testing.T) {
		code, body := do(t, e, http.MethodGet, "/progress/shelf:1", "")
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "validation_error", body["error"].(map[string]interface{})["code"])

		code, body = do(t, e, http.MethodGet, "/books/local/missing", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", body["error"].(map[string]interface{})["code"])

		code, _ = do(t, e, http.MethodGet, "/nope/nope/nope", "")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestServer_QueryLoggingFollowsDatabaseDebug(t *testing.T) {
	for _, debug := range []bool{false, true} {
		cfg := config.NewForTest()
		cfg.DocumentsDir = t.TempDir()
		cfg.DatabaseDebug = debug

		e, err := newEcho(cfg, setupTestDB(t), catalog.New(cfg), nil)
		require.NoError(t, err)
		e.GET("/query-logging", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]bool{"enabled": database.LoggingEnabled(c.Request().Context())})
		})

		code, body := do(t, e, http.MethodGet, "/query-logging", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, debug, body["enabled"])
	}
}
