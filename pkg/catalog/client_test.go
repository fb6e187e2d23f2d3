package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", 5*time.Second, 1024)
}

func TestClient_ListPublic(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/books/public", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":42,"title":"Forty Two","author":"Someone","imageUrl":"https://img/42.png","rating":4.5}]`)
	})

	books, err := client.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 42, books[0].ID)
	assert.Equal(t, "Forty Two", books[0].Title)
	require.NotNil(t, books[0].ImageURL)
	assert.Equal(t, "https://img/42.png", *books[0].ImageURL)
	assert.InDelta(t, 4.5, books[0].Rating, 0.0001)
}

func TestClient_PushProgress(t *testing.T) {
	t.Parallel()

	var got ProgressUpdate
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mobile/progress", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.PushProgress(context.Background(), ProgressUpdate{BookID: 42, Progress: 0.3, Position: 3})
	require.NoError(t, err)
	assert.Equal(t, ProgressUpdate{BookID: 42, Progress: 0.3, Position: 3}, got)
}

func TestClient_SyncProgress(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mobile/sync-progress", r.URL.Path)
		var body struct {
			Items []ProgressUpdate `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Items, 2)
		w.WriteHeader(http.StatusOK)
	})

	err := client.SyncProgress(context.Background(), []ProgressUpdate{{BookID: 1}, {BookID: 2}})
	require.NoError(t, err)
}

func TestClient_GetProgress(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"book":{"id":7,"title":"Seven"},"progress":0.25}]`)
	})

	progress, err := client.GetProgress(context.Background())
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, 7, progress[0].Book.ID)
	assert.InDelta(t, 0.25, progress[0].Progress, 0.0001)
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unauthorized", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.Home(context.Background())
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("status with json message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"no such book"}`)
		})
		err := client.RateBook(context.Background(), 3, 5)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "no such book", statusErr.Message)
	})

	t.Run("status with plain body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom\n")
		})
		_, err := client.GetProgress(context.Background())
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, "boom", statusErr.Message)
		assert.Equal(t, "catalog: HTTP 500: boom", statusErr.Error())
	})

	t.Run("malformed json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{not json`)
		})
		_, err := client.ListPublic(context.Background())
		assert.Error(t, err)
	})
}

func TestClient_DownloadBook(t *testing.T) {
	t.Parallel()

	t.Run("complete download", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/books/public/file/42", r.URL.Path)
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="forty-two.pdf"`)
			_, _ = io.WriteString(w, "%PDF-1.4")
		})

		d, err := client.DownloadBook(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4"), d.Content)
		assert.Equal(t, "application/pdf", d.ContentType)
		assert.Equal(t, "forty-two.pdf", d.Filename)
	})

	t.Run("too large", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(make([]byte, 2048))
		})

		_, err := client.DownloadBook(context.Background(), 1)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("short body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(100))
			_, _ = io.WriteString(w, "partial")
		})

		_, err := client.DownloadBook(context.Background(), 1)
		assert.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "%PDF-1.4")
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.DownloadBook(ctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
