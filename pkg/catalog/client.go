// Package catalog talks to the book catalog backend: public listings, book
// downloads, ratings and server-side reading progress.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// ErrUnauthorized is returned for 401 responses. Sending the user back to the
// login screen is up to the caller.
var ErrUnauthorized = errors.New("catalog: unauthorized")

// ErrTooLarge is returned when a download exceeds the configured size limit.
var ErrTooLarge = errors.New("catalog: download exceeds the maximum size")

// StatusError is returned for any other response with a status of 400 or above.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog: HTTP %d: %s", e.StatusCode, e.Message)
}

type Book struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Author   *string `json:"author,omitempty"`
	Format   string  `json:"format,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

type ProgressBook struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Author *string `json:"author,omitempty"`
}

// ServerProgress is the backend's record of how far the user got in a book,
// as a ratio between 0 and 1.
type ServerProgress struct {
	Book     ProgressBook `json:"book"`
	Progress float64      `json:"progress"`
}

type ProgressUpdate struct {
	BookID   int     `json:"bookId"`
	Progress float64 `json:"progress"`
	Position int     `json:"position"`
}

type Download struct {
	Content     []byte
	ContentType string
	Filename    string
}

type Client struct {
	baseURL          string
	token            string
	maxDownloadBytes int64
	httpClient       *http.Client
}

func New(cfg *config.Config) *Client {
	return NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.APITimeout, cfg.MaxDownloadBytes)
}

func NewClient(baseURL, token string, timeout time.Duration, maxDownloadBytes int64) *Client {
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		token:            token,
		maxDownloadBytes: maxDownloadBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) ListPublic(ctx context.Context) ([]Book, error) {
	var books []Book
	err := c.doJSON(ctx, http.MethodGet, "/books/public", nil, &books)
	return books, err
}

func (c *Client) Home(ctx context.Context) ([]Book, error) {
	var books []Book
	err := c.doJSON(ctx, http.MethodGet, "/books/home", nil, &books)
	return books, err
}

func (c *Client) RateBook(ctx context.Context, bookID int, rating int) error {
	body := struct {
		Rating int `json:"rating"`
	}{rating}
	return c.doJSON(ctx, http.MethodPost, "/books/"+strconv.Itoa(bookID)+"/rate", body, nil)
}

func (c *Client) GetProgress(ctx context.Context) ([]ServerProgress, error) {
	var progress []ServerProgress
	err := c.doJSON(ctx, http.MethodGet, "/mobile/progress", nil, &progress)
	return progress, err
}

func (c *Client) PushProgress(ctx context.Context, update ProgressUpdate) error {
	return c.doJSON(ctx, http.MethodPost, "/mobile/progress", update, nil)
}

func (c *Client) SyncProgress(ctx context.Context, updates []ProgressUpdate) error {
	body := struct {
		Items []ProgressUpdate `json:"items"`
	}{updates}
	return c.doJSON(ctx, http.MethodPost, "/mobile/sync-progress", body, nil)
}

// DownloadBook fetches the raw content of a catalog book. The whole body is
// read before returning, so a nil error means the content is complete.
func (c *Client) DownloadBook(ctx context.Context, bookID int) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, "/books/public/file/"+strconv.Itoa(bookID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	r := io.Reader(resp.Body)
	if c.maxDownloadBytes > 0 {
		r = io.LimitReader(resp.Body, c.maxDownloadBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if c.maxDownloadBytes > 0 && int64(len(content)) > c.maxDownloadBytes {
		return nil, errors.WithStack(ErrTooLarge)
	}
	if resp.ContentLength > 0 && int64(len(content)) != resp.ContentLength {
		return nil, errors.Errorf("catalog: short download, got %d of %d bytes", len(content), resp.ContentLength)
	}

	d := &Download{
		Content:     content,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		d.Filename = params["filename"]
	}
	return d, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.WithStack(err)
		}
		body = bytes.NewReader(b)
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return errors.Wrapf(err, "catalog: decoding %s %s", method, path)
	}
	return nil
}

// do sends the request and turns error statuses into errors. On success the
// caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.WithStack(ErrUnauthorized)
	}
	return nil, errors.WithStack(&StatusError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.Body),
	})
}

func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(b))
}
