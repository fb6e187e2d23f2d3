package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS local_books (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT,
				filepath TEXT NOT NULL,
				format TEXT NOT NULL,
				base64 TEXT,
				content_hash TEXT NOT NULL,
				current_position INTEGER NOT NULL DEFAULT 0,
				total_extent INTEGER NOT NULL DEFAULT 0,
				last_opened_at TIMESTAMPTZ
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_local_books_content_hash ON local_books (content_hash)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS online_books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				online_id INTEGER NOT NULL,
				title TEXT NOT NULL,
				author TEXT,
				path TEXT NOT NULL,
				format TEXT NOT NULL,
				base64 TEXT,
				image_url TEXT,
				current_page INTEGER NOT NULL DEFAULT 0,
				total_pages INTEGER NOT NULL DEFAULT 0,
				last_opened_at TIMESTAMPTZ
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// One cache row per catalog book.
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_online_books_online_id ON online_books (online_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS bookmarks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_kind TEXT NOT NULL,
				book_key TEXT NOT NULL,
				chapter TEXT,
				position INTEGER NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_bookmarks_book_position ON bookmarks (book_kind, book_key, position)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS comments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_kind TEXT NOT NULL,
				book_key TEXT NOT NULL,
				page INTEGER NOT NULL,
				selected_text TEXT NOT NULL DEFAULT '',
				comment TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_comments_book ON comments (book_kind, book_key)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"comments", "bookmarks", "online_books", "local_books"} {
			_, err := db.Exec(`DROP TABLE IF EXISTS ` + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
