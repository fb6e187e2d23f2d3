package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// progress_seq orders renderer events so that stale ones can be
		// discarded. location holds the EPUB CFI of the last position.
		for _, table := range []string{"local_books", "online_books"} {
			_, err := db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN progress_seq INTEGER NOT NULL DEFAULT 0`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN location TEXT`)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		_, err := db.Exec(`CREATE INDEX IF NOT EXISTS ix_local_books_last_opened_at ON local_books (last_opened_at)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_online_books_last_opened_at ON online_books (last_opened_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"local_books", "online_books"} {
			_, err := db.Exec(`ALTER TABLE ` + table + ` DROP COLUMN progress_seq`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = db.Exec(`ALTER TABLE ` + table + ` DROP COLUMN location`)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
