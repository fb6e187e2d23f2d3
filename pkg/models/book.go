package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	FormatPDF  = "pdf"
	FormatEPUB = "epub"
)

// LocalBook is a book imported from the device filesystem. It has no backend
// identity.
type LocalBook struct {
	bun.BaseModel `bun:"table:local_books,alias:lb" tstype:"-"`

	ID              string     `bun:",pk" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Title           string     `bun:",nullzero" json:"title"`
	Author          *string    `json:"author"`
	Filepath        string     `bun:"filepath,nullzero" json:"file_path"`
	Format          string     `bun:",nullzero" json:"format"`
	Base64Content   *string    `bun:"base64" json:"-"`
	ContentHash     string     `bun:",nullzero" json:"content_hash"`
	CurrentPosition int        `bun:"current_position,notnull" json:"current_position"`
	TotalExtent     int        `bun:"total_extent,notnull" json:"total_extent"`
	Location        *string    `json:"location"`
	ProgressSeq     int64      `bun:"progress_seq,notnull" json:"-"`
	LastOpenedAt    *time.Time `json:"last_opened_at"`
}

func (b *LocalBook) Ref() BookRef {
	return LocalRef(b.ID)
}

func (b *LocalBook) Progress() (int, int) {
	return b.CurrentPosition, b.TotalExtent
}

// OnlineBook is the local cache row of a catalog book that has been opened at
// least once. OnlineID is unique across rows.
type OnlineBook struct {
	bun.BaseModel `bun:"table:online_books,alias:ob" tstype:"-"`

	ID              int        `bun:",pk,autoincrement" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	OnlineID        int        `bun:"online_id,notnull" json:"online_id"`
	Title           string     `bun:",nullzero" json:"title"`
	Author          *string    `json:"author"`
	Filepath        string     `bun:"path,nullzero" json:"file_path"`
	Format          string     `bun:",nullzero" json:"format"`
	Base64Content   *string    `bun:"base64" json:"-"`
	ImageURL        *string    `bun:"image_url" json:"image_url"`
	CurrentPosition int        `bun:"current_page,notnull" json:"current_position"`
	TotalExtent     int        `bun:"total_pages,notnull" json:"total_extent"`
	Location        *string    `json:"location"`
	ProgressSeq     int64      `bun:"progress_seq,notnull" json:"-"`
	LastOpenedAt    *time.Time `json:"last_opened_at"`
}

func (b *OnlineBook) Ref() BookRef {
	return OnlineRef(b.ID, b.OnlineID)
}

func (b *OnlineBook) Progress() (int, int) {
	return b.CurrentPosition, b.TotalExtent
}

// IsSupportedFormat reports whether the reader can open books of format f.
func IsSupportedFormat(f string) bool {
	return f == FormatPDF || f == FormatEPUB
}
