package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AnnotationKindBookmark = "bookmark"
	AnnotationKindComment  = "comment"
)

type Bookmark struct {
	bun.BaseModel `bun:"table:bookmarks,alias:bm" tstype:"-"`

	ID           int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	BookKind     BookKind  `bun:"book_kind,nullzero" json:"-"`
	BookKey      string    `bun:"book_key,nullzero" json:"-"`
	ChapterLabel *string   `bun:"chapter" json:"chapter_label"`
	Position     int       `bun:"position,notnull" json:"position"`
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c" tstype:"-"`

	ID           int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	BookKind     BookKind  `bun:"book_kind,nullzero" json:"-"`
	BookKey      string    `bun:"book_key,nullzero" json:"-"`
	Page         int       `bun:"page,notnull" json:"page"`
	SelectedText string    `bun:"selected_text,notnull" json:"selected_text"`
	CommentText  string    `bun:"comment,nullzero" json:"comment_text"`
}

// Annotation is the merged, display-ready view of a bookmark or a comment.
type Annotation struct {
	Kind         string    `json:"kind"`
	ID           int       `json:"id"`
	Book         BookRef   `json:"book"`
	Position     int       `json:"position"`
	ChapterLabel *string   `json:"chapter_label,omitempty"`
	SelectedText *string   `json:"selected_text,omitempty"`
	CommentText  *string   `json:"comment_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
