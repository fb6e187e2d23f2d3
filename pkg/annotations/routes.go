package annotations

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{manager: NewManager(db)}

	g.GET("/:ref", h.list)
	g.POST("/bookmarks/toggle", h.toggleBookmark)
	g.DELETE("/bookmarks", h.removeBookmark)
	g.POST("/comments", h.saveComment)
	g.DELETE("/comments/:id", h.deleteComment)
}
