package books

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the read-only book routes. Routes that
// touch book files live with the resolver.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{bookService: NewService(db)}

	g.GET("/local", h.listLocal)
	g.GET("/local/:id", h.retrieveLocal)
	g.GET("/online", h.listOnline)
	g.GET("/online/:id", h.retrieveOnline)
	g.GET("/last-opened", h.lastOpened)
}
