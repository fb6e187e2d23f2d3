package resolver

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers the routes that open, import and remove
// book files. It shares the /books group with the read-only book routes.
func RegisterRoutesWithGroup(g *echo.Group, r *Resolver) {
	h := &handler{resolver: r}

	g.POST("/online/open", h.openOnline)
	g.POST("/online/:id/open", h.openCached)
	g.DELETE("/online/:id", h.evictOnline)
	g.POST("/local/import", h.importLocal)
	g.POST("/local/:id/open", h.openLocal)
	g.DELETE("/local/:id", h.removeLocal)
}
