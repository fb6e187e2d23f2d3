package progress

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutesWithGroup(g *echo.Group, t *Tracker) {
	h := &handler{tracker: t}

	g.POST("", h.record)
	g.GET("/:ref", h.retrieve)
	g.POST("/:ref/apply-server", h.applyServer)
}
