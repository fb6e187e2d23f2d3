package catalog

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutesWithGroup(g *echo.Group, client *Client) {
	h := &handler{client: client}

	g.GET("/public", h.listPublic)
	g.GET("/home", h.home)
	g.POST("/books/:id/rate", h.rate)
}
