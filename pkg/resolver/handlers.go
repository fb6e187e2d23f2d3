package resolver

import (
	"net/http"
	"strconv"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	resolver *Resolver
}

func (h *handler) openOnline(c echo.Context) error {
	ctx := c.Request().Context()

	params := CatalogBook{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.resolver.OpenOnline(ctx, params)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) openCached(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Online book")
	}

	book, err := h.resolver.OpenCached(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) evictOnline(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Online book")
	}

	err = h.resolver.EvictOnline(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) importLocal(c echo.Context) error {
	ctx := c.Request().Context()

	params := PickedFile{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.resolver.ImportLocal(ctx, params)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) openLocal(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.resolver.OpenLocal(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) removeLocal(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.resolver.RemoveLocal(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
