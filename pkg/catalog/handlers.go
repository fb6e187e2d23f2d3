package catalog

import (
	"net/http"
	"strconv"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	client *Client
}

type RatePayload struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

func (h *handler) listPublic(c echo.Context) error {
	books, err := h.client.ListPublic(c.Request().Context())
	if err != nil {
		return upstreamError(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, books))
}

func (h *handler) home(c echo.Context) error {
	books, err := h.client.Home(c.Request().Context())
	if err != nil {
		return upstreamError(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, books))
}

func (h *handler) rate(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Catalog book")
	}

	params := RatePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	err = h.client.RateBook(c.Request().Context(), id, params.Rating)
	if err != nil {
		return upstreamError(err)
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func upstreamError(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return errcodes.Unauthorized()
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return errcodes.NotFound("Catalog book")
	}
	return errcodes.FetchFailure(err)
}
