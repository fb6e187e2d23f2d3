package books

import (
	"net/http"
	"strconv"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	bookService *Service
}

func (h *handler) listLocal(c echo.Context) error {
	ctx := c.Request().Context()

	books, err := h.bookService.ListLocalBooks(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.LocalBook `json:"books"`
		Total int                 `json:"total"`
	}{books, len(books)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieveLocal(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	book, err := h.bookService.RetrieveLocalBook(ctx, RetrieveLocalBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) listOnline(c echo.Context) error {
	ctx := c.Request().Context()

	books, err := h.bookService.ListOnlineBooks(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.OnlineBook `json:"books"`
		Total int                  `json:"total"`
	}{books, len(books)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieveOnline(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Online book")
	}

	book, err := h.bookService.RetrieveOnlineBook(ctx, RetrieveOnlineBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) lastOpened(c echo.Context) error {
	ctx := c.Request().Context()

	last, err := h.bookService.RetrieveLastOpened(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, last))
}
