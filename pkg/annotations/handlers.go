package annotations

import (
	"net/http"
	"strconv"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	manager *Manager
}

type TogglePayload struct {
	Ref          string  `json:"ref" validate:"required,bookref"`
	Position     int     `json:"position" validate:"min=0"`
	ChapterLabel *string `json:"chapter_label" mod:"trim"`
}

type RemoveBookmarkQuery struct {
	Ref      string `query:"ref" validate:"required,bookref"`
	Position int    `query:"position" validate:"min=0"`
}

type CommentPayload struct {
	Ref          string `json:"ref" validate:"required,bookref"`
	Page         int    `json:"page" validate:"min=0"`
	SelectedText string `json:"selected_text"`
	CommentText  string `json:"comment_text" mod:"trim" validate:"required"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := parseRef(c.Param("ref"))
	if err != nil {
		return err
	}

	annotations, err := h.manager.ListAnnotations(ctx, ref)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Annotations []*models.Annotation `json:"annotations"`
		Total       int                  `json:"total"`
	}{annotations, len(annotations)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) toggleBookmark(c echo.Context) error {
	ctx := c.Request().Context()

	params := TogglePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	ref, err := parseRef(params.Ref)
	if err != nil {
		return err
	}

	bookmarked, err := h.manager.ToggleBookmark(ctx, ref, params.Position, params.ChapterLabel)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]bool{"bookmarked": bookmarked}))
}

func (h *handler) removeBookmark(c echo.Context) error {
	ctx := c.Request().Context()

	params := RemoveBookmarkQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	ref, err := parseRef(params.Ref)
	if err != nil {
		return err
	}

	err = h.manager.RemoveBookmark(ctx, ref, params.Position)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) saveComment(c echo.Context) error {
	ctx := c.Request().Context()

	params := CommentPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	ref, err := parseRef(params.Ref)
	if err != nil {
		return err
	}

	comment, err := h.manager.SaveComment(ctx, ref, AddCommentOptions{
		Page:         params.Page,
		SelectedText: params.SelectedText,
		CommentText:  params.CommentText,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, comment))
}

func (h *handler) deleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Comment")
	}

	err = h.manager.DeleteComment(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func parseRef(s string) (models.BookRef, error) {
	ref, err := models.ParseBookRef(s)
	if err != nil {
		return models.BookRef{}, errcodes.ValidationError(err.Error())
	}
	return ref, nil
}
