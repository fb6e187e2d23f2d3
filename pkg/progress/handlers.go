package progress

import (
	"net/http"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	tracker *Tracker
}

type EventPayload struct {
	Ref             string  `json:"ref" validate:"required,bookref"`
	Type            string  `json:"type" mod:"trim,lcase" validate:"omitempty,oneof=init progress"`
	CurrentPosition int     `json:"current_position" validate:"min=0"`
	TotalExtent     int     `json:"total_extent" validate:"min=0"`
	Seq             int64   `json:"seq" validate:"min=0"`
	Location        *string `json:"location"`
}

type ApplyServerPayload struct {
	// Ratio defaults to the backend's current ratio for the book.
	Ratio *float64 `json:"ratio" validate:"omitempty,min=0,max=1"`
}

func (h *handler) record(c echo.Context) error {
	ctx := c.Request().Context()

	params := EventPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	ref, err := parseRef(params.Ref)
	if err != nil {
		return err
	}

	applied, err := h.tracker.OnReaderProgressEvent(ctx, Event{
		Ref:             ref,
		Type:            params.Type,
		CurrentPosition: params.CurrentPosition,
		TotalExtent:     params.TotalExtent,
		Seq:             params.Seq,
		Location:        params.Location,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]bool{"applied": applied}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := parseRef(c.Param("ref"))
	if err != nil {
		return err
	}

	ratio, err := h.tracker.DisplayRatio(ctx, ref)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Ref   models.BookRef `json:"ref"`
		Ratio float64        `json:"ratio"`
	}{ref, ratio}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) applyServer(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := parseRef(c.Param("ref"))
	if err != nil {
		return err
	}
	c.Set("disallow_empty_body", false)
	params := ApplyServerPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	var ratio float64
	if params.Ratio != nil {
		ratio = *params.Ratio
	} else {
		if !ref.IsOnline() {
			return errcodes.ValidationError("Local books have no server progress.")
		}
		r, ok := h.tracker.ServerProgress(ctx)[ref.OnlineID]
		if !ok {
			return errcodes.NotFound("Server progress")
		}
		ratio = r
	}

	position, applied, err := h.tracker.ApplyServerProgress(ctx, ref, ratio)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Applied  bool    `json:"applied"`
		Position int     `json:"position"`
		Ratio    float64 `json:"ratio"`
	}{applied, position, ratio}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func parseRef(s string) (models.BookRef, error) {
	ref, err := models.ParseBookRef(s)
	if err != nil {
		return models.BookRef{}, errcodes.ValidationError(err.Error())
	}
	return ref, nil
}
