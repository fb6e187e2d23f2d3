package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/annotations"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/binder"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/database"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/errcodes"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/progress"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/resolver"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// New builds the loopback API the reader UI talks to.
func New(cfg *config.Config, db *bun.DB, client *catalog.Client, tracker *progress.Tracker) (*http.Server, error) {
	e, err := newEcho(cfg, db, client, tracker)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, client *catalog.Client, tracker *progress.Tracker) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())
	if cfg.DatabaseDebug {
		e.Use(queryLogging)
	}

	health.RegisterRoutes(e)
	config.RegisterRoutes(e, cfg)

	// Book rows, plus opening, importing and removing their files
	booksGroup := e.Group("/books")
	books.RegisterRoutesWithGroup(booksGroup, db)
	resolver.RegisterRoutesWithGroup(booksGroup, resolver.New(cfg, books.NewService(db), client))

	progress.RegisterRoutesWithGroup(e.Group("/progress"), tracker)
	annotations.RegisterRoutesWithGroup(e.Group("/annotations"), db)
	catalog.RegisterRoutesWithGroup(e.Group("/catalog"), client)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}

// queryLogging marks every request context so the queries it runs are logged.
func queryLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(database.WithLogging(req.Context())))
		return next(c)
	}
}
