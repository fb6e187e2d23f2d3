package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/books"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/catalog"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/database"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/migrations"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/progress"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/server"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/version"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting bookreader", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := initDocumentsDir(cfg.DocumentsDir); err != nil {
		log.Err(err).Fatal("documents directory error")
	}
	log.Info("documents directory initialized", logger.Data{"path": cfg.DocumentsDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	client := catalog.New(cfg)
	wrkr := worker.New(cfg, client)
	tracker := progress.NewTracker(books.NewService(db), client, wrkr)
	wrkr.SetSyncer(tracker)

	srv, err := server.New(cfg, db, client, tracker)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initDocumentsDir creates the directories book files are stored in and
// verifies write permissions.
func initDocumentsDir(dir string) error {
	subdirs := []string{
		filepath.Join(dir, "local"),
		filepath.Join(dir, "online"),
	}

	for _, subdir := range subdirs {
		if err := os.MkdirAll(subdir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create documents directory: %s", subdir)
		}
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "documents directory is not writable: %s", dir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
