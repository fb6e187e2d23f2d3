package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/config"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/database"
	"github.com/Spaceecs/book-reader-client-sub000/pkg/migrations"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	var (
		db       *bun.DB
		migrator *migrate.Migrator
	)

	app := &cli.App{
		Name:        "migrations",
		Usage:       "manage the reader's local database schema",
		Description: "Applies, rolls back and creates migrations for the embedded book store.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database",
				Usage: "path of the store to migrate, overriding DATABASE_FILE_PATH",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if path := c.String("database"); path != "" {
				cfg.DatabaseFilePath = path
			}
			db, err = database.New(cfg)
			if err != nil {
				return err
			}
			migrator = migrate.NewMigrator(db, migrations.Migrations)
			return nil
		},
		After: func(_ *cli.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return migrator.Init(c.Context)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					group, err := migrator.Migrate(c.Context)
					if err != nil {
						return err
					}
					reportGroup(group, "Migrated to", "There are no new migrations to run")
					return nil
				},
			},
			{
				Name:  "up-to-date",
				Usage: "create migration tables if needed and apply every pending migration",
				Action: func(c *cli.Context) error {
					group, err := migrations.BringUpToDate(c.Context, db)
					if err != nil {
						return err
					}
					reportGroup(group, "Migrated to", "Already up to date")
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}
					reportGroup(group, "Rolled back", "There are no groups to roll back")
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "create a Go migration",
				ArgsUsage: "<words of the migration name>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("a migration name is required", 1)
					}
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
					if err != nil {
						return err
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Migrations: %s\n", ms)
					fmt.Printf("Unapplied migrations: %s\n", ms.Unapplied())
					fmt.Printf("Last migration group: %s\n", ms.LastGroup())
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("migrations failed")
	}
}

func reportGroup(group *migrate.MigrationGroup, done, empty string) {
	if group.ID == 0 {
		fmt.Println(empty)
		return
	}
	fmt.Printf("%s %s\n", done, group)
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
