package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/quoteboard/pairing-server/internal/database"
)

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Postgres DSN",
		Sources:  cli.EnvVars("DATABASE_URL"),
		Required: true,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back database migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Flags: []cli.Flag{databaseURLFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(cmd, func(db *database.DB) error {
						return database.RunMigrations(db.DB.DB)
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Flags: []cli.Flag{databaseURLFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(cmd, func(db *database.DB) error {
						return database.MigrateDown(db.DB.DB)
					})
				},
			},
		},
	}
}

func withDatabase(cmd *cli.Command, fn func(db *database.DB) error) error {
	db, err := database.Connect(cmd.String("database-url"))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := fn(db); err != nil {
		return err
	}
	log.Info().Str("command", cmd.Name).Msg("migrations done")
	return nil
}
