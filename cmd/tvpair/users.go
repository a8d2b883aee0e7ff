package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/quoteboard/pairing-server/internal/database"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/util"
)

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Print a bcrypt hash of a password",
		ArgsUsage: "<password>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "cost",
				Value: bcrypt.DefaultCost,
				Usage: "bcrypt cost",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			password := cmd.Args().First()
			if password == "" {
				return errors.New("usage: tvpair hash-password <password>")
			}
			hash, err := util.HashPassword(password, cmd.Int("cost"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, hash)
			return nil
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Create an account that phones can sign in with",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{
				Name:     "email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Plain text password, hashed before storage",
				Sources:  cli.EnvVars("TVPAIR_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name",
			},
		},
		Action: runCreateUser,
	}
}

func runCreateUser(ctx context.Context, cmd *cli.Command) error {
	email := repository.NormalizeEmail(cmd.String("email"))
	if !util.IsValidEmail(email) {
		return fmt.Errorf("invalid email %q", cmd.String("email"))
	}

	hash, err := util.HashPassword(cmd.String("password"), 0)
	if err != nil {
		return err
	}

	return withDatabase(cmd, func(db *database.DB) error {
		user, err := repository.NewUserRepository(db.DB).Create(ctx, model.CreateUserParams{
			Email:        email,
			PasswordHash: hash,
			DisplayName:  cmd.String("name"),
		})
		if errors.Is(err, repository.ErrEmailTaken) {
			return fmt.Errorf("a user with email %s already exists", email)
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Fprintf(cmd.Root().Writer, "created user %s (%s)\n", user.ID, user.Email)
		return nil
	})
}
