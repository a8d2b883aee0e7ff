package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/quoteboard/pairing-server/internal/client"
	"github.com/quoteboard/pairing-server/internal/poller"
	"github.com/quoteboard/pairing-server/internal/qr"
)

func pairCommand() *cli.Command {
	return &cli.Command{
		Name:  "pair",
		Usage: "Create a pairing code, show it as a QR code and wait for a phone to approve it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "Pairing server base URL",
				Sources: cli.EnvVars("PAIRING_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:  "token-file",
				Usage: "Write the issued token to this file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "no-qr",
				Usage: "Only print the code and URL",
			},
		},
		Action: runPair,
	}
}

func runPair(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	api := client.New(cmd.String("server"), nil)

	created, err := api.CreatePairing(ctx)
	if err != nil {
		return fmt.Errorf("create pairing: %w", err)
	}

	if !cmd.Bool("no-qr") {
		art, err := qr.NewEncoder().Terminal(created.PairingURL)
		if err != nil {
			return fmt.Errorf("render qr code: %w", err)
		}
		fmt.Fprintln(out, art)
	}
	fmt.Fprintf(out, "Code: %s\nOpen: %s\nExpires: %s\n\n",
		created.DisplayCode, created.PairingURL, created.ExpiresAt.Local().Format(time.Kitchen))

	session := poller.New(api).Start(ctx, created.Code,
		time.Duration(created.PollIntervalMs)*time.Millisecond, created.ExpiresAt)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info().Msg("pairing cancelled")
		session.Cancel()
	case <-session.Done():
	}

	outcome, err := session.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("poll pairing status: %w", err)
	}

	switch outcome.Kind {
	case poller.OutcomeApproved:
		if outcome.Identity != nil {
			fmt.Fprintf(out, "Paired with %s\n", outcome.Identity.Email)
		}
		if path := cmd.String("token-file"); path != "" {
			if err := os.WriteFile(path, []byte(outcome.Token+"\n"), 0o600); err != nil {
				return fmt.Errorf("write token: %w", err)
			}
			return nil
		}
		fmt.Fprintln(out, outcome.Token)
		return nil
	case poller.OutcomeExpired:
		return errors.New("pairing code expired before it was approved")
	case poller.OutcomeConsumed:
		return errors.New("pairing was already claimed by another poller")
	case poller.OutcomeNotFound:
		return errors.New("pairing code no longer exists on the server")
	default:
		return fmt.Errorf("unexpected pairing outcome %q", outcome.Kind)
	}
}
