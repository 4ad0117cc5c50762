package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"styletransfer/internal/accounts"
	"styletransfer/internal/backend"
	"styletransfer/internal/docstore"
	"styletransfer/internal/infra"
	"styletransfer/internal/notify"
)

type command struct {
	list     bool
	requests bool
	add      bool
	remove   bool
	email    string
	password string
}

func main() {
	var cmd command
	flag.BoolVar(&cmd.list, "list", false, "list user accounts")
	flag.BoolVar(&cmd.requests, "requests", false, "list permission requests")
	flag.BoolVar(&cmd.add, "add", false, "create a user (requires -email and -password)")
	flag.BoolVar(&cmd.remove, "delete", false, "delete a user (requires -email)")
	flag.StringVar(&cmd.email, "email", "", "user email")
	flag.StringVar(&cmd.password, "password", "", "password for -add")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := infra.LoadStoreConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "useradmin").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		exitWithError(fmt.Errorf("failed to open object store: %w", err))
	}
	defer store.Close()

	svc := accounts.NewService(docstore.New(store.Repo, logger), accounts.Options{
		Notifier: notify.NewLogNotifier(logger),
		Logger:   logger,
	})
	if err := run(ctx, cmd, svc, os.Stdout); err != nil {
		exitWithError(err)
	}
}

func run(ctx context.Context, cmd command, svc *accounts.Service, out io.Writer) error {
	email := strings.TrimSpace(cmd.email)
	switch {
	case cmd.add:
		if email == "" || cmd.password == "" {
			return errors.New("-add needs -email and -password")
		}
		user, err := svc.CreateUser(ctx, email, cmd.password)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(out, "created %s\n", user.Email)
	case cmd.remove:
		if email == "" {
			return errors.New("-delete needs -email")
		}
		if err := svc.DeleteUser(ctx, email); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		fmt.Fprintf(out, "deleted %s\n", accounts.NormalizeEmail(email))
	case cmd.requests:
		reqs, err := svc.ListRequests(ctx)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Email, r.Timestamp.UTC().Format(time.RFC3339))
		}
	case cmd.list:
		users, err := svc.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(out, "%s\t%s\n", u.Email, u.CreatedAt.UTC().Format(time.RFC3339))
		}
	default:
		return errors.New("one of -list, -requests, -add or -delete is required")
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
