package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/parleyhq/parley/internal/adapter/postgres"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/service"
)

// runAdmin handles `parley admin <subcommand>` maintenance operations.
func runAdmin(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: parley admin <create-user|init>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store, store)

	switch args[0] {
	case "create-user":
		return adminCreateUser(ctx, authSvc, args[1:])
	case "init":
		return adminInit(ctx, store, authSvc)
	default:
		return fmt.Errorf("unknown admin subcommand %q", args[0])
	}
}

// adminCreateUser registers a user and prints the API token once.
func adminCreateUser(ctx context.Context, authSvc *service.AuthService, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email (required)")
	tier := fs.String("tier", string(billing.TierFree), "billing tier: free, paid, or self_key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	u, token, err := authSvc.CreateUser(ctx, *email, password, billing.Tier(*tier))
	if err != nil {
		return err
	}

	fmt.Printf("user created: %s (%s, tier %s)\n", u.Email, u.ID, u.Tier)
	fmt.Printf("API token (shown once, store it now): %s\n", token)
	return nil
}

// adminInit creates the default admin user that auth-disabled deployments
// attribute usage to. Idempotent.
func adminInit(ctx context.Context, store *postgres.Store, authSvc *service.AuthService) error {
	if _, err := store.GetUser(ctx, middleware.DefaultAdminID); err == nil {
		fmt.Println("default admin already exists")
		return nil
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	u, token, err := authSvc.CreateUser(ctx, "admin@localhost", password, billing.TierPaid)
	if err != nil {
		return err
	}
	// Pin the well-known id so auth-disabled requests resolve to this row.
	if _, err := store.Pool().Exec(ctx,
		`UPDATE users SET id = $1 WHERE id = $2`, middleware.DefaultAdminID, u.ID); err != nil {
		return fmt.Errorf("pin admin id: %w", err)
	}

	fmt.Printf("default admin created (%s)\n", middleware.DefaultAdminID)
	fmt.Printf("API token (shown once, store it now): %s\n", token)
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(raw), nil
}
