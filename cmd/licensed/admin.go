package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/term"

	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/adapter/postgres"
	"github.com/Strob0t/licensed/internal/config"
	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "create-api-key":
		return runAdminCreateAPIKey(args[1:])
	case "list-api-keys":
		return runAdminListAPIKeys(args[1:])
	case "revoke-api-key":
		return runAdminRevokeAPIKey(args[1:])
	case "reconcile-seats":
		return runAdminReconcileSeats(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: licensed admin <command> [options]

Commands:
  migrate           Apply, roll back or inspect schema migrations
  create-api-key    Create a management API key
  list-api-keys     List API keys
  revoke-api-key    Revoke an API key
  reconcile-seats   Recount activations and repair active_seats
  help              Show this help message

Examples:
  licensed admin migrate up
  licensed admin migrate down --steps 1
  licensed admin create-api-key --name ops --expires-in 2592000
  licensed admin revoke-api-key --id 3
  licensed admin reconcile-seats --license-id 42
`)
}

type adminDeps struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store *postgres.Store
}

func loadAdminDeps(ctx context.Context) (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	deps := &adminDeps{cfg: cfg, pool: pool, store: postgres.NewStore(pool)}
	return deps, pool.Close, nil
}

func runAdminMigrate(args []string) error {
	action := "up"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back (down only)")
	yes := fs.Bool("yes", false, "skip the confirmation prompt (down only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch action {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if *steps < 1 {
			return fmt.Errorf("--steps must be >= 1")
		}
		if !*yes {
			ok, err := confirm(fmt.Sprintf("Roll back %d migration(s)?", *steps))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("aborted")
			}
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action: %s (want up, down or status)", action)
	}

	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Schema version: %d\n", version)
	return nil
}

func runAdminCreateAPIKey(args []string) error {
	fs := flag.NewFlagSet("create-api-key", flag.ContinueOnError)
	name := fs.String("name", "", "key name (required)")
	brandID := fs.Int64("brand-id", 0, "restrict the key to a brand")
	expiresIn := fs.Int("expires-in", 0, "lifetime in seconds (0 = never expires)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := apikey.CreateRequest{Name: *name, ExpiresIn: *expiresIn}
	if *brandID > 0 {
		req.BrandID = brandID
	}
	authSvc := service.NewAuthService(deps.store, deps.cfg.Auth, nil)
	resp, err := authSvc.CreateAPIKey(ctx, req)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	// Scripts capturing stdout get the bare key.
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		fmt.Println(resp.PlainKey)
		return nil
	}
	fmt.Fprintf(os.Stderr, "API key created: %s (id=%d)\n", resp.APIKey.Name, resp.APIKey.ID)
	fmt.Fprintln(os.Stderr, "Store it now; it cannot be shown again:")
	fmt.Println()
	fmt.Println("  " + resp.PlainKey)
	fmt.Println()
	return nil
}

func runAdminListAPIKeys(args []string) error {
	fs := flag.NewFlagSet("list-api-keys", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	keys, err := service.NewAuthService(deps.store, deps.cfg.Auth, nil).ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No API keys found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPREFIX\tACTIVE\tLAST_USED\tEXPIRES")
	for i := range keys {
		k := &keys[i]
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
			k.ID, k.Name, k.Prefix, k.IsActive, timeOrDash(k.LastUsedAt), timeOrDash(k.ExpiresAt))
	}
	return w.Flush()
}

func runAdminRevokeAPIKey(args []string) error {
	fs := flag.NewFlagSet("revoke-api-key", flag.ContinueOnError)
	id := fs.Int64("id", 0, "API key id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("--id is required")
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := service.NewAuthService(deps.store, deps.cfg.Auth, nil).RevokeAPIKey(ctx, *id); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	fmt.Fprintf(os.Stderr, "API key %d revoked\n", *id)
	return nil
}

func runAdminReconcileSeats(args []string) error {
	fs := flag.NewFlagSet("reconcile-seats", flag.ContinueOnError)
	licenseID := fs.Int64("license-id", 0, "reconcile a single license (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return err
	}
	ledger := service.NewLedger(deps.store, nil, metrics)

	var changed []string
	if *licenseID > 0 {
		res, err := ledger.Reconcile(ctx, *licenseID)
		if err != nil {
			return fmt.Errorf("reconcile license %d: %w", *licenseID, err)
		}
		if res.Changed() {
			changed = append(changed, fmt.Sprintf("%d\t%d\t%d", res.LicenseID, res.Before, res.After))
		}
	} else {
		results, err := ledger.ReconcileAll(ctx)
		for _, res := range results {
			changed = append(changed, fmt.Sprintf("%d\t%d\t%d", res.LicenseID, res.Before, res.After))
		}
		if err != nil {
			printReconciled(changed)
			return fmt.Errorf("reconcile: %w", err)
		}
	}

	printReconciled(changed)
	return nil
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func printReconciled(rows []string) {
	if len(rows) == 0 {
		fmt.Println("All seat counters match their activations.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LICENSE\tBEFORE\tAFTER")
	for _, r := range rows {
		_, _ = fmt.Fprintln(w, r)
	}
	_ = w.Flush()
	fmt.Fprintf(os.Stderr, "%d license(s) repaired\n", len(rows))
}

// confirm asks a yes/no question on the terminal. Without a terminal it
// refuses, so unattended runs must pass --yes.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		return false, fmt.Errorf("not a terminal; pass --yes to confirm")
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	ok, _ := strconv.ParseBool(strings.TrimSpace(line))
	return ok || strings.EqualFold(strings.TrimSpace(line), "y"), nil
}
