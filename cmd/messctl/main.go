// Command messctl runs ledger operations against the database directly:
// bootstrapping members, issuing tokens and closing months offline.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dukerupert/messledger/internal/archive"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/config"
	"github.com/dukerupert/messledger/internal/database"
	"github.com/dukerupert/messledger/internal/email"
	"github.com/dukerupert/messledger/internal/logging"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/dukerupert/messledger/internal/settlement"
	"github.com/dukerupert/messledger/internal/store"
)

const usage = `usage: messctl <command> [flags]

commands:
  user      create a member and print a token for it
  token     issue a token for an existing member
  validate  preview the close of a month
  close     close a month and lock its records`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	cmd, args := os.Args[1], os.Args[2:]
	var run func(context.Context, config.Config, *slog.Logger, []string) error
	switch cmd {
	case "user":
		run = createUser
	case "token":
		run = issueToken
	case "validate":
		run = validateMonth
	case "close":
		run = closeMonth
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), cfg, logger, args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	return database.Open(cfg.DBPath)
}

func tokenManager(cfg config.Config) (*auth.TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("MESSLEDGER_JWT_SECRET is required to issue tokens")
	}
	return auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL), nil
}

func createUser(ctx context.Context, cfg config.Config, _ *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	name := fs.String("name", "", "member name")
	mail := fs.String("email", "", "member email")
	role := fs.String("role", string(model.RoleAdmin), "admin, manager or member")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	if !model.Role(*role).Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}
	tokens, err := tokenManager(cfg)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := store.NewUserStore(db).Create(ctx, *name, *mail, model.Role(*role))
	if err != nil {
		return err
	}
	token, err := tokens.Generate(u.ID, u.Role)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (id %d, %s)\n%s\n", u.Name, u.ID, u.Role, token)
	return nil
}

func issueToken(ctx context.Context, cfg config.Config, _ *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	id := fs.Int64("user", 0, "member id")
	role := fs.String("role", "", "expected role; refuses if the member has another")
	fs.Parse(args)

	tokens, err := tokenManager(cfg)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := store.NewUserStore(db).GetByID(ctx, *id)
	if err != nil {
		return err
	}
	if u == nil || !u.Active {
		return fmt.Errorf("no active member with id %d", *id)
	}
	if *role != "" && model.Role(*role) != u.Role {
		return fmt.Errorf("member %d has role %s, not %s", u.ID, u.Role, *role)
	}
	token, err := tokens.Generate(u.ID, u.Role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func monthFlag(fs *flag.FlagSet, args []string) (month.Key, error) {
	m := fs.String("month", "", "month as YYYY-MM")
	fs.Parse(args)
	return month.Parse(*m)
}

func validateMonth(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	m, err := monthFlag(flag.NewFlagSet("validate", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := settlement.NewEngine(settlement.NewSQLRunner(db), cfg.MealWeighting, logger)
	res, err := engine.Validate(ctx, m)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func closeMonth(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	by := fs.String("by", "", "id of the admin closing the month")
	m, err := monthFlag(fs, args)
	if err != nil {
		return err
	}
	closedBy, err := strconv.ParseInt(*by, 10, 64)
	if err != nil {
		return fmt.Errorf("-by: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := store.NewLedger(db)
	admin, err := ledger.Users.GetByID(ctx, closedBy)
	if err != nil {
		return err
	}
	if admin == nil || !admin.Active || admin.Role != model.RoleAdmin {
		return fmt.Errorf("member %d is not an active admin", closedBy)
	}

	archives := archive.NewManager(cfg.S3, cfg.ArchivePassphrase, store.NewArchiveStore(db), ledger.Reports, logger.With("component", "archive"))
	mailer := email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom, email.WithCurrency(cfg.CurrencySymbol))
	statements := email.NewStatements(mailer, ledger.Users, nil, logger.With("component", "email"))

	engine := settlement.NewEngine(settlement.NewSQLRunner(db), cfg.MealWeighting, logger,
		settlement.WithHooks(archives.Hook(), statements.Hook()),
	)
	report, err := engine.Close(ctx, m, closedBy)
	if err != nil {
		return err
	}
	archives.Wait()
	statements.Wait()
	return printJSON(report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
