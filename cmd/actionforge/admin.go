package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/ActionForge/internal/adapter/postgres"
	"github.com/Strob0t/ActionForge/internal/config"
	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "list-proposals":
		return runAdminListProposals(args[1:])
	case "validate":
		return runAdminValidate(args[1:], os.Stdin, os.Stdout)
	case "policies":
		return runAdminPolicies(args[1:], os.Stdout)
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: actionforge admin <command> [options]

Commands:
  migrate-status   Print the current schema version
  rollback         Roll back the last migrations
  list-proposals   List recently recorded proposals
  validate         Normalize a candidate action document
  policies         List policy profiles
  help             Show this help message

Examples:
  actionforge admin rollback --steps 1
  actionforge admin list-proposals --limit 20
  actionforge admin validate --file candidate.json
  cat candidate.json | actionforge admin validate
`)
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Printf("schema version: %d\n", v)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return errors.New("--steps must be at least 1")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminListProposals(args []string) error {
	fs := flag.NewFlagSet("list-proposals", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of proposals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	list, err := postgres.NewStore(pool).ListProposals(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No proposals found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tPOLICY\tACTIONS\tAUTO\tDROPPED")
	for i := range list {
		p := &list[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			p.ID, p.CreatedAt.Format("2006-01-02 15:04:05"), p.Source, p.PolicyName,
			len(p.Actions), p.Evaluation.AutoEligibleCount(), p.Dropped)
	}
	return w.Flush()
}

// runAdminValidate normalizes a candidate document read from --file or a
// pipe on stdin.
func runAdminValidate(args []string, stdin *os.File, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	file := fs.String("file", "", "candidate JSON file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch {
	case *file != "":
		data, err = os.ReadFile(*file) //nolint:gosec // G304: operator-supplied path
	case term.IsTerminal(int(stdin.Fd())): //nolint:gosec // fd fits in int
		return errors.New("no input: pass --file or pipe a document on stdin")
	default:
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return fmt.Errorf("read candidate: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(action.Validate(data))
}

func runAdminPolicies(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("policies", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	custom, err := policy.LoadFromDirectory(cfg.Policy.CustomDir)
	if err != nil {
		return err
	}
	svc := service.NewPolicyService(cfg.Policy.DefaultProfile, custom)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTHRESHOLD\tALWAYS_REVIEW\tDEFAULT")
	for _, p := range svc.Profiles() {
		threshold := "-"
		if p.AutoApplyThreshold != nil {
			threshold = fmt.Sprintf("%.2f", *p.AutoApplyThreshold)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
			p.Name, threshold, strings.Join(p.AlwaysReviewFields, ","), p.Name == svc.DefaultProfile())
	}
	return w.Flush()
}
