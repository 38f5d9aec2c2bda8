package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imedwei/s3-backup-checker/internal/check"
	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/utils"
)

var checkConcurrency int

var checkCmd = &cobra.Command{
	Use:   "check [environment [backup]]",
	Short: "Check backups once and print the results",
	Long:  "Evaluate the selected backup rules (all of them by default) and exit non-zero if any backup is invalid.",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", 4, "Number of backups checked in parallel")
}

// checkRow is one line of the check table.
type checkRow struct {
	result check.Result
	err    error
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, err := setupLogging()
	if err != nil {
		return err
	}

	cfg, reg, err := loadRegistry(settings.ConfigPath)
	if err != nil {
		return err
	}

	rules, err := selectRules(reg, args)
	if err != nil {
		return err
	}

	storages, err := buildStorages(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	checker := check.New(reg, listers(storages), logger)
	rows := evaluateAll(cmd.Context(), checker, rules, checkConcurrency)

	failed := writeRows(cmd.OutOrStdout(), rows)
	if failed > 0 {
		return fmt.Errorf("%d of %d backup(s) not valid", failed, len(rows))
	}
	return nil
}

// selectRules narrows the registry down to the rules named by args.
func selectRules(reg *registry.Registry, args []string) ([]registry.Rule, error) {
	switch len(args) {
	case 0:
		return reg.Rules(), nil
	case 1:
		var rules []registry.Rule
		for _, rule := range reg.Rules() {
			if rule.Environment == args[0] {
				rules = append(rules, rule)
			}
		}
		if len(rules) == 0 {
			return nil, fmt.Errorf("environment %q: %w", args[0], registry.ErrNotConfigured)
		}
		return rules, nil
	default:
		rule, err := reg.Resolve(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []registry.Rule{rule}, nil
	}
}

// evaluateAll checks rules with at most limit listings in flight. Rows keep
// the order of rules.
func evaluateAll(ctx context.Context, checker *check.Checker, rules []registry.Rule, limit int) []checkRow {
	rows := make([]checkRow, len(rules))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, rule := range rules {
		g.Go(func() error {
			result, err := checker.Evaluate(ctx, rule)
			if err != nil {
				result.Rule = rule
			}
			rows[i] = checkRow{result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return rows
}

// writeRows prints rows as a table and returns how many were not valid.
func writeRows(out io.Writer, rows []checkRow) int {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENVIRONMENT\tBACKUP\tSTATUS\tAGE\tSIZE\tMESSAGE")

	failed := 0
	for _, row := range rows {
		rule := row.result.Rule
		if row.err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t%s\n", rule.Environment, rule.Name, "error", oneLine(row.err.Error()))
			continue
		}

		verdict := row.result.Verdict
		if !verdict.Valid() {
			failed++
		}

		age, size := "-", "-"
		if verdict.Object != nil {
			age = utils.FormatDuration(verdict.Age.Round(time.Second))
			size = utils.FormatBytes(verdict.Object.Size)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rule.Environment, rule.Name, verdict.Status, age, size, verdict.Message(rule))
	}
	_ = w.Flush()

	return failed
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
