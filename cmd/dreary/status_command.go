package main

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dreary/internal/ledger"
	"dreary/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, directories, PDS reachability, and the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := newStatusReport(cmd.OutOrStdout())

			report.section("Checks")
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				report.check(r)
			}

			report.section("Ledger")
			reportLedger(cmd, report, cfg.LedgerPath())

			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}

func reportLedger(cmd *cobra.Command, report *statusReport, path string) {
	store, err := ledger.OpenPath(path)
	if err != nil {
		report.line("Database", statusError, err.Error())
		return
	}
	defer store.Close()

	report.line("Database", statusOK, path)
	runs, err := store.ListRuns(cmd.Context(), 1)
	switch {
	case err != nil:
		report.line("Last run", statusError, err.Error())
	case len(runs) == 0:
		report.line("Last run", statusInfo, "none")
	default:
		run := runs[0]
		kind := statusOK
		if run.Status == ledger.RunFailed {
			kind = statusWarn
		}
		detail := []string{run.Kind, string(run.Status), run.StartedAt.Local().Format("2006-01-02 15:04")}
		if run.Created > 0 {
			detail = append(detail, strconv.Itoa(run.Created)+" created")
		}
		report.line("Last run", kind, strings.Join(detail, ", "))
	}
}
