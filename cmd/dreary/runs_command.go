package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dreary/internal/ledger"
)

type runView struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	DID        string `json:"did"`
	Status     string `json:"status"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var output string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled import runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutput(output, outputTable, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if format != outputTable {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				return writeStructured(cmd, format, views)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Kind,
					string(run.Status),
					strconv.Itoa(run.Created),
					strconv.Itoa(run.Skipped),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					formatDuration(run.Duration()),
					run.Source,
					run.Error,
				})
			}
			fmt.Fprintln(out, renderTable(runColumns, rows, "run"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, or yaml")
	return cmd
}

var runColumns = []column{
	{Title: "ID"},
	{Title: "Kind"},
	{Title: "Status"},
	{Title: "Created", Numeric: true},
	{Title: "Skipped", Numeric: true},
	{Title: "Started"},
	{Title: "Took", Numeric: true},
	{Title: "Source", Width: 40},
	{Title: "Error", Width: 60},
}

func newRunView(run ledger.Run) runView {
	v := runView{
		ID:        run.ID,
		Kind:      run.Kind,
		Source:    run.Source,
		DID:       run.DID,
		Status:    string(run.Status),
		Created:   run.Created,
		Skipped:   run.Skipped,
		Error:     run.Error,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		v.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}

