package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"albumrun/internal/history"
	"albumrun/internal/report"
)

type runJSON struct {
	ID          string  `json:"id"`
	Root        string  `json:"root"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  string  `json:"finished_at,omitempty"`
	DurationSec float64 `json:"duration_seconds,omitempty"`
	MaxJobs     int     `json:"max_jobs"`
	MaxRetries  int     `json:"max_retries"`
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	DryRun      bool    `json:"dry_run"`
	Interrupted bool    `json:"interrupted"`
}

func toRunJSON(run history.Run) runJSON {
	payload := runJSON{
		ID:          run.ID,
		Root:        run.Root,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		MaxJobs:     run.MaxJobs,
		MaxRetries:  run.MaxRetries,
		Total:       run.Total,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Skipped:     run.Skipped,
		DryRun:      run.DryRun,
		Interrupted: run.Interrupted,
	}
	if run.Finished() {
		payload.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
		payload.DurationSec = run.Duration().Seconds()
	}
	return payload
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					payload := make([]runJSON, 0, len(runs))
					for _, run := range runs {
						payload = append(payload, toRunJSON(run))
					}
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ShortID(),
						run.StartedAt.Local().Format("2006-01-02 15:04"),
						runStatus(run),
						strconv.Itoa(run.Total),
						strconv.Itoa(run.Succeeded),
						strconv.Itoa(run.Failed),
						formatRunDuration(run),
						run.Root,
					})
				}
				fmt.Fprintln(out, report.RenderTable(
					[]string{"Run", "Started", "Status", "Total", "OK", "Failed", "Duration", "Root"},
					rows,
					[]report.Alignment{
						report.AlignLeft, report.AlignLeft, report.AlignLeft,
						report.AlignRight, report.AlignRight, report.AlignRight,
						report.AlignRight, report.AlignLeft,
					},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(run history.Run) string {
	switch {
	case !run.Finished():
		return "incomplete"
	case run.Interrupted:
		return "interrupted"
	case run.Failed > 0:
		return "failed"
	case run.DryRun:
		return "dry-run"
	default:
		return "ok"
	}
}

func formatRunDuration(run history.Run) string {
	if !run.Finished() {
		return "-"
	}
	return run.Duration().Round(time.Second).String()
}
