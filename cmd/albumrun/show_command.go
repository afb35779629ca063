package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"albumrun/internal/history"
	"albumrun/internal/report"
)

type unitResultJSON struct {
	Position    int     `json:"position"`
	UnitID      string  `json:"unit_id"`
	Path        string  `json:"path"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	LogPath     string  `json:"log_path,omitempty"`
	DurationSec float64 `json:"duration_seconds"`
	Error       string  `json:"error,omitempty"`
}

type runDetailJSON struct {
	Run     runJSON          `json:"run"`
	Results []unitResultJSON `json:"results"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-folder results of a previous run",
		Long:  "Show per-folder results of a previous run. A unique prefix of the run id is accepted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				results, err := store.Results(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if failedOnly {
					filtered := results[:0]
					for _, r := range results {
						if r.Status == "failed" {
							filtered = append(filtered, r)
						}
					}
					results = filtered
				}

				if jsonOutput {
					payload := runDetailJSON{Run: toRunJSON(*run), Results: make([]unitResultJSON, 0, len(results))}
					for _, r := range results {
						payload.Results = append(payload.Results, unitResultJSON{
							Position:    r.Position + 1,
							UnitID:      r.UnitID,
							Path:        r.Path,
							Kind:        r.Kind,
							Status:      r.Status,
							Attempts:    r.Attempts,
							LogPath:     r.LogPath,
							DurationSec: r.Duration.Seconds(),
							Error:       r.Error,
						})
					}
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Run "+run.ShortID(), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("ID", statusInfo, run.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Root", statusInfo, run.Root, colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize))
				fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(*run), runStatus(*run), colorize))
				fmt.Fprintln(out, renderStatusLine("Units", statusInfo, fmt.Sprintf("%d total, %d succeeded, %d failed, %d skipped",
					run.Total, run.Succeeded, run.Failed, run.Skipped), colorize))
				fmt.Fprintln(out, renderStatusLine("Limits", statusInfo, fmt.Sprintf("max jobs %d, max retries %d", run.MaxJobs, run.MaxRetries), colorize))
				fmt.Fprintln(out, renderStatusLine("Dry run", statusInfo, yesNo(run.DryRun), colorize))
				fmt.Fprintln(out)

				if len(results) == 0 {
					if failedOnly {
						fmt.Fprintln(out, "No failed folders")
					} else {
						fmt.Fprintln(out, "No folder results recorded")
					}
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						strconv.Itoa(r.Position + 1),
						r.UnitID,
						r.Status,
						strconv.Itoa(r.Attempts),
						r.Duration.Round(time.Millisecond).String(),
						r.LogPath,
					})
				}
				fmt.Fprintln(out, report.RenderTable(
					[]string{"#", "Folder", "Status", "Attempts", "Duration", "Log"},
					rows,
					[]report.Alignment{
						report.AlignRight, report.AlignLeft, report.AlignLeft,
						report.AlignRight, report.AlignRight, report.AlignLeft,
					},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only list failed folders")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatusKind(run history.Run) statusKind {
	switch {
	case !run.Finished(), run.Interrupted:
		return statusWarn
	case run.Failed > 0:
		return statusError
	default:
		return statusOK
	}
}
