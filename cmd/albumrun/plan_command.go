package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"albumrun/internal/classify"
	"albumrun/internal/config"
	"albumrun/internal/logging"
	"albumrun/internal/report"
)

type planUnitJSON struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
}

type planJSON struct {
	Root      string         `json:"root"`
	Total     int            `json:"total"`
	Single    int            `json:"single"`
	MultiDisc int            `json:"multi_disc"`
	Units     []planUnitJSON `json:"units"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan <root>",
		Short: "Show the album folders a run would process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve root: %w", err)
			}
			classifier, err := classify.New(classify.Options{
				Ignore:      cfg.Classifier.Ignore,
				DiscPattern: cfg.Classifier.DiscPattern,
				Logger:      logging.NewNop(),
			})
			if err != nil {
				return err
			}
			units, err := classifier.Classify(root)
			if err != nil {
				return err
			}
			plan := classify.NewPlan(root, units)

			if jsonOutput {
				payload := planJSON{
					Root:      plan.Root,
					Total:     plan.Total(),
					Single:    plan.Singles,
					MultiDisc: plan.MultiDisc,
					Units:     make([]planUnitJSON, 0, len(plan.Units)),
				}
				for i, u := range plan.Units {
					payload.Units = append(payload.Units, planUnitJSON{Position: i + 1, ID: u.ID, Path: u.Path, Kind: string(u.Kind)})
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if plan.Total() == 0 {
				fmt.Fprintf(out, "No album folders found under %s\n", root)
				return nil
			}
			rows := make([][]string, 0, len(plan.Units))
			for i, u := range plan.Units {
				rows = append(rows, []string{strconv.Itoa(i + 1), u.ID, string(u.Kind)})
			}
			fmt.Fprintln(out, report.RenderTable(
				[]string{"#", "Folder", "Kind"},
				rows,
				[]report.Alignment{report.AlignRight, report.AlignLeft, report.AlignLeft},
			))
			fmt.Fprintf(out, "%d folders (%d single, %d multi-disc)\n", plan.Total(), plan.Singles, plan.MultiDisc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
