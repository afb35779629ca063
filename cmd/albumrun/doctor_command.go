package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"albumrun/internal/config"
	"albumrun/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [root]",
		Short: "Check that runs can start: command binary and writable directories",
		Long:  "Check the command binary and the log and state directories. With a root argument, also check that the library root can be listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configPath := ctx.configPath
			if !ctx.configSeen {
				configPath += " (not found, using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Max jobs", statusInfo, fmt.Sprintf("%d", cfg.EffectiveMaxJobs()), colorize))
			fmt.Fprintln(out, renderStatusLine("Max retries", statusInfo, fmt.Sprintf("%d", cfg.Runner.MaxRetries), colorize))
			fmt.Fprintln(out, renderStatusLine("Backoff", statusInfo, cfg.Backoff().String(), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cfg)
			if len(args) == 1 {
				root, err := config.ExpandPath(strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("resolve root: %w", err)
				}
				results = append(results, preflight.CheckReadableDirectory("Library root", root))
			}
			for _, r := range results {
				fmt.Fprintln(out, renderCheckLine(r.Name, r.Passed, r.Detail, colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return &exitCodeError{code: 1, message: fmt.Sprintf("%d check(s) failed", len(failed))}
			}
			return nil
		},
	}
}
