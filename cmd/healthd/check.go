package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/internal/config"
	"github.com/jonwraymond/probekit/observe"
)

// errUnhealthy is returned by check when the overall status is Unhealthy.
var errUnhealthy = errors.New("one or more probes are unhealthy")

func checkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every discovered probe once and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(context.Background()); err != nil {
					a.logger.Error(cmd.Context(), "telemetry shutdown", observe.F("error", err.Error()))
				}
			}()
			return executeCheck(cmd.Context(), cmd.OutOrStdout(), a.runner, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON report instead of a table")
	return cmd
}

func executeCheck(ctx context.Context, out io.Writer, runner *health.Runner, asJSON bool) error {
	start := time.Now()
	report := health.Aggregate(runner.RunAll(ctx), time.Since(start))

	if asJSON {
		_, _, body, err := health.Respond(report)
		if err != nil {
			return err
		}
		if _, err := out.Write(append(body, '\n')); err != nil {
			return err
		}
	} else {
		printTable(out, report)
	}

	if report.Status == health.StatusUnhealthy {
		return errUnhealthy
	}
	return nil
}

func printTable(out io.Writer, report health.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tSTATUS\tDURATION\tDESCRIPTION\tERROR")
	for _, e := range report.Entries {
		errText := "-"
		if e.Outcome.Err != nil {
			errText = e.Outcome.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Name,
			e.Outcome.Status,
			e.Outcome.Duration.Round(time.Millisecond),
			e.Outcome.Description,
			errText,
		)
	}
	fmt.Fprintf(w, "OVERALL\t%s\t%s\t\t\n", report.Status, report.TotalDuration.Round(time.Millisecond))
	w.Flush()
}
