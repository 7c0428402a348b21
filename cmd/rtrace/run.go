package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rtrace/internal/diagx"
	"rtrace/internal/fixture"
	"rtrace/internal/observ"
	"rtrace/internal/rtconfig"
	"rtrace/internal/tracerstate"
)

var runConfigPath string

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to a TOML configuration file (§6)")
}

var runCmd = &cobra.Command{
	Use:   "run <fixture.json|fixture.msgpack>",
	Short: "Replay a recorded probe log through the tracer core",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		showTimings, _ := cmd.Flags().GetBool("timings")
		maxDiag, _ := cmd.Flags().GetInt("max-diagnostics")

		cfg, err := rtconfig.Load(runConfigPath)
		if err != nil {
			return err
		}

		timer := observ.NewTimer()

		loadIdx := timer.Begin("load")
		log, err := fixture.LoadEventLog(args[0])
		if err != nil {
			return fmt.Errorf("loading event log: %w", err)
		}
		timer.End(loadIdx, fmt.Sprintf("%d events", len(log.Events)))

		host := fixture.New()
		fixture.Seed(host, log)

		ts, err := tracerstate.New(host, cfg)
		if err != nil {
			return fmt.Errorf("starting tracer: %w", err)
		}

		replayIdx := timer.Begin("replay")
		if err := fixture.Replay(ts, log); err != nil {
			return fmt.Errorf("replaying events: %w", err)
		}
		timer.End(replayIdx, "")

		cleanupIdx := timer.Begin("cleanup")
		if err := ts.Cleanup(); err != nil {
			return fmt.Errorf("tearing down tracer: %w", err)
		}
		timer.End(cleanupIdx, "")

		diag := ts.Diagnostics()
		items := diag.Items()
		if maxDiag >= 0 && len(items) > maxDiag {
			items = items[:maxDiag]
		}
		if !quiet && len(items) > 0 {
			trimmed := diagx.NewBag()
			for _, d := range items {
				trimmed.Add(d)
			}
			trimmed.Dump(cmd.ErrOrStderr(), resolveColor(cmd, os.Stderr))
		}

		if showTimings {
			fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
		}
		if !quiet {
			status := "NOERROR"
			if diag.HasErrors() {
				status = "ERROR"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d events to %s (%s)\n", status, len(log.Events), cfg.OutputDirpath, status)
		}
		if diag.HasErrors() {
			return fmt.Errorf("run produced %d diagnostic(s), at least one at error severity", diag.Len())
		}
		return nil
	},
}
