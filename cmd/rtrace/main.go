package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rtrace/internal/rtversion"
)

var rootCmd = &cobra.Command{
	Use:   "rtrace",
	Short: "Tracer-state instrument for a lazy, call-by-need language",
	Long:  `rtrace drives a recorded host-evaluator probe log through the tracer core and inspects what it produced.`,
}

// main registers every subcommand and persistent flag, then executes
// the root command. A non-nil error from Execute exits the process
// with status 1.
func main() {
	rootCmd.Version = rtversion.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show stage timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to print")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal, used to
// decide the "auto" setting of --color.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// resolveColor turns the --color flag value into a concrete
// force-color decision for the given output file.
func resolveColor(cmd *cobra.Command, out *os.File) bool {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(out)
	}
}
