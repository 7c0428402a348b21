package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rtrace/internal/watchui"
)

var watchCapacity int

func init() {
	watchCmd.Flags().IntVar(&watchCapacity, "capacity", 200, "number of promise rows to keep in view")
}

var watchCmd = &cobra.Command{
	Use:   "watch <output_dir>",
	Short: "Live-tail the promises table while a trace is running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(args[0], "promises.tsv")
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: only the text sink can be watched (run with binary=false): %w", path, err)
		}
		model := watchui.New(path, watchCapacity)
		program := tea.NewProgram(model, tea.WithOutput(cmd.OutOrStdout()))
		_, err := program.Run()
		return err
	},
}
