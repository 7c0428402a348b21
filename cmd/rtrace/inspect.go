package main

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"rtrace/internal/sink"
)

var inspectLimit int

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 5, "number of sample rows to print per table")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <output_dir>",
	Short: "Decode the emitted tables and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useColor := resolveColor(cmd, os.Stdout)
		headerStyle := lipgloss.NewStyle().Bold(true)
		tableStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
		if !useColor {
			headerStyle = lipgloss.NewStyle()
			tableStyle = lipgloss.NewStyle()
		}

		out := cmd.OutOrStdout()
		for _, name := range sink.TableNames {
			path, err := findTableFile(args[0], name)
			if err != nil {
				fmt.Fprintln(out, tableStyle.Render(name), "-", err.Error())
				continue
			}
			header, rows, err := readTable(path, inspectLimit)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s (%s)", name, filepath.Base(path))))
			printRow(out, header, 18)
			for _, row := range rows {
				printRow(out, row, 18)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func printRow(out io.Writer, cols []string, width int) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		trunc := runewidth.Truncate(c, width, "…")
		pad := width - runewidth.StringWidth(trunc)
		if pad > 0 {
			trunc += strings.Repeat(" ", pad)
		}
		parts[i] = trunc
	}
	fmt.Fprintln(out, strings.Join(parts, " | "))
}

// findTableFile tries every extension combination sink.Open can
// produce for name under dir (text, binary, each optionally gzipped).
func findTableFile(dir, name string) (string, error) {
	candidates := []string{
		filepath.Join(dir, name+".tsv"),
		filepath.Join(dir, name+".tsv.gz"),
		filepath.Join(dir, name+".bin"),
		filepath.Join(dir, name+".bin.gz"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no table file found (tried %s)", strings.Join(candidates, ", "))
}

// readTable decodes up to limit data rows (plus the header row) from
// path, dispatching on its extension the way sink.Open's writers do.
func readTable(path string, limit int) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		defer gz.Close()
		r = gz
	}

	if strings.Contains(path, ".bin") {
		return readBinaryTable(r, limit)
	}
	return readTextTable(r, limit)
}

func readTextTable(r io.Reader, limit int) ([]string, [][]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var header []string
	var rows [][]string
	first := true
	for scanner.Scan() {
		cols := strings.Split(scanner.Text(), "\t")
		if first {
			header = cols
			first = false
			continue
		}
		if len(rows) >= limit {
			continue
		}
		rows = append(rows, cols)
	}
	return header, rows, scanner.Err()
}

func readBinaryTable(r io.Reader, limit int) ([]string, [][]string, error) {
	br := bufio.NewReader(r)
	var header []string
	var rows [][]string
	first := true
	for {
		frame, err := readFrame(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return header, rows, err
		}
		var cols []string
		if err := msgpack.Unmarshal(frame, &cols); err != nil {
			return header, rows, err
		}
		if first {
			header = cols
			first = false
			continue
		}
		if len(rows) < limit {
			rows = append(rows, cols)
		}
	}
	return header, rows, nil
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
