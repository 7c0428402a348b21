package teardown

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"rtrace/internal/rtconfig"
	"rtrace/internal/rtversion"
)

// WriteConfiguration renders the CONFIGURATION side file (§6):
// key=value lines for every recognized environment variable plus
// GIT_COMMIT_INFO, truncate, verbose, binary, compression_level.
func WriteConfiguration(dir string, cfg rtconfig.Config) error {
	f, err := os.Create(filepath.Join(dir, "CONFIGURATION"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "GIT_COMMIT_INFO=%s\n", rtversion.GitCommitInfo())
	fmt.Fprintf(w, "truncate=%d\n", cfg.Truncate)
	fmt.Fprintf(w, "verbose=%t\n", cfg.Verbose)
	fmt.Fprintf(w, "binary=%t\n", cfg.Binary)
	fmt.Fprintf(w, "compression_level=%d\n", cfg.CompressionLevel)
	for _, name := range rtconfig.EnvVars {
		fmt.Fprintf(w, "%s=%s\n", name, os.Getenv(name))
	}
	return w.Flush()
}

// WriteSentinel writes the terminal ERROR or NOERROR marker (§6/§7).
func WriteSentinel(dir string, hasErrors bool) error {
	name := "NOERROR"
	content := "NOERROR"
	if hasErrors {
		name = "ERROR"
		content = "ERROR"
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
