// Package rtconfig loads the tracer's Configuration options (§6): an
// optional TOML file, overlaid with RTRACE_* environment variables.
package rtconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the merged set of Configuration options (§6).
type Config struct {
	OutputDirpath    string `toml:"output_dirpath"`
	TraceFilepath    string `toml:"trace_filepath"`
	EnableTrace      bool   `toml:"enable_trace"`
	Truncate         int    `toml:"truncate"`
	Verbose          bool   `toml:"verbose"`
	Binary           bool   `toml:"binary"`
	CompressionLevel int    `toml:"compression_level"`
}

// Default returns the Config a fresh run starts from before any file
// or environment overlay is applied.
func Default() Config {
	return Config{
		OutputDirpath: "rtrace-output",
		EnableTrace:   true,
	}
}

// Load reads path (if non-empty and it exists) as TOML into a Config
// seeded with Default, then applies the RTRACE_* environment overlay.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to stat %q: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// EnvVars lists every RTRACE_* variable recognized by the overlay, in
// the order they are written to CONFIGURATION (§6).
var EnvVars = []string{
	"RTRACE_OUTPUT_DIRPATH",
	"RTRACE_TRACE_FILEPATH",
	"RTRACE_ENABLE_TRACE",
	"RTRACE_TRUNCATE",
	"RTRACE_VERBOSE",
	"RTRACE_BINARY",
	"RTRACE_COMPRESSION_LEVEL",
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("RTRACE_OUTPUT_DIRPATH"); ok {
		c.OutputDirpath = v
	}
	if v, ok := os.LookupEnv("RTRACE_TRACE_FILEPATH"); ok {
		c.TraceFilepath = v
	}
	if v, ok := lookupBool("RTRACE_ENABLE_TRACE"); ok {
		c.EnableTrace = v
	}
	if v, ok := lookupInt("RTRACE_TRUNCATE"); ok {
		c.Truncate = v
	}
	if v, ok := lookupBool("RTRACE_VERBOSE"); ok {
		c.Verbose = v
	}
	if v, ok := lookupBool("RTRACE_BINARY"); ok {
		c.Binary = v
	}
	if v, ok := lookupInt("RTRACE_COMPRESSION_LEVEL"); ok {
		c.CompressionLevel = v
	}
}

func lookupBool(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func lookupInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
