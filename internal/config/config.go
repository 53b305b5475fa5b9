// Package config loads the optional TOML overlay that tunes kvsd beyond
// what its mandated positional CLI arguments cover (spec §6, SPEC_FULL §A.3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable that is not one of the four mandated
// positional CLI arguments (jobs_dir, max_threads, max_backups,
// fifo_register_name).
type Config struct {
	Server ServerConfig `toml:"server"`
	Jobs   JobsConfig   `toml:"jobs"`
	Backup BackupConfig `toml:"backup"`
}

type ServerConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	FifoPerm  string `toml:"fifo_perm"` // octal string, e.g. "0640"
}

type JobsConfig struct {
	JobWorkers int `toml:"job_workers"`
}

type BackupConfig struct {
	LedgerPath string `toml:"ledger_path"`
}

// Defaults returns a Config with sane defaults, matching what the server
// would use if no TOML file is supplied at all.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel:  "info",
			LogFormat: "text",
			FifoPerm:  "0640",
		},
		Jobs: JobsConfig{
			JobWorkers: 4,
		},
		Backup: BackupConfig{
			LedgerPath: "",
		},
	}
}

// Load reads a TOML config file and returns the parsed Config, overlaying
// it onto Defaults(). If path is empty, only defaults are returned; a
// missing file at an explicit path is an error, but no file at all
// (path == "") is not.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// FifoMode parses ServerConfig.FifoPerm as an octal file mode, falling
// back to 0640 if unset or unparsable.
func (c *Config) FifoMode() os.FileMode {
	perm := strings.TrimSpace(c.Server.FifoPerm)
	if perm == "" {
		return 0640
	}
	v, err := strconv.ParseUint(perm, 8, 32)
	if err != nil {
		return 0640
	}
	return os.FileMode(v)
}

// LedgerPath resolves the backup ledger's database path, defaulting to a
// dotfile alongside the jobs directory when unset.
func (c *Config) LedgerPath(jobsDir string) string {
	if c.Backup.LedgerPath != "" {
		return c.Backup.LedgerPath
	}
	return filepath.Join(jobsDir, ".kvsd-backups.db")
}

// Validate checks the config for internally-inconsistent values and
// returns a single error joining every problem found, so a misconfigured
// server reports everything wrong with it up front rather than one field
// at a time.
func (c *Config) Validate() error {
	var problems []string

	if err := validateLogLevel(c.Server.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("server.log_level: %v", err))
	}
	if err := validateLogFormat(c.Server.LogFormat); err != nil {
		problems = append(problems, fmt.Sprintf("server.log_format: %v", err))
	}
	if strings.TrimSpace(c.Server.FifoPerm) != "" {
		if _, err := strconv.ParseUint(strings.TrimSpace(c.Server.FifoPerm), 8, 32); err != nil {
			problems = append(problems, fmt.Sprintf("server.fifo_perm: %q is not a valid octal mode", c.Server.FifoPerm))
		}
	}
	if c.Jobs.JobWorkers < 0 {
		problems = append(problems, fmt.Sprintf("jobs.job_workers: %d must be >= 0", c.Jobs.JobWorkers))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func validateLogLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown level %q", level)
	}
}

func validateLogFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
