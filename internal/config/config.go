package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server settings. Resolution order: defaults, then an
// optional YAML file, then BOLTZ_* environment variables.
type Config struct {
	ListenAddr  string
	ScriptsDir  string
	WorkDir     string
	LogDir      string
	AuditFile   string
	ExamplesDir string

	MaxRunningJobs    int
	DefaultJobTimeout time.Duration
	CancelGracePeriod time.Duration
	LogRetention      time.Duration
	SweepInterval     time.Duration
}

// fileConfig is the YAML shape; durations are Go duration strings
// (e.g. "30m"). Absent keys leave the default untouched.
type fileConfig struct {
	ListenAddr        *string `yaml:"listen_addr"`
	ScriptsDir        *string `yaml:"scripts_dir"`
	WorkDir           *string `yaml:"work_dir"`
	LogDir            *string `yaml:"log_dir"`
	AuditFile         *string `yaml:"audit_file"`
	ExamplesDir       *string `yaml:"examples_dir"`
	MaxRunningJobs    *int    `yaml:"max_running_jobs"`
	DefaultJobTimeout *string `yaml:"default_job_timeout"`
	CancelGracePeriod *string `yaml:"cancel_grace_period"`
	LogRetention      *string `yaml:"log_retention"`
	SweepInterval     *string `yaml:"sweep_interval"`
}

func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		ScriptsDir:        "./scripts",
		WorkDir:           "./work",
		LogDir:            "./logs",
		AuditFile:         "./audit.jsonl",
		ExamplesDir:       "./examples/data",
		MaxRunningJobs:    4,
		DefaultJobTimeout: 0, // no wall-clock limit
		CancelGracePeriod: 5 * time.Second,
		LogRetention:      time.Hour,
		SweepInterval:     time.Minute,
	}
}

// Load builds the config. path may be empty (no file); a named file that
// does not exist is an error, so typos fail loudly.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.MaxRunningJobs <= 0 {
		return Config{}, fmt.Errorf("max_running_jobs must be positive, got %d", cfg.MaxRunningJobs)
	}
	if cfg.CancelGracePeriod <= 0 {
		return Config{}, fmt.Errorf("cancel_grace_period must be positive, got %s", cfg.CancelGracePeriod)
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
	}
	if fc.ScriptsDir != nil {
		cfg.ScriptsDir = *fc.ScriptsDir
	}
	if fc.WorkDir != nil {
		cfg.WorkDir = *fc.WorkDir
	}
	if fc.LogDir != nil {
		cfg.LogDir = *fc.LogDir
	}
	if fc.AuditFile != nil {
		cfg.AuditFile = *fc.AuditFile
	}
	if fc.ExamplesDir != nil {
		cfg.ExamplesDir = *fc.ExamplesDir
	}
	if fc.MaxRunningJobs != nil {
		cfg.MaxRunningJobs = *fc.MaxRunningJobs
	}
	for _, d := range []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"default_job_timeout", fc.DefaultJobTimeout, &cfg.DefaultJobTimeout},
		{"cancel_grace_period", fc.CancelGracePeriod, &cfg.CancelGracePeriod},
		{"log_retention", fc.LogRetention, &cfg.LogRetention},
		{"sweep_interval", fc.SweepInterval, &cfg.SweepInterval},
	} {
		if d.raw == nil {
			continue
		}
		dur, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = dur
	}
	return nil
}

func applyEnv(cfg *Config) {
	strVar(&cfg.ListenAddr, "BOLTZ_LISTEN_ADDR")
	strVar(&cfg.ScriptsDir, "BOLTZ_SCRIPTS_DIR")
	strVar(&cfg.WorkDir, "BOLTZ_WORK_DIR")
	strVar(&cfg.LogDir, "BOLTZ_LOG_DIR")
	strVar(&cfg.AuditFile, "BOLTZ_AUDIT_FILE")
	strVar(&cfg.ExamplesDir, "BOLTZ_EXAMPLES_DIR")
	intVar(&cfg.MaxRunningJobs, "BOLTZ_MAX_RUNNING_JOBS")
	durVar(&cfg.DefaultJobTimeout, "BOLTZ_DEFAULT_JOB_TIMEOUT")
	durVar(&cfg.CancelGracePeriod, "BOLTZ_CANCEL_GRACE_PERIOD")
	durVar(&cfg.LogRetention, "BOLTZ_LOG_RETENTION")
	durVar(&cfg.SweepInterval, "BOLTZ_SWEEP_INTERVAL")
}

func strVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durVar(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
