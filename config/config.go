// Package config loads analyzer settings from an optional config.yaml and
// PA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/separation"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	EnvPrefix = "PA"
)

type Config struct {
	DataDir    string `mapstructure:"data_dir"`
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	LogLevel   string `mapstructure:"log_level"`

	Insights struct {
		ThresholdDB float64 `mapstructure:"threshold_db"`
		Window      int     `mapstructure:"window"`
		MinRuns     int     `mapstructure:"min_runs"`
		SummaryRuns int     `mapstructure:"summary_runs"`
	} `mapstructure:"insights"`

	History struct {
		Retention int `mapstructure:"retention"`
	} `mapstructure:"history"`

	Separation struct {
		Enabled bool          `mapstructure:"enabled"`
		Binary  string        `mapstructure:"binary"`
		Model   string        `mapstructure:"model"`
		Timeout time.Duration `mapstructure:"timeout"`
		WorkDir string        `mapstructure:"work_dir"`
	} `mapstructure:"separation"`
}

func setDefaults(v *viper.Viper) {
	d := history.DefaultSettings()

	v.SetDefault("data_dir", "pa_data")
	v.SetDefault("backend", BackendJSON)
	v.SetDefault("sqlite_path", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("insights.threshold_db", d.ThresholdDB)
	v.SetDefault("insights.window", d.Window)
	v.SetDefault("insights.min_runs", d.MinRuns)
	v.SetDefault("insights.summary_runs", d.SummaryRuns)
	v.SetDefault("history.retention", d.Retention)

	v.SetDefault("separation.enabled", true)
	v.SetDefault("separation.binary", separation.DefaultBinary)
	v.SetDefault("separation.model", separation.DefaultModel)
	v.SetDefault("separation.timeout", "10m")
	v.SetDefault("separation.work_dir", "")
}

// Load reads configuration. With an empty path, config.yaml is looked up in
// the working directory and in $HOME/.pa-analyzer, and a missing file is not
// an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pa-analyzer")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Backend)
	}
	if err := c.HistorySettings().Validate(); err != nil {
		return fmt.Errorf("insights: %w", err)
	}
	if c.Separation.Timeout <= 0 {
		return fmt.Errorf("separation.timeout must be > 0")
	}
	return nil
}

// DatabasePath is the SQLite file, defaulting into the data directory.
func (c *Config) DatabasePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "pa_analyzer.db")
}

func (c *Config) HistorySettings() history.Settings {
	return history.Settings{
		ThresholdDB: c.Insights.ThresholdDB,
		Window:      c.Insights.Window,
		MinRuns:     c.Insights.MinRuns,
		SummaryRuns: c.Insights.SummaryRuns,
		Retention:   c.History.Retention,
	}
}

func (c *Config) SeparationOptions() separation.Options {
	return separation.Options{
		Enabled: c.Separation.Enabled,
		Binary:  c.Separation.Binary,
		Model:   c.Separation.Model,
		WorkDir: c.Separation.WorkDir,
	}
}
