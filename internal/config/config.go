// Package config loads runtime configuration from a YAML file with
// environment variable overrides. Every field has a working default so a
// missing file yields a usable configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/osmium-labs/chassis/pkg/logger"
)

// Duration wraps time.Duration so YAML and env values like "250ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

// UnmarshalText implements encoding.TextUnmarshaler for env overrides.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig names the application and sets its tick period.
type AppConfig struct {
	Name         string   `yaml:"name" env:"CHASSIS_APP_NAME"`
	TickInterval Duration `yaml:"tick_interval" env:"CHASSIS_TICK_INTERVAL"`
}

// LoggingConfig mirrors logger.LoggingConfig with file/env tags.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"CHASSIS_LOG_LEVEL"`
	Format     string `yaml:"format" env:"CHASSIS_LOG_FORMAT"`
	Output     string `yaml:"output" env:"CHASSIS_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"CHASSIS_LOG_FILE_PREFIX"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"CHASSIS_METRICS_NAMESPACE"`
}

// JobConfig is one scheduled job: a name and a five-field cron spec.
type JobConfig struct {
	Name string `yaml:"name"`
	Spec string `yaml:"spec"`
}

// SchedulerConfig lists the jobs to arm at startup.
type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs"`
}

// MonitorConfig controls the resource monitor overlay.
type MonitorConfig struct {
	Enabled        bool     `yaml:"enabled" env:"CHASSIS_MONITOR_ENABLED"`
	SampleInterval Duration `yaml:"sample_interval" env:"CHASSIS_MONITOR_SAMPLE_INTERVAL"`
}

// Config is the full runtime configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:         "chassis",
			TickInterval: Duration(16 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Namespace: "chassis",
		},
		Monitor: MonitorConfig{
			Enabled:        true,
			SampleInterval: Duration(5 * time.Second),
		},
	}
}

// Load reads the YAML file at path, applies env overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to env-overridden defaults
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot operate with.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name must not be empty")
	}
	if c.App.TickInterval.Std() <= 0 {
		return fmt.Errorf("app.tick_interval must be positive, got %s", c.App.TickInterval.Std())
	}
	if c.Monitor.Enabled && c.Monitor.SampleInterval.Std() <= 0 {
		return fmt.Errorf("monitor.sample_interval must be positive when the monitor is enabled")
	}
	seen := make(map[string]bool, len(c.Scheduler.Jobs))
	for _, j := range c.Scheduler.Jobs {
		if j.Name == "" || j.Spec == "" {
			return fmt.Errorf("scheduler jobs need both a name and a spec")
		}
		if seen[j.Name] {
			return fmt.Errorf("scheduler job %s declared twice", j.Name)
		}
		seen[j.Name] = true
	}
	return nil
}

// LoggerConfig converts the logging section into the logger package's form.
func (c *Config) LoggerConfig() logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		FilePrefix: c.Logging.FilePrefix,
	}
}
