package config

import (
	"fmt"
	"time"
)

// Config is the campaign configuration read from badges.cue.
type Config struct {
	// Account is the platform username. Empty means resolve from the
	// environment or the credentials file.
	Account string `json:"account,omitempty" yaml:"account,omitempty"`

	Progress ProgressConfig `json:"progress" yaml:"progress"`

	History HistoryConfig `json:"history" yaml:"history"`

	CLI CLIConfig `json:"cli" yaml:"cli"`

	Browser BrowserConfig `json:"browser" yaml:"browser"`

	// TemplatesDir holds submission templates such as submission_titanic.csv.
	TemplatesDir string `json:"templates_dir" yaml:"templates_dir" validate:"required"`

	// WorkDir is the scratch directory for downloads and notebook pushes.
	// Empty means the system temp directory.
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`

	// Policies lists additional rego files consulted by the capability gate.
	Policies []string `json:"policies,omitempty" yaml:"policies,omitempty" validate:"dive,required"`

	// Scripts declares operator-defined Starlark handlers.
	Scripts []ScriptConfig `json:"scripts,omitempty" yaml:"scripts,omitempty" validate:"dive"`

	// RetryInterrupted makes targets stranded in attempting eligible again.
	RetryInterrupted bool `json:"retry_interrupted" yaml:"retry_interrupted"`

	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// ProgressConfig selects the progress store backend.
type ProgressConfig struct {
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=json sqlite"`
	Path    string `json:"path" yaml:"path" validate:"required"`
}

// HistoryConfig controls run history recording.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path" validate:"required_if=Enabled true"`
}

// CLIConfig configures the platform command line client.
type CLIConfig struct {
	Binary  string   `json:"binary" yaml:"binary" validate:"required"`
	Timeout Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// Delay is the pause between consecutive CLI calls.
	Delay Duration `json:"delay" yaml:"delay" validate:"gte=0"`
}

// BrowserConfig configures browser automation.
type BrowserConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	Headless          bool          `json:"headless" yaml:"headless"`
	Bin               string        `json:"bin,omitempty" yaml:"bin,omitempty"`
	UserDataDir       string        `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	NavigationTimeout Duration      `json:"navigation_timeout" yaml:"navigation_timeout" validate:"gt=0"`
	Profile           ProfileConfig `json:"profile" yaml:"profile"`
}

// ProfileConfig is the text written by the profile handler.
type ProfileConfig struct {
	Bio      string `json:"bio" yaml:"bio"`
	Location string `json:"location" yaml:"location"`
}

// ScriptConfig declares a Starlark handler.
type ScriptConfig struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Phase        int      `json:"phase" yaml:"phase" validate:"gte=1"`
	Targets      []string `json:"targets" yaml:"targets" validate:"required,min=1,dive,required"`
	File         string   `json:"file" yaml:"file" validate:"required"`
	Requires     []string `json:"requires,omitempty" yaml:"requires,omitempty" validate:"dive,oneof=cli browser"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	NeedsAccount bool     `json:"needs_account,omitempty" yaml:"needs_account,omitempty"`
}

// TelemetryConfig is the operator-facing subset of telemetry settings.
type TelemetryConfig struct {
	LogLevel        string `json:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat       string `json:"log_format" yaml:"log_format" validate:"oneof=console json"`
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
	MetricsListen   string `json:"metrics_listen,omitempty" yaml:"metrics_listen,omitempty"`
	TracingExporter string `json:"tracing_exporter" yaml:"tracing_exporter" validate:"oneof=none stdout otlp"`
	TracingEndpoint string `json:"tracing_endpoint,omitempty" yaml:"tracing_endpoint,omitempty" validate:"required_if=TracingExporter otlp"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Progress: ProgressConfig{
			Backend: "json",
			Path:    "badge_progress.json",
		},
		History: HistoryConfig{
			Path: "badge_history.db",
		},
		CLI: CLIConfig{
			Binary:  "kaggle",
			Timeout: Duration(5 * time.Minute),
			Delay:   Duration(2 * time.Second),
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: Duration(30 * time.Second),
			Profile: ProfileConfig{
				Bio:      "Data science enthusiast | Kaggle competitor",
				Location: "Earth",
			},
		},
		TemplatesDir: "templates",
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			TracingExporter: "none",
		},
	}
}
