package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mossy/mossy/pkg/telemetry"
)

// DefaultFiles are the settings files looked up in the working directory
// when no path is given, in order.
var DefaultFiles = []string{"mossy.yaml", "mossy.yml", "mossy.cue"}

// Settings holds the tool settings of mossy. The json tags are used by
// the CUE loader, the yaml tags by the YAML loader.
type Settings struct {
	Database  DatabaseSettings  `yaml:"database" json:"database"`
	Plugins   PluginSettings    `yaml:"plugins" json:"plugins"`
	Run       RunSettings       `yaml:"run" json:"run"`
	Logging   LoggingSettings   `yaml:"logging" json:"logging"`
	Telemetry TelemetrySettings `yaml:"telemetry" json:"telemetry"`
}

// DatabaseSettings locates the concept store.
type DatabaseSettings struct {
	Path         string `yaml:"path" json:"path" validate:"required"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns" validate:"gte=0"`
}

// PluginSettings lists the directories scanned for Starlark plugins.
type PluginSettings struct {
	Dirs           []string `yaml:"dirs" json:"dirs" validate:"dive,required"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns the plugin load timeout. Zero means no timeout.
func (p PluginSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RunSettings configures the comparison runner.
type RunSettings struct {
	Workers    int    `yaml:"workers" json:"workers" validate:"gte=1,lte=256"`
	Format     string `yaml:"format" json:"format" validate:"oneof=tsv jsonl"`
	Record     bool   `yaml:"record" json:"record"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=20"`
}

// LoggingSettings configures the log output.
type LoggingSettings struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
	// Output is discard, stdout, stderr or a file path.
	Output string `yaml:"output" json:"output" validate:"required"`
}

// TelemetrySettings configures metrics and tracing.
type TelemetrySettings struct {
	MetricsAddr string          `yaml:"metrics_addr" json:"metrics_addr" validate:"omitempty,hostname_port"`
	Tracing     TracingSettings `yaml:"tracing" json:"tracing"`
}

// TracingSettings configures the span exporter.
type TracingSettings struct {
	Exporter     string  `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure" json:"insecure"`
}

// Default returns the settings used when no file is found.
func Default() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Path: "mossy.db",
		},
		Plugins: PluginSettings{
			TimeoutSeconds: 30,
		},
		Run: RunSettings{
			Workers:    1,
			Format:     "tsv",
			MaxRetries: 5,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
			Output: "discard",
		},
		Telemetry: TelemetrySettings{
			Tracing: TracingSettings{
				Exporter:     "none",
				SamplingRate: 1.0,
				Insecure:     true,
			},
		},
	}
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	// File is the settings file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed), when known.
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed), when known.
	Column int `json:"column,omitempty"`

	// Path is the dotted path of the setting, e.g. "run.workers".
	Path string `json:"path,omitempty"`

	// Message describes the problem.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors is returned when settings fail to load or validate.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.String()
	}
	return "invalid settings: " + strings.Join(lines, "; ")
}

// Find returns the settings file to load: path if set, else the first of
// DefaultFiles present in dir. It returns "" when there is none.
func Find(path, dir string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("settings file: %w", err)
		}
		return path, nil
	}
	for _, name := range DefaultFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("settings file: %w", err)
		}
	}
	return "", nil
}

// Load reads the settings file at path over the defaults and validates
// the result. An empty path yields the defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return nil, ValidationErrors{{File: path, Message: err.Error()}}
		}
	case ".cue":
		raw, err := compileCUE(path, data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported settings format %q (want .yaml, .yml or .cue)", ext)
	}

	if err := s.validate(path); err != nil {
		return nil, err
	}
	return s, nil
}

var validate = validator.New()

// Validate checks the settings with their struct tags.
func (s *Settings) Validate() error {
	return s.validate("")
}

func (s *Settings) validate(file string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			File:    file,
			Path:    fieldPath(fe.StructNamespace()),
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
		})
	}
	return out
}

// fieldPath turns "Settings.Run.MaxRetries" into "run.max_retries".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")[1:]
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TelemetryConfig converts the logging and telemetry settings.
func (s *Settings) TelemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version

	cfg.Logging.Level = s.Logging.Level
	cfg.Logging.Format = s.Logging.Format
	cfg.Logging.Output = s.Logging.Output
	cfg.Logging.EnableCaller = s.Logging.Level == "debug" || s.Logging.Level == "trace"

	if s.Telemetry.Tracing.Exporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = s.Telemetry.Tracing.Exporter
		cfg.Tracing.Endpoint = s.Telemetry.Tracing.Endpoint
		cfg.Tracing.SamplingRate = s.Telemetry.Tracing.SamplingRate
		cfg.Tracing.Insecure = s.Telemetry.Tracing.Insecure
	}

	if s.Telemetry.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = s.Telemetry.MetricsAddr
	}

	return cfg
}
