package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/vk/modanalysis/internal/report"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModulesPath  string `mapstructure:"modules_path"`
	DataPath     string `mapstructure:"data_path"`
	Dataset      string `mapstructure:"dataset"`
	Output       string `mapstructure:"output"`
	OutputFormat string `mapstructure:"output_format"`

	LogLevel      slog.Level `mapstructure:"log_level"`
	LogFormat     string     `mapstructure:"log_format"`
	LogFile       string     `mapstructure:"log_file"`
	LogMaxSize    int        `mapstructure:"log_max_size"`
	LogMaxBackups int        `mapstructure:"log_max_backups"`
	LogCompress   bool       `mapstructure:"log_compress"`

	Only        []string `mapstructure:"only"`
	FailOnError bool     `mapstructure:"fail_on_error"`

	PublishURL       string `mapstructure:"publish_url"`
	PublishNamespace string `mapstructure:"publish_namespace"`

	SampleRows int    `mapstructure:"sample_rows"`
	SampleSeed uint64 `mapstructure:"sample_seed"`
}

// FieldError names the configuration key that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// SetDefaults registers the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("modules_path", "modules")
	v.SetDefault("data_path", "data")
	v.SetDefault("dataset", "")
	v.SetDefault("output", "output.json")
	v.SetDefault("output_format", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("log_compress", true)
	v.SetDefault("only", []string{})
	v.SetDefault("fail_on_error", false)
	v.SetDefault("publish_url", "")
	v.SetDefault("publish_namespace", "/")
	v.SetDefault("sample_rows", 100)
	v.SetDefault("sample_seed", 42)
}

// LoadConfig decodes and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(levelDecodeHook(), stringSliceDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values that decoding alone cannot catch.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModulesPath) == "" {
		return FieldError{Field: "modules_path", Reason: "must not be empty"}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return FieldError{Field: "log_format", Reason: fmt.Sprintf("must be 'text' or 'json', got %q", c.LogFormat)}
	}
	if _, err := report.ParseFormat(c.OutputFormat, c.Output); err != nil {
		return FieldError{Field: "output_format", Reason: err.Error()}
	}
	if c.Output == "" {
		return FieldError{Field: "output", Reason: "must not be empty"}
	}
	if c.SampleRows <= 0 {
		return FieldError{Field: "sample_rows", Reason: "must be positive"}
	}
	if c.LogFile != "" && c.LogMaxSize <= 0 {
		return FieldError{Field: "log_max_size", Reason: "must be positive when log_file is set"}
	}
	if c.PublishURL != "" {
		u, err := url.Parse(c.PublishURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return FieldError{Field: "publish_url", Reason: "must be an absolute URL"}
		}
	}
	return nil
}

// levelDecodeHook decodes level names such as "debug" into slog.Level.
func levelDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(slog.Level(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
				return nil, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", v)
			}
			return level, nil
		case slog.Level:
			return v, nil
		default:
			return data, nil
		}
	}
}

// stringSliceDecodeHook splits comma separated strings, as they arrive from
// environment variables, into trimmed non-empty items.
func stringSliceDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		var out []string
		for _, item := range strings.Split(data.(string), ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
}
