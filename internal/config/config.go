// Package config loads and validates enrichment configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/voterstat/internal/lookup"
	"github.com/JakeFAU/voterstat/internal/schema"
)

// EnvPrefix namespaces environment overrides, e.g. VOTERSTAT_SCHEMA_LAYOUT.
const EnvPrefix = "VOTERSTAT"

// DefaultEndpoint is the county voter lookup form handler.
const DefaultEndpoint = "https://www.monroecounty.gov/etc/voter/index.php"

// DefaultUserAgent mimics a desktop browser; the lookup service rejects
// obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Lookup   LookupConfig   `mapstructure:"lookup"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
	Output   OutputConfig   `mapstructure:"output"`
}

// LookupConfig describes the remote status service.
type LookupConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	UserAgent     string `mapstructure:"user_agent"`
	FormNamespace string `mapstructure:"form_namespace"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DispatchConfig governs admission of concurrent lookups.
type DispatchConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// SchemaConfig selects the input column layout. Layouts declares extra named
// layouts in addition to the built-ins.
type SchemaConfig struct {
	Layout  string                   `mapstructure:"layout"`
	Layouts map[string]schema.Layout `mapstructure:"layouts"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the metrics and health listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig controls periodic progress lines on stderr.
type ProgressConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// OutputConfig holds optional output destinations.
type OutputConfig struct {
	RejectsPath string `mapstructure:"rejects_path"`
}

// flagKeys maps command-line flags onto config keys. Flags missing from the
// supplied set are skipped.
var flagKeys = map[string]string{
	"layout":       "schema.layout",
	"concurrency":  "dispatch.max_concurrency",
	"endpoint":     "lookup.endpoint",
	"rejects":      "output.rejects_path",
	"metrics-addr": "metrics.addr",
	"log-level":    "logging.level",
}

// Load builds a Config from defaults, an optional file, the environment, and
// flags, in increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lookup.endpoint", DefaultEndpoint)
	v.SetDefault("lookup.user_agent", DefaultUserAgent)
	v.SetDefault("lookup.form_namespace", "v")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("dispatch.max_concurrency", 128)
	v.SetDefault("schema.layout", schema.DefaultLayout)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.interval", "1s")
	v.SetDefault("output.rejects_path", "")
}

// Validate enforces required values and reasonable limits. Every failure
// wraps lookup.ErrConfiguration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Lookup.Endpoint) == "" {
		return fmt.Errorf("%w: lookup.endpoint must be set", lookup.ErrConfiguration)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: http.timeout_seconds must be > 0", lookup.ErrConfiguration)
	}
	if c.Dispatch.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: dispatch.max_concurrency must be > 0", lookup.ErrConfiguration)
	}
	if c.Progress.Enabled && c.Progress.Interval <= 0 {
		return fmt.Errorf("%w: progress.interval must be > 0 when progress is enabled", lookup.ErrConfiguration)
	}
	if _, err := c.ResolveLayout(); err != nil {
		return fmt.Errorf("schema.layout: %w", err)
	}
	return nil
}

// ResolveLayout returns the active column layout.
func (c Config) ResolveLayout() (schema.Layout, error) {
	layout, err := schema.Resolve(c.Schema.Layout, c.Schema.Layouts)
	if err != nil {
		return nil, fmt.Errorf("resolve layout: %w", err)
	}
	return layout, nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
