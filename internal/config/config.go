package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. STRATA_DB.
const EnvPrefix = "STRATA"

// Artifact backends.
const (
	BackendFS  = "fs"
	BackendGCS = "gcs"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// RecurrenceConfig bounds recurrence expansion.
type RecurrenceConfig struct {
	MaxCount int `mapstructure:"max_count" validate:"min=1"`
}

// ArtifactConfig selects where conflict exports are written.
type ArtifactConfig struct {
	Backend        string `mapstructure:"backend" validate:"oneof=fs gcs"`
	Dir            string `mapstructure:"dir"`
	GCSBucket      string `mapstructure:"gcs_bucket" validate:"required_if=Backend gcs"`
	GCSProject     string `mapstructure:"gcs_project"`
	GCSCredentials string `mapstructure:"gcs_credentials"`
}

type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus text dump on exit.
	Textfile string `mapstructure:"textfile"`
}

type TraceConfig struct {
	Exporter string `mapstructure:"exporter" validate:"oneof=none stdout"`
}

// Config holds the process-wide settings for the strata CLI.
type Config struct {
	DB          string           `mapstructure:"db" validate:"required"`
	Tenant      string           `mapstructure:"tenant" validate:"required"`
	User        string           `mapstructure:"user"`
	Timezone    string           `mapstructure:"timezone" validate:"required"`
	LogUseCases bool             `mapstructure:"log_use_cases"`
	Recurrence  RecurrenceConfig `mapstructure:"recurrence"`
	Artifact    ArtifactConfig   `mapstructure:"artifact"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Trace       TraceConfig      `mapstructure:"trace"`
}

// DefaultConfig returns a Config with defaults for every key.
// Conflict exports land in ~/.strata/exports on the local filesystem.
func DefaultConfig() Config {
	base := baseDir()
	return Config{
		DB:       filepath.Join(base, "strata.db"),
		Tenant:   "default",
		Timezone: "UTC",
		Recurrence: RecurrenceConfig{
			MaxCount: 50,
		},
		Artifact: ArtifactConfig{
			Backend: BackendFS,
			Dir:     filepath.Join(base, "exports"),
		},
		Trace: TraceConfig{Exporter: ExporterNone},
	}
}

// Load layers configuration as defaults < config file < .env < STRATA_* env.
// An empty configFile searches ./strata.yaml and ~/.strata/strata.yaml; a
// missing file is not an error unless it was named explicitly.
func Load(configFile string) (Config, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("strata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(baseDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DB = expandHome(cfg.DB)
	cfg.Artifact.Dir = expandHome(cfg.Artifact.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated keys and that the timezone resolves.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("db", d.DB)
	v.SetDefault("tenant", d.Tenant)
	v.SetDefault("user", d.User)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("log_use_cases", d.LogUseCases)
	v.SetDefault("recurrence.max_count", d.Recurrence.MaxCount)
	v.SetDefault("artifact.backend", d.Artifact.Backend)
	v.SetDefault("artifact.dir", d.Artifact.Dir)
	v.SetDefault("artifact.gcs_bucket", d.Artifact.GCSBucket)
	v.SetDefault("artifact.gcs_project", d.Artifact.GCSProject)
	v.SetDefault("artifact.gcs_credentials", d.Artifact.GCSCredentials)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("trace.exporter", d.Trace.Exporter)
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".strata"
	}
	return filepath.Join(home, ".strata")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
