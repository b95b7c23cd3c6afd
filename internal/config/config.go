// Package config loads service configuration from defaults, an optional
// file, EXOQUEST_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/synth"
)

// EnvPrefix prefixes environment overrides, e.g. EXOQUEST_ARTIFACTS_DIR.
const EnvPrefix = "EXOQUEST"

// DefaultMaxUploadBytes matches the 16 MiB upload cap of the web client.
const DefaultMaxUploadBytes = 16 << 20

// Config is the root configuration.
type Config struct {
	Listen    string          `mapstructure:"listen"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Upload    UploadConfig    `mapstructure:"upload"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

// ArtifactsConfig selects where catalog artifacts are read from.
type ArtifactsConfig struct {
	// Source is "dir" or "s3".
	Source string   `mapstructure:"source"`
	Dir    string   `mapstructure:"dir"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	Prefix    string        `mapstructure:"prefix"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	PathStyle bool          `mapstructure:"path_style"`
	Retries   uint64        `mapstructure:"retries"`
	RetryBase time.Duration `mapstructure:"retry_base"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DBConfig locates the run history database. An empty path disables it.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DemoConfig controls the synthetic demo variant. A zero seed is replaced by
// the load time.
type DemoConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Seed     uint64 `mapstructure:"seed"`
	Rows     int    `mapstructure:"rows"`
	Trees    int    `mapstructure:"trees"`
	MaxDepth int    `mapstructure:"max_depth"`
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	demo := synth.DefaultOptions()
	v.SetDefault("listen", ":8080")
	v.SetDefault("artifacts.source", "dir")
	v.SetDefault("artifacts.dir", "models")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "")
	v.SetDefault("artifacts.s3.access_key", "")
	v.SetDefault("artifacts.s3.secret_key", "")
	v.SetDefault("artifacts.s3.path_style", true)
	v.SetDefault("artifacts.s3.retries", 5)
	v.SetDefault("artifacts.s3.retry_base", "1s")
	v.SetDefault("upload.max_bytes", DefaultMaxUploadBytes)
	v.SetDefault("db.path", "exoquest.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("demo.enabled", false)
	v.SetDefault("demo.seed", 0)
	v.SetDefault("demo.rows", demo.Rows)
	v.SetDefault("demo.trees", demo.Trees)
	v.SetDefault("demo.max_depth", demo.MaxDepth)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes and
// validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	switch c.Artifacts.Source {
	case "dir":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir must not be empty")
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket must not be empty")
		}
		if c.Artifacts.S3.RetryBase <= 0 {
			return fmt.Errorf("artifacts.s3.retry_base must be positive")
		}
	default:
		return fmt.Errorf("artifacts.source must be dir or s3, got %q", c.Artifacts.Source)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Demo.Enabled {
		if c.Demo.Rows < 2 || c.Demo.Trees <= 0 || c.Demo.MaxDepth <= 0 {
			return fmt.Errorf("demo.rows must be at least 2 and demo.trees, demo.max_depth positive")
		}
	}
	return nil
}

// ArtifactSource builds the configured artifact source.
func (c *Config) ArtifactSource() (artifact.Store, error) {
	if c.Artifacts.Source == "s3" {
		s := c.Artifacts.S3
		src, err := artifact.NewS3Source(artifact.S3Config{
			Endpoint:   s.Endpoint,
			Region:     s.Region,
			Bucket:     s.Bucket,
			Prefix:     s.Prefix,
			AccessKey:  s.AccessKey,
			SecretKey:  s.SecretKey,
			PathStyle:  s.PathStyle,
			MaxRetries: s.Retries,
			RetryBase:  s.RetryBase,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return artifact.NewDirSource(c.Artifacts.Dir), nil
}

// DemoOptions returns the demo training options.
func (c *Config) DemoOptions() synth.Options {
	return synth.Options{
		Rows:     c.Demo.Rows,
		Trees:    c.Demo.Trees,
		MaxDepth: c.Demo.MaxDepth,
		Seed:     c.Demo.Seed,
	}
}
