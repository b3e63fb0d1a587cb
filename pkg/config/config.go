// Package config loads ovalmerge settings from a TOML or YAML file.
//
// The format is chosen by extension (.toml, .yaml, .yml). Before decoding,
// values may be templated from the environment:
//
//	[cache]
//	backend = "{{ env.OVALMERGE_CACHE || file }}"
//	redis_addr = "{{ env.REDIS_ADDR || localhost:6379 }}"
//
// Alternatives are tried left to right; the first non-empty environment
// variable or literal wins. Command-line flags override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/ovalmerge/pkg/errors"
)

const appName = "ovalmerge"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config is the root of the configuration file.
type Config struct {
	Merge  MergeConfig  `toml:"merge" yaml:"merge"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
	Fetch  FetchConfig  `toml:"fetch" yaml:"fetch"`
	Server ServerConfig `toml:"server" yaml:"server"`
	Log    LogConfig    `toml:"log" yaml:"log"`
}

// MergeConfig holds defaults for merge runs. Zero values mean "use the
// built-in default".
type MergeConfig struct {
	Scheme  string `toml:"scheme" yaml:"scheme" validate:"omitempty,max=64"`
	Width   int    `toml:"width" yaml:"width" validate:"gte=0,lte=20"`
	Indent  int    `toml:"indent" yaml:"indent" validate:"gte=0,lte=16"`
	Workers int    `toml:"workers" yaml:"workers" validate:"gte=0"`
}

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Backend       string `toml:"backend" yaml:"backend" validate:"omitempty,oneof=file redis mongo none"`
	Dir           string `toml:"dir" yaml:"dir"`
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis,omitempty,hostname_port"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db" validate:"gte=0"`
	RedisPrefix   string `toml:"redis_prefix" yaml:"redis_prefix"`

	MongoURI        string `toml:"mongo_uri" yaml:"mongo_uri" validate:"required_if=Backend mongo,omitempty,startswith=mongodb"`
	MongoDatabase   string `toml:"mongo_database" yaml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection" yaml:"mongo_collection"`
}

// FetchConfig configures downloads of http(s) feeds.
type FetchConfig struct {
	Enabled        bool `toml:"enabled" yaml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	Attempts       int  `toml:"attempts" yaml:"attempts" validate:"gte=0,lte=10"`
	TTLMinutes     int  `toml:"ttl_minutes" yaml:"ttl_minutes" validate:"gte=0"`
	MaxMB          int  `toml:"max_mb" yaml:"max_mb" validate:"gte=0"`
}

// ServerConfig configures "ovalmerge serve".
type ServerConfig struct {
	Addr           string `toml:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
	MaxUploadMB    int    `toml:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=0"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend:         BackendFile,
			RedisPrefix:     appName + ":",
			MongoDatabase:   appName,
			MongoCollection: "cache",
		},
		Fetch: FetchConfig{
			Enabled:        true,
			TimeoutSeconds: 300,
			Attempts:       3,
			TTLMinutes:     60,
			MaxMB:          1024,
		},
		Server: ServerConfig{
			Addr:           "localhost:8080",
			MaxUploadMB:    256,
			TimeoutSeconds: 120,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/ovalmerge/config.toml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads, templates, decodes and validates the file at path. Values
// absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read config %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return Parse(path, data)
}

// LoadDefault loads the file at [DefaultPath] or returns [Default] when
// there is none.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes data in the format implied by name's extension.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()
	data = Template(data)

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", name)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", name)
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unsupported config format %q (use .toml or .yaml)", name, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return errors.New(errors.ErrCodeInvalidConfig, "validation failed on %s", strings.Join(fields, ", "))
	}
	return errors.Wrap(errors.ErrCodeInvalidConfig, err, "validate config")
}

var templateRe = regexp.MustCompile(`\{\{\s*([^}]+?)\s*}}`)

// Template replaces {{ a || b || ... }} placeholders. An "env.NAME"
// alternative yields the variable's value when it is set and non-empty;
// any other alternative is a literal. A placeholder with no usable
// alternative becomes empty.
func Template(data []byte) []byte {
	return templateRe.ReplaceAllFunc(data, func(match []byte) []byte {
		content := templateRe.FindSubmatch(match)[1]
		for _, part := range strings.Split(string(content), "||") {
			part = strings.TrimSpace(part)
			if key, ok := strings.CutPrefix(part, "env."); ok {
				if value := os.Getenv(key); value != "" {
					return []byte(value)
				}
				continue
			}
			if part != "" {
				return []byte(part)
			}
		}
		return nil
	})
}
