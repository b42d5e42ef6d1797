// Package config loads settings from an optional YAML file and SHRAMBA_*
// environment variables. Environment variables win over the file, and the
// file wins over the defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/erazemk/shramba/internal/hierarchy"
)

// EnvPrefix is prepended to every environment variable, e.g. SHRAMBA_DB_PATH.
const EnvPrefix = "SHRAMBA"

// Config holds every setting of a shramba process.
type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	Log struct {
		Path string
	} `mapstructure:"log"`

	DB struct {
		Path string
	} `mapstructure:"db"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`

	Codes struct {
		Prefix      string
		Width       int
		MaxAttempts int `mapstructure:"max_attempts"`
	} `mapstructure:"codes"`

	Rules struct {
		DefaultPreset string `mapstructure:"default_preset"`
	} `mapstructure:"rules"`

	Paths struct {
		MaxSegments int `mapstructure:"max_segments"`
	} `mapstructure:"paths"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("log.path", "")
	v.SetDefault("db.path", "shramba.sqlite3")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("codes.prefix", "")
	v.SetDefault("codes.width", 3)
	v.SetDefault("codes.max_attempts", 5)
	v.SetDefault("rules.default_preset", hierarchy.PresetStandard)
	v.SetDefault("paths.max_segments", 3)
	v.SetDefault("metrics.enabled", true)
}

// Load reads the config file at path, if any, then applies the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.Codes.Width < 1 || c.Codes.Width > 18 {
		errs = append(errs, fmt.Errorf("codes.width must be between 1 and 18, got %d", c.Codes.Width))
	}
	if c.Codes.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("codes.max_attempts must be positive, got %d", c.Codes.MaxAttempts))
	}
	if _, err := hierarchy.Preset(c.Rules.DefaultPreset); err != nil {
		errs = append(errs, fmt.Errorf("rules.default_preset: %w", err))
	}
	return errors.Join(errs...)
}
