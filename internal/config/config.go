// Package config loads server configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the platform server configuration.
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// SQLitePath stores tool registrations.
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	// RosterSQLitePath stores contexts and members served over NRPS.
	RosterSQLitePath string `mapstructure:"ROSTER_SQLITE_PATH"`

	PlatformIssuer string `mapstructure:"PLATFORM_ISSUER"`
	// PublicBaseURL overrides the scheme://host used for membership ids and page links.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	// AccessTokenAudience is the aud claim required on service tokens; empty disables the check.
	AccessTokenAudience string `mapstructure:"ACCESS_TOKEN_AUDIENCE"`
	// AccessTokenJWKSURL points at the authorization server keys. When empty,
	// tokens are verified with the local platform key.
	AccessTokenJWKSURL string `mapstructure:"ACCESS_TOKEN_JWKS_URL"`

	PlatformKid           string `mapstructure:"PLATFORM_KID"`
	PlatformPrivateKeyPEM string `mapstructure:"PLATFORM_PRIVATE_KEY_PEM"`
	PlatformPrivateKeyB64 string `mapstructure:"PLATFORM_PRIVATE_KEY_B64"`

	DefaultPageSize int `mapstructure:"NRPS_DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `mapstructure:"NRPS_MAX_PAGE_SIZE"`
}

// Load reads .env (if present), then the environment. Env vars override .env.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SQLITE_PATH", "./lti.db")
	v.SetDefault("ROSTER_SQLITE_PATH", "./roster.db")
	v.SetDefault("PLATFORM_ISSUER", "http://localhost:8080")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("ACCESS_TOKEN_AUDIENCE", "")
	v.SetDefault("ACCESS_TOKEN_JWKS_URL", "")
	v.SetDefault("PLATFORM_KID", "")
	v.SetDefault("PLATFORM_PRIVATE_KEY_PEM", "")
	v.SetDefault("PLATFORM_PRIVATE_KEY_B64", "")
	v.SetDefault("NRPS_DEFAULT_PAGE_SIZE", 50)
	v.SetDefault("NRPS_MAX_PAGE_SIZE", 500)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DefaultPageSize <= 0 {
		return errors.New("NRPS_DEFAULT_PAGE_SIZE must be positive")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return errors.New("NRPS_MAX_PAGE_SIZE must not be below NRPS_DEFAULT_PAGE_SIZE")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
