package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	// Feature extraction options.
	ExpandAncestors     bool `mapstructure:"EXPAND_ANCESTORS"`
	MaxAncestorFeatures int  `mapstructure:"MAX_ANCESTOR_FEATURES"`
	AncestorMaxDepth    int  `mapstructure:"ANCESTOR_MAX_DEPTH"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("EXPAND_ANCESTORS", false)
	v.SetDefault("MAX_ANCESTOR_FEATURES", 256)
	v.SetDefault("ANCESTOR_MAX_DEPTH", 32)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("EXPAND_ANCESTORS")
	v.BindEnv("MAX_ANCESTOR_FEATURES")
	v.BindEnv("ANCESTOR_MAX_DEPTH")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "development")
}

// Validate checks that the configuration is safe to run. Outside development
// mode a signing key must be present so bearer tokens are actually verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV is %q", c.Env)
	}
	if c.MaxAncestorFeatures < 0 {
		return fmt.Errorf("MAX_ANCESTOR_FEATURES must be >= 0, got %d", c.MaxAncestorFeatures)
	}
	if c.AncestorMaxDepth <= 0 {
		return fmt.Errorf("ANCESTOR_MAX_DEPTH must be > 0, got %d", c.AncestorMaxDepth)
	}
	return nil
}
