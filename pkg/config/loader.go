package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "IMGMEASURE"

// legacyEnv maps keys to unprefixed variable names that are also honored.
var legacyEnv = map[string]string{
	"dataset.folder":        "DATASET_FOLDER",
	"database.dsn":          "DB_DSN",
	"database.auto_migrate": "DB_AUTO_MIGRATE",
	"server.jwt_secret":     "JWT_SECRET",
	"cache.redis.addr":      "REDIS_ADDR",
}

// New builds a viper instance with defaults and environment bindings.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

// Load reads the optional YAML file at path into v and returns the validated
// configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
