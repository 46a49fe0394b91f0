// Package config loads settings from defaults, an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/logging"
)

type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Prepare  PrepareConfig  `mapstructure:"prepare"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      logging.Config `mapstructure:"log"`
}

// DatasetConfig locates the input and output tables. Relative file names are
// resolved against Folder.
type DatasetConfig struct {
	Folder string `mapstructure:"folder"`
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
}

type BatchConfig struct {
	Workers int  `mapstructure:"workers"`
	Watch   bool `mapstructure:"watch"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type OCRConfig struct {
	Languages []string      `mapstructure:"languages"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PageSeg   int           `mapstructure:"page_seg"`
	Whitelist string        `mapstructure:"whitelist"`
}

type PrepareConfig struct {
	MinHeight      int     `mapstructure:"min_height"`
	TargetHeight   int     `mapstructure:"target_height"`
	Contrast       float64 `mapstructure:"contrast"`
	Sharpen        float64 `mapstructure:"sharpen"`
	Threshold      int     `mapstructure:"threshold"`
	AdaptiveWindow int     `mapstructure:"adaptive_window"`
	AdaptiveBias   int     `mapstructure:"adaptive_bias"`
}

// Options converts to the image preprocessing options.
func (p PrepareConfig) Options() imagesrc.PrepareOptions {
	return imagesrc.PrepareOptions{
		MinHeight:      p.MinHeight,
		TargetHeight:   p.TargetHeight,
		Contrast:       p.Contrast,
		Sharpen:        p.Sharpen,
		Threshold:      uint8(p.Threshold),
		AdaptiveWindow: p.AdaptiveWindow,
		AdaptiveBias:   p.AdaptiveBias,
	}
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DatabaseConfig enables run persistence when DSN is set.
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// InputPath is the dataset file to process.
func (c *Config) InputPath() string {
	return c.resolve(c.Dataset.Input)
}

// OutputPath is the prediction file to write.
func (c *Config) OutputPath() string {
	return c.resolve(c.Dataset.Output)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Dataset.Folder, name)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Dataset.Input == "" {
		errs = append(errs, errors.New("dataset.input is required"))
	}
	if c.Dataset.Output == "" {
		errs = append(errs, errors.New("dataset.output is required"))
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers must be >= 0, got %d", c.Batch.Workers))
	}
	if len(c.OCR.Languages) == 0 {
		errs = append(errs, errors.New("ocr.languages must not be empty"))
	}
	if c.OCR.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ocr.timeout must be positive, got %s", c.OCR.Timeout))
	}
	if c.OCR.PageSeg < 0 || c.OCR.PageSeg > 13 {
		errs = append(errs, fmt.Errorf("ocr.page_seg must be 0..13, got %d", c.OCR.PageSeg))
	}
	if c.Prepare.Threshold < 0 || c.Prepare.Threshold > 255 {
		errs = append(errs, fmt.Errorf("prepare.threshold must be 0..255, got %d", c.Prepare.Threshold))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_bytes must be positive, got %d", c.Fetch.MaxBytes))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend))
	}
	return errors.Join(errs...)
}
