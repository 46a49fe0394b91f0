package config

import (
	"time"

	"github.com/spf13/viper"

	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/ocr"
	"imgmeasure/pkg/predict"
)

func setDefaults(v *viper.Viper) {
	prep := imagesrc.DefaultPrepareOptions()

	v.SetDefault("dataset.folder", "../dataset/")
	v.SetDefault("dataset.input", "test.csv")
	v.SetDefault("dataset.output", "test_out.csv")

	v.SetDefault("batch.workers", 0)
	v.SetDefault("batch.watch", false)

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", int64(imagesrc.DefaultMaxBytes))

	v.SetDefault("ocr.languages", ocr.DefaultLanguages)
	v.SetDefault("ocr.timeout", predict.DefaultTimeout)
	v.SetDefault("ocr.page_seg", 3)
	v.SetDefault("ocr.whitelist", "")

	v.SetDefault("prepare.min_height", prep.MinHeight)
	v.SetDefault("prepare.target_height", prep.TargetHeight)
	v.SetDefault("prepare.contrast", 0.0)
	v.SetDefault("prepare.sharpen", 0.0)
	v.SetDefault("prepare.threshold", 0)
	v.SetDefault("prepare.adaptive_window", 0)
	v.SetDefault("prepare.adaptive_bias", 0)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "imgmeasure:text:")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
