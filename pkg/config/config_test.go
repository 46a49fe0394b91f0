package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmeasure/pkg/imagesrc"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("../dataset/", "test.csv"), cfg.InputPath())
	assert.Equal(t, filepath.Join("../dataset/", "test_out.csv"), cfg.OutputPath())
	assert.Equal(t, []string{"eng", "fra", "deu", "spa", "ita"}, cfg.OCR.Languages)
	assert.Equal(t, 60*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	if diff := cmp.Diff(imagesrc.DefaultPrepareOptions(), cfg.Prepare.Options()); diff != "" {
		t.Errorf("prepare options (-want +got):\n%s", diff)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATASET_FOLDER", "/data")
	t.Setenv("IMGMEASURE_DATASET_OUTPUT", "/out/pred.csv")
	t.Setenv("IMGMEASURE_BATCH_WORKERS", "4")
	t.Setenv("IMGMEASURE_OCR_LANGUAGES", "eng,deu")
	t.Setenv("IMGMEASURE_OCR_TIMEOUT", "5s")
	t.Setenv("DB_DSN", "host=db user=app")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("IMGMEASURE_CACHE_BACKEND", "redis")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/data/test.csv", cfg.InputPath())
	assert.Equal(t, "/out/pred.csv", cfg.OutputPath())
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.Equal(t, 5*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "host=db user=app", cfg.Database.DSN)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("DATASET_FOLDER", "/legacy")
	t.Setenv("IMGMEASURE_DATASET_FOLDER", "/prefixed")
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/prefixed", cfg.Dataset.Folder)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgmeasure.yaml")
	yaml := `
dataset:
  folder: /srv/dataset
batch:
  workers: 2
prepare:
  adaptive_window: 31
  adaptive_bias: 10
cache:
  backend: none
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/dataset/test.csv", cfg.InputPath())
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, 31, cfg.Prepare.Options().AdaptiveWindow)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
	// unset keys keep their defaults
	assert.Equal(t, 1200, cfg.Prepare.TargetHeight)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	bad := *cfg
	bad.Batch.Workers = -1
	bad.OCR.Languages = nil
	bad.Cache.Backend = "memcached"
	bad.Prepare.Threshold = 300
	err = bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"batch.workers", "ocr.languages", "cache.backend", "prepare.threshold"} {
		assert.ErrorContains(t, err, want)
	}

	redis := *cfg
	redis.Cache.Backend = CacheRedis
	assert.ErrorContains(t, redis.Validate(), "cache.redis.addr")
}
