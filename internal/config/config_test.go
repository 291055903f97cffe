package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8333", cfg.Store.Endpoint)
	assert.Equal(t, "archive", cfg.Store.Bucket)
	assert.Equal(t, "any", cfg.Store.AccessKey)
	assert.Equal(t, "any", cfg.Store.SecretKey)
	assert.GreaterOrEqual(t, cfg.Processing.Workers, 1)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCANVAULT_ROOT", "/srv/corpus")
	t.Setenv("SCANVAULT_DATA_DIR", "/var/lib/scanvault")
	t.Setenv("SCANVAULT_WORKERS", "3")
	t.Setenv("S3_ENDPOINT", "https://s3.internal:9000")
	t.Setenv("S3_BUCKET", "documents")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKID")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	t.Setenv("OCR_LANGUAGES", "eng, deu")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/corpus", cfg.Scan.Root)
	assert.Equal(t, filepath.Join("/var/lib/scanvault", "processed"), cfg.Processing.ScratchDir)
	assert.Equal(t, filepath.Join("/var/lib/scanvault", "index.db"), cfg.Index.Path)
	assert.Equal(t, 3, cfg.Processing.Workers)
	assert.Equal(t, "https://s3.internal:9000", cfg.Store.Endpoint)
	assert.Equal(t, "documents", cfg.Store.Bucket)
	assert.Equal(t, "AKID", cfg.Store.AccessKey)
	assert.Equal(t, "SECRET", cfg.Store.SecretKey)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  root: /data/in
processing:
  workers: 2
store:
  bucket: custom
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/in", cfg.Scan.Root)
	assert.Equal(t, 2, cfg.Processing.Workers)
	assert.Equal(t, "custom", cfg.Store.Bucket)
	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:8333", cfg.Store.Endpoint)
}

func TestLoad_InvalidWorkerEnvIgnored(t *testing.T) {
	t.Setenv("SCANVAULT_WORKERS", "zero")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.Processing.Workers, 1)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scan.Root = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Processing.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.Bucket = ""
	assert.Error(t, cfg.Validate())
}
