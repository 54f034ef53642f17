package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://data.stats.gov.cn"}, cfg.Endpoints)
	assert.Equal(t, []string{"E0102", "E0101", "E0103", "C01"}, cfg.Locales)
	assert.Equal(t, []string{"fsnd", "hgnd", "csyd"}, cfg.Databases)
	assert.Empty(t, cfg.Indicators)
	assert.NotEmpty(t, cfg.SearchPatterns)
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.BootTimeout)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statcn.yaml")
	content := `
locales: ["E0102"]
databases: ["fsnd"]
output_dir: out
query_timeout: 90s
indicators:
  - label: gpb_rev_total
    code: A080101
  - label: gpb_tax_rev
    code: A080102
kafka:
  brokers: ["localhost:9092"]
  topic: statcn-panel
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"E0102"}, cfg.Locales)
	assert.Equal(t, []string{"fsnd"}, cfg.Databases)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 90*time.Second, cfg.QueryTimeout)
	require.Len(t, cfg.Indicators, 2)
	assert.Equal(t, "gpb_rev_total", cfg.Indicators[0].Label)
	assert.Equal(t, "A080101", cfg.Indicators[0].Code)
	assert.Equal(t, "statcn-panel", cfg.Kafka.Topic)
	// Untouched keys keep their defaults.
	assert.Equal(t, []string{"https://data.stats.gov.cn"}, cfg.Endpoints)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STATCN_OUTPUT_DIR", "/tmp/statcn-out")
	t.Setenv("STATCN_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/statcn-out", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("empty locales", func(t *testing.T) {
		cfg := Default()
		cfg.Locales = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("indicator without code", func(t *testing.T) {
		cfg := Default()
		cfg.Indicators = append(cfg.Indicators, indicatorWith("gpb_rev_total", ""))
		assert.Error(t, cfg.Validate())
	})

	t.Run("kafka brokers without topic", func(t *testing.T) {
		cfg := Default()
		cfg.Kafka.Brokers = []string{"localhost:9092"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}

func indicatorWith(label, code string) domain.Indicator {
	return domain.Indicator{Label: label, Code: code}
}
