package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFrom_MergesEnvFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("TUTOR_DB_HOST", "db.internal")

	writeFile(t, dir, "config.yaml", `
app:
  name: ai-tutor-api
database:
  postgres:
    host: ${TUTOR_DB_HOST:localhost}
    password: ${TUTOR_DB_PASSWORD:changeme}
llm:
  models:
    gpt_4o:
      upstream_model: gpt-4o-2024-08-06
`)
	writeFile(t, dir, "config.test.yaml", `
tutor:
  max_tokens: 256
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "changeme", cfg.Database.Postgres.Password)
	assert.Equal(t, 256, cfg.Tutor.MaxTokens)
	assert.Equal(t, 10, cfg.Tutor.HistoryLimit)
	assert.Equal(t, 0.7, cfg.Tutor.Temperature)
	assert.Equal(t, 60*time.Second, cfg.LLM.CallTimeout)

	require.Contains(t, cfg.LLM.Models, "gpt_4o")
	require.Contains(t, cfg.LLM.Models, "gpt_4o_mini")
	assert.Equal(t, "gpt-4o-2024-08-06", cfg.LLM.Models["gpt_4o"].UpstreamModel)
	assert.Equal(t, 10.0, cfg.LLM.Models["gpt_4o"].CompletionTokenCost)
	assert.Equal(t, 0.15, cfg.LLM.Models["gpt_4o_mini"].PromptTokenCost)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${EXPAND_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${EXPAND_UNSET_X:fallback}"))
	assert.Equal(t, "c=${EXPAND_UNSET_Y}", expandEnv("c=${EXPAND_UNSET_Y}"))
}
