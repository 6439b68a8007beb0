package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCompletionEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY", "COMPLETION_BASE_URL", "AI_MODEL_NAME"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearCompletionEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("DELIVERY_MODE", "")
	t.Setenv("INGEST_STORE_TIMEOUT_MS", "")

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.False(t, cfg.AIEnabled())
	assert.Equal(t, "https://api.deepseek.com", cfg.CompletionBaseURL)
	assert.Equal(t, "deepseek-chat", cfg.CompletionModel)
	assert.Equal(t, 3500*time.Millisecond, cfg.CompletionTimeout())
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, "push", cfg.DeliveryMode)
	assert.Equal(t, 50*time.Second, cfg.ReplyTokenTTL())
	assert.Equal(t, 10*time.Minute, cfg.DedupeTTL())
	assert.Equal(t, 300*time.Millisecond, cfg.IngestStoreTimeout())
}

func TestLoadPrefersDeepSeekKey(t *testing.T) {
	clearCompletionEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")

	cfg := Load()

	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, "deepseek", cfg.CompletionProvider)
	assert.Equal(t, "ds-key", cfg.CompletionAPIKey)
}

func TestLoadOpenAIDefaults(t *testing.T) {
	clearCompletionEnv(t)
	t.Setenv("OPENAI_API_KEY", "oa-key")

	cfg := Load()

	assert.Equal(t, "openai", cfg.CompletionProvider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.CompletionBaseURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.CompletionModel)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_TURNS", "many")
	t.Setenv("DELIVERY_RPS", "fast")
	t.Setenv("LINE_SIGNATURE_STRICT", "maybe")

	cfg := Load()

	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, 10.0, cfg.DeliveryRPS)
	assert.False(t, cfg.LineSignatureStrict)
}

func TestLoadDotEnvKeepsProcessEnv(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	base := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("RELAY_TEST_A=local\n"), 0o600))
	require.NoError(t, os.WriteFile(base, []byte("RELAY_TEST_A=base\nRELAY_TEST_B=\"quoted value\"\nRELAY_TEST_C=file\n"), 0o600))
	t.Setenv("RELAY_TEST_C", "process")
	t.Cleanup(func() {
		_ = os.Unsetenv("RELAY_TEST_A")
		_ = os.Unsetenv("RELAY_TEST_B")
	})

	require.NoError(t, LoadDotEnv(local, base, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "local", os.Getenv("RELAY_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("RELAY_TEST_B"))
	assert.Equal(t, "process", os.Getenv("RELAY_TEST_C"))
}
