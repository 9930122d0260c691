package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_DEFAULT_MODEL", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.AI.Host)
	assert.Equal(t, "deepseek-r1:1.5b", cfg.AI.Model)
	assert.Equal(t, 4, cfg.AI.Concurrency)
	assert.InDelta(t, 0.1, cfg.AI.Temperature, 1e-9)
	assert.True(t, cfg.IMAP.SSL)
	assert.Equal(t, 10, cfg.Sync.MaxEmails)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.AMQP.URL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	t.Setenv("OLLAMA_DEFAULT_MODEL", "llama3")
	t.Setenv("MAILTRIAGE_SYNC_MAX_EMAILS", "25")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://ollama:11434", cfg.AI.Host)
	assert.Equal(t, "llama3", cfg.AI.Model)
	assert.Equal(t, 25, cfg.Sync.MaxEmails)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_DEFAULT_MODEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  model: qwen2
  concurrency: 0
redis:
  addr: localhost:6379
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen2", cfg.AI.Model)
	assert.Equal(t, 1, cfg.AI.Concurrency, "non-positive concurrency is clamped")
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_DEFAULT_MODEL", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	cfg.AI.Model = "mistral"
	cfg.Sync.LookbackDays = 3
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral", loaded.AI.Model)
	assert.Equal(t, 3, loaded.Sync.LookbackDays)
}

func TestMailAccountLogOmitsSecret(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	account := MailAccount{ID: "a1", Address: "me@example.com", IMAPHost: "imap.example.com", Secret: "hunter2"}
	logger.Info("connecting", zap.Object("account", account))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	logged, ok := fields["account"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "me@example.com", logged["address"])
	for key, v := range logged {
		assert.NotEqual(t, "hunter2", v, key)
	}
}

func TestMailAccountApplyDefaults(t *testing.T) {
	var a MailAccount
	a.ApplyDefaults()
	assert.Equal(t, DefaultIMAPPort, a.IMAPPort)
	assert.Equal(t, DefaultSMTPPort, a.SMTPPort)
	assert.Equal(t, "INBOX", a.Mailbox)
}
