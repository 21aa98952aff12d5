// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
bus:
  backend: inproc
  max_attempts: 5
  retry_delay: 250ms
conversation:
  auto_classify: true
  chat_timeout: 15m
resolution:
  update_interval: 2h
  silence_threshold: 6h
  open_swarm: true
routing:
  strategy: least_busy
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/deskflow.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Bus.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Bus.RetryDelay)
	assert.True(t, cfg.Conversation.AutoClassify)
	assert.Equal(t, 15*time.Minute, cfg.Conversation.ChatTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Resolution.UpdateInterval)
	assert.Equal(t, 6*time.Hour, cfg.Resolution.SilenceThreshold)
	assert.True(t, cfg.Resolution.OpenSwarm)
	assert.Equal(t, "least_busy", cfg.Routing.Strategy)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "inproc", cfg.Bus.Backend)
	assert.Equal(t, 3, cfg.Bus.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Bus.RetryDelay)
	assert.Equal(t, 10000, cfg.Bus.ProcessedSetSize)
	assert.Equal(t, 10*time.Minute, cfg.Conversation.ChatTimeout)
	assert.Equal(t, 0.6, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Classifier.MaxDeflectionAttempts)
	assert.Equal(t, 500, cfg.Routing.MaxQueueSize)
	assert.Equal(t, "skill_based", cfg.Routing.Strategy)
	assert.Equal(t, 15, cfg.Routing.EscalationTimeoutMinutes)
	assert.Equal(t, "@every 5s", cfg.Routing.AssignmentSweepSchedule)
	assert.Equal(t, 4, cfg.Resolution.DefaultEtaHours["P0"])
	assert.Equal(t, 168, cfg.Resolution.DefaultEtaHours["P3"])
	assert.Equal(t, 4*time.Hour, cfg.Resolution.UpdateInterval)
	assert.Equal(t, 8*time.Hour, cfg.Resolution.SilenceThreshold)
	assert.Equal(t, "simulated", cfg.Swarm.Backend)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("DESKFLOW_TEST_DB", "/var/lib/deskflow/prod.db")
	t.Setenv("DESKFLOW_TEST_TOKEN", "xoxb-secret")

	path := writeConfig(t, `
database:
  path: ${DESKFLOW_TEST_DB}
swarm:
  backend: slack
  bot_token: ${DESKFLOW_TEST_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/deskflow/prod.db", cfg.Database.Path)
	assert.Equal(t, "xoxb-secret", cfg.Swarm.BotToken)
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
bus:
  backend: inproc
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoad_KafkaBackendRequiresBrokers(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
bus:
  backend: kafka
  kafka:
    topic: deskflow-events
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus.kafka.brokers")
}

func TestLoad_InvalidStrategy(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
routing:
  strategy: coin_flip
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing.strategy")
}

func TestLoad_SlackBackendRequiresToken(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
swarm:
  backend: slack
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swarm.bot_token")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/deskflow.db
conversation:
  chat_timeout: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat_timeout")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
