package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	dir := writeConfig(t, `
server:
  mode: debug
jwt:
  secret: short
  expire_hours: 2
storage:
  type: local
  local_path: `+uploads+`
tavus:
  api_key: tk
  result_coach_replica_id: r-9
cors:
  allowed_origins:
    - http://localhost:5173
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "https://tavusapi.com", cfg.Tavus.BaseURL)
	assert.Equal(t, "r-9", cfg.Tavus.ResultCoachReplicaID)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(500*1024*1024), cfg.Storage.MaxUploadBytes())
	assert.Equal(t, 100000, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "logs/app.log", cfg.Log.File)
	assert.DirExists(t, uploads)
}

func TestLoadConfigRejectsWeakSecretInRelease(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: short
storage:
  type: minio
`)

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
