package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "rag-chat", cfg.App.Name)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "elasticsearch", cfg.Vector.Backend)
	assert.Equal(t, "documents", cfg.Vector.Collection)
	assert.Equal(t, 20, cfg.Upload.MaxSizeMB)
	assert.Equal(t, int64(20*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "bge-m3", cfg.Ollama.EmbedModel)
	assert.Equal(t, "database", cfg.Settings.Backend)
	assert.Equal(t, "documents", cfg.Storage.Remote.Bucket)
	assert.False(t, cfg.Storage.Remote.HasCredentials())
	assert.Equal(t, 5*time.Second, cfg.Embedding.ProbeTimeoutDuration())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
vector:
  backend: memory
storage:
  remote:
    endpoint: storage.example.com
    accessKey: ak
    secretKey: sk
upload:
  maxSizeMB: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("RAG_CHAT_OLLAMA_BASEURL", "http://ollama:11434")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.True(t, cfg.Storage.Remote.HasCredentials())
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", db.GetDSN())
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetURL())
}
