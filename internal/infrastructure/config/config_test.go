package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), out, 0o600))
	return dir
}

func readFixture(t *testing.T, relPath string) []byte {
	t.Helper()
	root := findProjectRoot()
	require.NotEmpty(t, root, "locate project root failed")
	contents, err := os.ReadFile(filepath.Join(root, relPath))
	require.NoError(t, err)
	return contents
}

func mappingValue(t *testing.T, node *yaml.Node, key string) *yaml.Node {
	t.Helper()
	require.Equal(t, yaml.MappingNode, node.Kind, "expected mapping node while reading key %q", key)
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	t.Fatalf("missing key %q", key)
	return nil
}

func TestLoadFrom_Defaults(t *testing.T) {
	dir := writeConfig(t, map[string]any{
		"remote": map[string]any{"base_url": "http://localhost:8000"},
	})

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, RuntimeServer, cfg.Runtime)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, 10, cfg.Console.PageSize)
	assert.False(t, cfg.Journal.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "us-east-1", cfg.Auth.Cognito.Region)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, map[string]any{
		"remote": map[string]any{"base_url": "http://localhost:8000"},
		"redis":  map[string]any{"address": "localhost:6379"},
	})
	t.Setenv("REMOTE_BASE_URL", "https://api.marketplace.com")
	t.Setenv("AUTH_MODE", "STATIC")
	t.Setenv("AUTH_STATIC_TOKEN", "s3cret")
	t.Setenv("REDIS_LOCK_TTL", "45s")
	t.Setenv("CONSOLE_PAGE_SIZE", "25")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://api.marketplace.com", cfg.Remote.BaseURL)
	assert.Equal(t, AuthModeStatic, cfg.Auth.Mode)
	assert.Equal(t, "s3cret", cfg.Auth.StaticToken)
	assert.Equal(t, 45*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 25, cfg.Console.PageSize)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadFrom_Validation(t *testing.T) {
	dir := writeConfig(t, map[string]any{
		"runtime": "batch",
		"auth":    map[string]any{"mode": "cognito"},
		"notify":  map[string]any{"ses": map[string]any{"enabled": true}},
		"remote":  map[string]any{"production_host_pattern": "("},
	})

	_, err := LoadFrom(dir)
	require.Error(t, err)
	for _, want := range []string{
		"remote.base_url is required",
		"production_host_pattern",
		"runtime must be",
		"user_pool_id is required",
		"from_email is required",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadFrom_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "http://backend:9000")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Remote.BaseURL)
}

func TestShippedConfigIsLoadable(t *testing.T) {
	contents := readFixture(t, "configs/config.yaml")
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(contents, &doc))
	require.NotEmpty(t, doc.Content)
	root := doc.Content[0]

	assert.Equal(t, "server", mappingValue(t, root, "runtime").Value)
	assert.Equal(t, "none", mappingValue(t, mappingValue(t, root, "auth"), "mode").Value)
	assert.Equal(t, "30s", mappingValue(t, mappingValue(t, root, "redis"), "lock_ttl").Value)

	cfg, err := LoadFrom(filepath.Join(findProjectRoot(), "configs"))
	require.NoError(t, err)
	assert.Equal(t, "reviewers", cfg.Auth.RequiredGroup)
}
