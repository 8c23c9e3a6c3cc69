package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shoroku/internal/models"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"heart failure", "-limit", "5"},
			expected: []string{"-limit", "5", "heart failure"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "heart failure"},
			expected: []string{"-limit", "5", "heart failure"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"heart failure"},
			expected: []string{"heart failure"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "--output", "json"},
			expected: []string{"--output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"cardiac"}, "cardiac"},
		{"multiple words", []string{"cardiac", "output"}, "cardiac output"},
		{"single quoted phrase", []string{"cardiac output"}, "cardiac output"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SHOROKU_DATABASE_PATH", "DATABASE_URL", "GOOGLE_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "test.db"), cfg.Storage.DatabasePath)
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("SHOROKU_DATABASE_PATH", "/tmp/shoroku-env.db")

	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, "/tmp/shoroku-env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.Overlap())
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// writeConfig writes a config using the deterministic mock provider and returns its path.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	clearEnv(t)
	p := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./abstracts.db"
embedding:
  provider: mock
  dimensions: 8
ingest:
  chunk_size: 40
  chunk_overlap: 10
  batch_size: 2
  workers: 2
query:
  default_limit: 2
`
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_LoadEmbedQueryDelete(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	data := filepath.Join(dir, "pubmed.jsonl")
	require.NoError(t, os.WriteFile(data, []byte(
		`{"id": "p1", "title": "Heart", "abstract": ["Cardiac output was measured in forty patients.", "Results improved after surgery."]}`+"\n"+
			`{"id": "p2", "title": "Lung", "abstract": "Spirometry values improved after inhaled treatment."}`+"\n"+
			`{"id": "p3", "title": "Empty"}`+"\n"), 0600))

	code, out, errOut := runCmd(t, "load", "--config", cfgPath, data)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Loaded 2 document(s), skipped 1 without abstract")
	assert.Contains(t, errOut, "skipped (no abstract): pubmed.jsonl: /Empty")

	code, out, errOut = runCmd(t, "embed", "--config", cfgPath, "--output", "json")
	require.Equal(t, 0, code, errOut)
	var report struct {
		State     string         `json:"state"`
		Documents int            `json:"documents"`
		Chunks    map[string]int `json:"chunks"`
		Records   int            `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "done", report.State)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, report.Chunks["p1"]+report.Chunks["p2"], report.Records)

	code, _, errOut = runCmd(t, "embed", "--config", cfgPath, "p1")
	assert.Equal(t, 1, code, "re-embedding stored chunks collides")
	assert.Contains(t, errOut, "duplicate")

	code, out, errOut = runCmd(t, "query", "--config", cfgPath, "--output", "json", "Cardiac output was measured in forty pat")
	require.Equal(t, 0, code, errOut)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 2, "default limit from config")
	assert.Equal(t, "p1", resp.Results[0].Record.DocumentID)
	assert.Equal(t, 0, resp.Results[0].Record.ChunkIndex)
	assert.InDelta(t, 0, resp.Results[0].Distance, 1e-6)

	code, out, errOut = runCmd(t, "query", "Cardiac output was measured in forty pat", "--config", cfgPath, "--limit", "1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "chunk index: 0\ndocument title: Heart\n")
	assert.Equal(t, 1, strings.Count(out, "distance:"))

	code, out, errOut = runCmd(t, "status", "--config", cfgPath, "--output", "json")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"documents": 2`)

	code, out, errOut = runCmd(t, "delete", "--config", cfgPath, "p1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Document deleted: p1")

	code, _, errOut = runCmd(t, "delete", "--config", cfgPath, "p1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := runCmd(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Usage:")

	code, _, errOut = runCmd(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Unknown command: frobnicate")

	code, out, _ := runCmd(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "shoroku version dev\n", out)

	code, _, _ = runCmd(t, "query", "--help")
	assert.Equal(t, 0, code)
}

func TestRun_QueryErrors(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	code, _, errOut := runCmd(t, "query", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "query text is required")

	code, _, errOut = runCmd(t, "query", "--config", cfgPath, "--limit", "-1", "heart")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "limit must be positive")

	code, _, errOut = runCmd(t, "query", "--config", cfgPath, "--output", "xml", "heart")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid output format")
}

func TestRun_EmbedInvalidChunking(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	code, _, errOut := runCmd(t, "embed", "--config", cfgPath, "--chunk-size", "10", "--chunk-overlap", "10")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid configuration")
}
