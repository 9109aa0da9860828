package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"MCP_SERVER_URL", "MCP_API_KEY", "MCP_CONNECT_TIMEOUT", "MCP_READ_TIMEOUT",
	"PDF_AGENT_PROVIDER", "PDF_AGENT_MODEL", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	"OPENAI_API_KEY", "PDF_MCP_SERVER_PATH", "PDF_MCP_HISTORY_DB", "PDF_MCP_HISTORY",
}

// isolate points HOME at an empty directory and clears every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ConnectTimeout != 30*time.Second || cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("unexpected timeouts: %+v", cfg.Server)
	}
	if cfg.Agent.Provider != "gemini" || cfg.Agent.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected agent defaults: %+v", cfg.Agent)
	}
	if cfg.Stdio.Command != "node" {
		t.Errorf("expected node, got %q", cfg.Stdio.Command)
	}
	if !cfg.History.Enabled {
		t.Error("expected history enabled by default")
	}
	if want := filepath.Join(home, ".pdf-mcp-client", "history.db"); cfg.History.Path != want {
		t.Errorf("expected history path %q, got %q", want, cfg.History.Path)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	content := `
server:
  url: http://pdf.internal:3000/
  api_key: from-file
  connect_timeout: 5s
  read_timeout: 2m
agent:
  provider: openai
stdio:
  command: /usr/bin/node
  args: ["--enable-source-maps"]
  server_path: server/dist/index.js
  env:
    MAX_FILE_SIZE: "10485760"
history:
  enabled: false
  path: data/history.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.URL != "http://pdf.internal:3000/" || cfg.Server.APIKey != "from-file" {
		t.Errorf("unexpected server: %+v", cfg.Server)
	}
	if cfg.Server.ConnectTimeout != 5*time.Second || cfg.Server.ReadTimeout != 2*time.Minute {
		t.Errorf("unexpected timeouts: %+v", cfg.Server)
	}
	if cfg.Agent.Provider != "openai" || cfg.Agent.Model != "gpt-4o-mini" {
		t.Errorf("unexpected agent: %+v", cfg.Agent)
	}
	if cfg.Stdio.Command != "/usr/bin/node" || len(cfg.Stdio.Args) != 1 {
		t.Errorf("unexpected stdio: %+v", cfg.Stdio)
	}
	if want := filepath.Join(dir, "server", "dist", "index.js"); cfg.Stdio.ServerPath != want {
		t.Errorf("expected server path %q, got %q", want, cfg.Stdio.ServerPath)
	}
	if cfg.Stdio.Env["MAX_FILE_SIZE"] != "10485760" {
		t.Errorf("unexpected env: %v", cfg.Stdio.Env)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled")
	}
	if want := filepath.Join(dir, "data", "history.db"); cfg.History.Path != want {
		t.Errorf("expected history path %q, got %q", want, cfg.History.Path)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadDefaultFileIsPickedUp(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".pdf-mcp-client")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  url: http://default:3000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.URL != "http://default:3000" {
		t.Errorf("expected URL from default file, got %q", cfg.Server.URL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	os.WriteFile(path, []byte("server:\n  url: http://file:3000\n  api_key: file-key\n"), 0o644)

	t.Setenv("MCP_SERVER_URL", "http://env:4000")
	t.Setenv("MCP_API_KEY", "env-key")
	t.Setenv("MCP_READ_TIMEOUT", "90s")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("PDF_MCP_HISTORY", "off")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.URL != "http://env:4000" || cfg.Server.APIKey != "env-key" {
		t.Errorf("env did not override file: %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 90*time.Second {
		t.Errorf("expected 90s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Agent.APIKey != "google-key" {
		t.Errorf("expected GOOGLE_API_KEY fallback, got %q", cfg.Agent.APIKey)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled by env")
	}
}

func TestGeminiKeyPreferredOverGoogleKey(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.APIKey != "gemini-key" {
		t.Errorf("expected gemini-key, got %q", cfg.Agent.APIKey)
	}
}

func TestOpenAIKeyFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PDF_AGENT_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Provider != "openai" || cfg.Agent.APIKey != "sk-test" {
		t.Errorf("unexpected agent config: %+v", cfg.Agent)
	}
}

func TestInvalidDurationEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MCP_CONNECT_TIMEOUT", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
