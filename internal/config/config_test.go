package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_InvalidServerPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_ChunkingBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Chunking.MaxChars = 50
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxChars < 100")
	}

	cfg = Defaults()
	cfg.Chunking.OverlapChars = cfg.Chunking.MaxChars
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for overlap >= maxChars")
	}

	cfg = Defaults()
	cfg.Chunking.OverlapChars = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative overlap")
	}

	cfg = Defaults()
	cfg.Chunking.MaxChars = 100
	cfg.Chunking.OverlapChars = 99
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxChars=100 overlap=99 should be valid: %v", err)
	}
}

func TestValidate_SearchAndSession(t *testing.T) {
	cfg := Defaults()
	cfg.Search.MaxResults = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxResults=0")
	}

	cfg = Defaults()
	cfg.Session.MaxHistory = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxHistory=0")
	}
}

func TestValidate_ProviderReferences(t *testing.T) {
	cfg := Defaults()
	cfg.General.Provider = "nonexistent"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	cfg = Defaults()
	cfg.General.Provider = "openai" // disabled by default
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for disabled provider")
	}

	cfg = Defaults()
	cfg.General.Provider = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty provider")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Server.Port = 9100
	original.Search.MaxResults = 7

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Server.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", loaded.Server.Port)
	}
	if loaded.Search.MaxResults != 7 {
		t.Fatalf("expected maxResults 7, got %d", loaded.Search.MaxResults)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"server": {"port": 9200}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Fatalf("expected port 9200, got %d", cfg.Server.Port)
	}
	if cfg.Chunking.MaxChars != 800 {
		t.Fatalf("expected default maxChars 800, got %d", cfg.Chunking.MaxChars)
	}
	if cfg.General.Provider != "claude" {
		t.Fatalf("expected default provider claude, got %q", cfg.General.Provider)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9300\nchunking:\n  maxChars: 600\n  overlapChars: 60\n"
	os.WriteFile(path, []byte(content), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	if cfg.Server.Port != 9300 {
		t.Fatalf("expected port 9300, got %d", cfg.Server.Port)
	}
	if cfg.Chunking.MaxChars != 600 || cfg.Chunking.OverlapChars != 60 {
		t.Fatalf("expected chunking 600/60, got %d/%d", cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars)
	}
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	original := Defaults()
	original.Qdrant.Host = "qdrant.internal"

	if err := Save(path, original); err != nil {
		t.Fatalf("save yaml: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if loaded.Qdrant.Host != "qdrant.internal" {
		t.Fatalf("expected qdrant.internal, got %q", loaded.Qdrant.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"search": {"maxResults": 0}}`), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

// --- Env expansion ---

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("COURSECHAT_TEST_KEY", "sk-test-12345")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"providers": {"claude": {"enabled": true, "apiKey": "${COURSECHAT_TEST_KEY}"}}}`
	os.WriteFile(path, []byte(content), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["claude"].APIKey != "sk-test-12345" {
		t.Fatalf("expected expanded key, got %q", cfg.Providers["claude"].APIKey)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	got := ExpandEnvVars("${COURSECHAT_UNSET_VAR:-fallback}")
	if got != "fallback" {
		t.Fatalf("expected 'fallback', got %q", got)
	}
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	in := "${COURSECHAT_UNSET_VAR}"
	if got := ExpandEnvVars(in); got != in {
		t.Fatalf("expected unchanged reference, got %q", got)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "general.provider")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "claude" {
		t.Fatalf("expected 'claude', got %v", val)
	}

	val, err = GetByPath(cfg, "server.port")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != float64(8000) {
		t.Fatalf("expected 8000, got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	_, err := GetByPath(cfg, "nonexistent.path")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_ValidPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "qdrant.host", "qdrant.internal"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Qdrant.Host != "qdrant.internal" {
		t.Fatalf("expected 'qdrant.internal', got %q", cfg.Qdrant.Host)
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "search.maxResults", "9"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Search.MaxResults != 9 {
		t.Fatalf("expected 9, got %d", cfg.Search.MaxResults)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "querylog.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.QueryLog.Enabled {
		t.Fatal("expected querylog.enabled=true")
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	claude := cfg.Providers["claude"]
	claude.APIKey = "sk-ant-REDACTED"
	cfg.Providers["claude"] = claude
	cfg.Embedding.APIKey = "sk-1234567890abcdefghij"

	sanitized := Sanitize(cfg)

	if sanitized.Providers["claude"].APIKey == cfg.Providers["claude"].APIKey {
		t.Fatal("provider API key should be masked")
	}
	if sanitized.Embedding.APIKey == cfg.Embedding.APIKey {
		t.Fatal("embedding API key should be masked")
	}
	if !strings.HasPrefix(sanitized.Providers["claude"].APIKey, "sk-a") {
		t.Fatalf("mask should keep first 4 chars, got %q", sanitized.Providers["claude"].APIKey)
	}
	// Verify original is untouched
	if cfg.Providers["claude"].APIKey != "sk-ant-REDACTED" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	claude := cfg.Providers["claude"]
	claude.APIKey = "short"
	cfg.Providers["claude"] = claude

	sanitized := Sanitize(cfg)
	if sanitized.Providers["claude"].APIKey != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Providers["claude"].APIKey)
	}
}

func TestListPaths_ContainsKnownPaths(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, want := range []string{"server.port", "general.provider", "chunking.maxChars"} {
		if _, ok := paths[want]; !ok {
			t.Fatalf("expected path %q in listing", want)
		}
	}
}
