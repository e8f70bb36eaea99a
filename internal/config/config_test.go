package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
paths:
  database: "/tmp/db.json"
embedding:
  provider: mock
  dimensions: 64
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Paths.Database != "/tmp/db.json" {
		t.Errorf("database = %q", cfg.Paths.Database)
	}
	if cfg.Paths.KnowledgeBase != DefaultKnowledgeBase {
		t.Errorf("knowledge_base should default, got %q", cfg.Paths.KnowledgeBase)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
paths:
  knowledge_base: "./catalogs"
  output_dir: "./images"
  database: "./db.json"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"knowledge_base": filepath.Join(dir, "catalogs"),
		"output_dir":     filepath.Join(dir, "images"),
		"database":       filepath.Join(dir, "db.json"),
	}
	got := map[string]string{
		"knowledge_base": cfg.Paths.KnowledgeBase,
		"output_dir":     cfg.Paths.OutputDir,
		"database":       cfg.Paths.Database,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s = %q, want %q", k, got[k], w)
		}
	}
}

func TestLoad_relativePathUnderHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("paths:\n  database: \"miru/db.json\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "miru", "db.json"); cfg.Paths.Database != want {
		t.Errorf("database = %q, want %q", cfg.Paths.Database, want)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Paths.Database != DefaultDatabase || cfg.Paths.OutputDir != DefaultOutputDir {
		t.Errorf("path defaults: %+v", cfg.Paths)
	}
	if cfg.Embedding.Model != DefaultModel || cfg.Embedding.Dimensions != 512 || cfg.Embedding.Provider != "onnx" {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Ingest.DPI != 150 || cfg.Ingest.MaxSide != 800 || cfg.Ingest.JPEGQuality != 85 {
		t.Errorf("ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Search.DefaultTopK != 5 {
		t.Errorf("default_top_k = %d", cfg.Search.DefaultTopK)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	cfg := &Config{Search: SearchConfig{DefaultTopK: 12}, Ingest: IngestConfig{Workers: 4}}
	ApplyDefaults(cfg)
	if cfg.Search.DefaultTopK != 12 || cfg.Ingest.Workers != 4 {
		t.Errorf("explicit values overwritten: %+v %+v", cfg.Search, cfg.Ingest)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Default()
	cfg.Paths.Database = "/data/db.json"
	cfg.Embedding.Provider = "mock"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Paths.Database != "/data/db.json" || loaded.Embedding.Provider != "mock" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MIRU_DATABASE", "/env/db.json")
	t.Setenv("MIRU_EMBEDDING_PROVIDER", "mock")
	t.Setenv("MIRU_WORKERS", "3")
	t.Setenv("MIRU_DEBUG", "true")

	cfg := Default()
	if err := ApplyEnv(cfg, ""); err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Database != "/env/db.json" {
		t.Errorf("database = %q", cfg.Paths.Database)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Ingest.Workers != 3 {
		t.Errorf("workers = %d", cfg.Ingest.Workers)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
}

func TestApplyEnv_dotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MIRU_OUTPUT_DIR=/dotenv/images\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIRU_OUTPUT_DIR", "")
	os.Unsetenv("MIRU_OUTPUT_DIR")

	cfg := Default()
	if err := ApplyEnv(cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.OutputDir != "/dotenv/images" {
		t.Errorf("output_dir = %q", cfg.Paths.OutputDir)
	}
}

func TestApplyEnv_missingDotenvIgnored(t *testing.T) {
	cfg := Default()
	if err := ApplyEnv(cfg, filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestApplyEnv_invalidInt(t *testing.T) {
	t.Setenv("MIRU_WORKERS", "many")
	if err := ApplyEnv(Default(), ""); err == nil {
		t.Error("expected error for non-numeric MIRU_WORKERS")
	}
}
