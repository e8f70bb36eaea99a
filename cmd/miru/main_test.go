package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/render"
	"github.com/hyperjump/miru/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after input are moved first",
			args:     []string{"photo.jpg", "--top-k", "3"},
			expected: []string{"--top-k", "3", "photo.jpg"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--output", "text", "photo.jpg"},
			expected: []string{"--output", "text", "photo.jpg"},
		},
		{
			name:     "input and top_k only",
			args:     []string{"photo.jpg", "10"},
			expected: []string{"photo.jpg", "10"},
		},
		{
			name:     "dash is positional",
			args:     []string{"-", "--top-k", "2"},
			expected: []string{"--top-k", "2", "-"},
		},
		{
			name:     "stdin with top_k then trailing flags",
			args:     []string{"--stdin", "1", "--config", "c.yaml"},
			expected: []string{"--stdin", "--config", "c.yaml", "1"},
		},
		{
			name:     "interleaved flags and positionals",
			args:     []string{"photo.jpg", "--output", "text", "4", "--text"},
			expected: []string{"--output", "text", "--text", "photo.jpg", "4"},
		},
		{
			name:     "flag with inline value",
			args:     []string{"photo.jpg", "--top-k=2"},
			expected: []string{"--top-k=2", "photo.jpg"},
		},
		{
			name:     "negative number stays positional",
			args:     []string{"--stdin", "-3"},
			expected: []string{"--stdin", "--", "-3"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_explicitMissingPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadConfig_envOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  database: /from/file.json\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIRU_DATABASE", "/from/env.json")
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Database != "/from/env.json" {
		t.Errorf("database = %q", cfg.Paths.Database)
	}
}

func pageJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, c)
		}
	}
	data, err := render.JPEGBytes(img, render.DefaultJPEGQuality)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// searchFixture writes a config using the mock embedder and a database with two
// single-page catalogs whose page images are on disk.
func searchFixture(t *testing.T) (configPath string, pageImages []string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "visual-embeddings-db.json")
	configPath = filepath.Join(dir, "config.yaml")
	content := "paths:\n  database: " + dbPath + "\n  output_dir: " + filepath.Join(dir, "images") +
		"\nembedding:\n  provider: mock\n  model: mock\n  dimensions: 16\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	emb := embedding.NewMockEmbedder("mock", 16)
	db := storage.New("mock", time.Now())
	for i, c := range []color.Color{color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}} {
		name := []string{"Red", "Blue"}[i]
		data := pageJPEG(t, c)
		path := filepath.Join(dir, "images", name, "page_001.jpg")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		vec, err := emb.EmbedImage(context.Background(), data)
		if err != nil {
			t.Fatal(err)
		}
		if err := storage.AppendCatalog(db, models.Catalog{
			Name:       name,
			SourceFile: "0" + string(rune('1'+i)) + "-" + name + ".pdf",
			Pages:      []models.Page{{PageNumber: 1, ImagePath: path, Embedding: vec}},
		}, false); err != nil {
			t.Fatal(err)
		}
		pageImages = append(pageImages, path)
	}
	if err := storage.Save(db, dbPath); err != nil {
		t.Fatal(err)
	}
	return configPath, pageImages
}

func TestRunSearch_FilePath(t *testing.T) {
	configPath, images := searchFixture(t)
	var stdout, stderr bytes.Buffer
	code := runSearch([]string{images[1], "1", "--config", configPath}, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stdout %s, stderr %s", code, stdout.String(), stderr.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("stdout is not one JSON document: %v\n%s", err, stdout.String())
	}
	if !resp.Success || resp.TotalPagesSearched != 2 || len(resp.Results) != 1 {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Results[0].Catalog != "Blue" || resp.Results[0].Score < 0.9999 {
		t.Errorf("top result: %+v", resp.Results[0])
	}
}

func TestRunSearch_Stdin(t *testing.T) {
	configPath, images := searchFixture(t)
	data, err := os.ReadFile(images[0])
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		args    []string
		results int
	}{
		{"default top_k", []string{"--stdin", "--config", configPath}, 2},
		{"positional top_k before flags", []string{"--stdin", "1", "--config", configPath}, 1},
		{"positional top_k last", []string{"--config", configPath, "--stdin", "1"}, 1},
		{"dash with top_k", []string{"-", "1", "--config", configPath}, 1},
		{"stdin and dash with top_k", []string{"--stdin", "-", "1", "--config", configPath}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runSearch(tt.args, bytes.NewReader(data), &stdout, &stderr)
			if code != 0 {
				t.Fatalf("exit %d, stdout %s, stderr %s", code, stdout.String(), stderr.String())
			}
			var resp models.SearchResponse
			if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Results) != tt.results || resp.Results[0].Catalog != "Red" {
				t.Errorf("results: %+v", resp.Results)
			}
		})
	}
}

func TestRunSearch_StdinInvalidTopK(t *testing.T) {
	configPath, images := searchFixture(t)
	data, err := os.ReadFile(images[0])
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := runSearch([]string{"--stdin", "-3", "--config", configPath}, bytes.NewReader(data), &stdout, &stderr); code != 1 {
		t.Fatalf("exit %d, want 1 (stderr %s)", code, stderr.String())
	}
	var out models.ErrorResponse
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("stdout is not one JSON document: %v\n%s", err, stdout.String())
	}
	if !strings.Contains(out.Error, "top_k") {
		t.Errorf("error %q should mention top_k", out.Error)
	}
}

func TestRunSearch_ErrorDocument(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := "paths:\n  database: " + filepath.Join(dir, "missing.json") +
		"\nembedding:\n  provider: mock\n  model: mock\n  dimensions: 16\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	imgPath := filepath.Join(dir, "q.jpg")
	if err := os.WriteFile(imgPath, pageJPEG(t, color.White), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing database", []string{"--config", configPath, imgPath}, "miru index"},
		{"bad top_k", []string{"--config", configPath, imgPath, "zero"}, "top_k"},
		{"negative top_k", []string{"--config", configPath, "--top-k", "-2", imgPath}, "top_k"},
		{"invalid payload", []string{"--config", configPath, "not*an*image"}, "invalid query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := runSearch(tt.args, nil, &stdout, &stderr); code != 1 {
				t.Fatalf("exit %d, want 1", code)
			}
			var out models.ErrorResponse
			if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
				t.Fatalf("stdout is not one JSON document: %v\n%s", err, stdout.String())
			}
			if !strings.Contains(out.Error, tt.want) {
				t.Errorf("error %q should mention %q", out.Error, tt.want)
			}
		})
	}
}

func TestRunStatus(t *testing.T) {
	configPath, _ := searchFixture(t)
	var stdout, stderr bytes.Buffer
	if code := runStatus([]string{"--config", configPath, "--output", "json"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var status statusResponse
	if err := json.Unmarshal(stdout.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.Indexed || status.Catalogs != 2 || status.Pages != 2 || status.Dimension != 16 || status.Model != "mock" {
		t.Errorf("status: %+v", status)
	}
}

func TestRunStatus_NotIndexed(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  database: "+filepath.Join(dir, "none.json")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := runStatus([]string{"--config", configPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "indexed:            false") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	var stdout, stderr bytes.Buffer
	if code := runInit([]string{"--config", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.DefaultTopK != 5 || cfg.Ingest.MaxSide != 800 {
		t.Errorf("written config: %+v", cfg)
	}
	if code := runInit([]string{"--config", path}, &stdout, &stderr); code != 1 {
		t.Errorf("second init without --force: exit %d, want 1", code)
	}
}
