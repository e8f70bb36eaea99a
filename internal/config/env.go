package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MIRU_"

// ApplyEnv loads dotenvPath when it exists (without overriding variables already set)
// and then applies MIRU_* environment variables on top of cfg. An empty dotenvPath
// skips the file.
func ApplyEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	strVars := map[string]*string{
		"KNOWLEDGE_BASE":           &cfg.Paths.KnowledgeBase,
		"OUTPUT_DIR":               &cfg.Paths.OutputDir,
		"DATABASE":                 &cfg.Paths.Database,
		"EMBEDDING_PROVIDER":       &cfg.Embedding.Provider,
		"EMBEDDING_MODEL":          &cfg.Embedding.Model,
		"EMBEDDING_MODEL_PATH":     &cfg.Embedding.ModelPath,
		"EMBEDDING_BASE_URL":       &cfg.Embedding.BaseURL,
		"EMBEDDING_API_KEY":        &cfg.Embedding.APIKey,
		"CACHE_PATH":               &cfg.Embedding.CachePath,
		"ONNXRUNTIME_LIBRARY_PATH": &cfg.Embedding.LibraryPath,
		"PDFTOPPM":                 &cfg.Ingest.PdftoppmPath,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"EMBEDDING_DIMENSIONS": &cfg.Embedding.Dimensions,
		"WORKERS":              &cfg.Ingest.Workers,
		"PORT":                 &cfg.Server.Port,
		"DEFAULT_TOP_K":        &cfg.Search.DefaultTopK,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", EnvPrefix, err)
		}
		cfg.Debug = b
	}
	return nil
}
