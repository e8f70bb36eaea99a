// Package storage persists the embedding database as a single JSON artifact and
// caches page embeddings in SQLite.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hyperjump/miru/internal/models"
)

var (
	// ErrNotFound is returned by Load when the artifact does not exist, i.e. no ingestion run has happened yet.
	ErrNotFound = errors.New("embedding database not found")
	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("invalid embedding database")
	// ErrUnsupportedVersion is returned for a version this module cannot read.
	ErrUnsupportedVersion = errors.New("unsupported embedding database version")
	// ErrDuplicateCatalog is returned by AppendCatalog when the name exists and replace was not requested.
	ErrDuplicateCatalog = errors.New("catalog already exists")
)

// SchemaError describes a missing, malformed, or inconsistent field.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrSchema, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchema, e.Field, e.Reason)
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func schemaErr(field, format string, args ...interface{}) error {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// New returns an empty database for model.
func New(model string, created time.Time) *models.Database {
	return &models.Database{
		Version:  models.CurrentVersion,
		Model:    model,
		Created:  models.Timestamp{Time: created},
		Catalogs: []models.Catalog{},
	}
}

// Load reads and validates the artifact at path. A missing file yields ErrNotFound;
// a corrupt or inconsistent one yields a *SchemaError or ErrUnsupportedVersion.
func Load(path string) (*models.Database, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open embedding database: %w", err)
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Decode parses and validates a database document from r.
func Decode(r io.Reader) (*models.Database, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, schemaErr("", "malformed document: %v", err)
	}
	if fields == nil {
		return nil, schemaErr("", "document is not an object")
	}

	version, err := requiredString(fields, "version")
	if err != nil {
		return nil, err
	}
	if version != models.CurrentVersion {
		return nil, fmt.Errorf("%w: %q (supported: %q)", ErrUnsupportedVersion, version, models.CurrentVersion)
	}
	model, err := requiredString(fields, "model")
	if err != nil {
		return nil, err
	}

	db := &models.Database{Version: version, Model: model}
	if raw, ok := fields["created"]; ok {
		if err := json.Unmarshal(raw, &db.Created); err != nil {
			return nil, schemaErr("created", "%v", err)
		}
	}
	raw, ok := fields["catalogs"]
	if !ok || isNull(raw) {
		return nil, schemaErr("catalogs", "missing")
	}
	if err := json.Unmarshal(raw, &db.Catalogs); err != nil {
		return nil, schemaErr("catalogs", "malformed: %v", err)
	}
	for i := range db.Catalogs {
		if db.Catalogs[i].Pages == nil {
			db.Catalogs[i].Pages = []models.Page{}
		}
	}

	if err := Validate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", schemaErr(name, "missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", schemaErr(name, "must be a string")
	}
	if s == "" {
		return "", schemaErr(name, "must not be empty")
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Save validates db and writes it to path atomically: the document is written to a
// pending file in the destination directory, synced, and renamed over path.
// An interrupted Save never leaves a partial artifact at path.
func Save(db *models.Database, path string) error {
	if err := Validate(db); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer pending.Cleanup()

	w := bufio.NewWriterSize(pending, 1<<20)
	if err := Encode(w, db); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush database: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	syncDir(dir)
	return nil
}

// Encode writes db as a single compact JSON document. Nil slices are written as empty arrays.
func Encode(w io.Writer, db *models.Database) error {
	out := *db
	out.Catalogs = make([]models.Catalog, len(db.Catalogs))
	for i, c := range db.Catalogs {
		if c.Pages == nil {
			c.Pages = []models.Page{}
		}
		out.Catalogs[i] = c
	}
	if err := json.NewEncoder(w).Encode(&out); err != nil {
		return fmt.Errorf("encode database: %w", err)
	}
	return nil
}

// syncDir flushes the rename to disk where the platform allows opening directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
