package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists each document as a pretty-printed JSON file named
// <id>.json inside a single directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the data directory if needed and returns the store.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the document to <dir>/<id>.json.
func (s *FileStore) Save(ctx context.Context, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", id, err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", id, err)
	}
	s.logger.Debug("Saved document", "id", id, "bytes", len(data))
	return nil
}

// Load reads <dir>/<id>.json into out.
func (s *FileStore) Load(ctx context.Context, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document %s: %w", id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	return nil
}

// Exists checks for the document file without reading it.
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat document %s: %w", id, err)
	}
	return true, nil
}

// ListIDs returns the ids of all stored player records, skipping
// housekeeping documents and non-JSON files.
func (s *FileStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", s.dir, err)
	}

	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if IsHousekeeping(id) {
			continue
		}
		ids[id] = struct{}{}
	}
	s.logger.Info("Found existing player documents", "count", len(ids))
	return ids, nil
}

// SaveBulk has no native batch path for files; it saves one by one.
func (s *FileStore) SaveBulk(ctx context.Context, docs map[string]any) (saved, failed int) {
	return saveEach(ctx, s, docs)
}
