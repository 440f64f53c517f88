// Package store persists index snapshots and loads them back. Every save
// replaces the previous artifacts wholesale through temporary files and
// renames, and every load verifies the artifacts before handing out a
// snapshot; anything unreadable or inconsistent fails with CorruptIndex.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// FormatVersion is bumped whenever the persisted layout changes.
const FormatVersion = 1

// Store saves and loads a complete snapshot.
type Store interface {
	Save(ctx context.Context, snap *index.Snapshot) error
	Load(ctx context.Context) (*index.Snapshot, error)
	Location() string
}

// New returns the backend selected by cfg.Backend.
func New(cfg config.IndexConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendJSON, "":
		return NewJSONStore(cfg.DataDir), nil
	case config.BackendSQLite:
		return NewSQLiteStore(filepath.Join(cfg.DataDir, SQLiteFile)), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// writeTemp writes data to path+".tmp", syncs it and leaves it for
// the caller to rename. It returns the temporary path.
func writeTemp(path string, data []byte) (string, error) {
	tmpPath := path + ".tmp"
	if err := writeFile(tmpPath, data); err != nil {
		return "", err
	}
	return tmpPath, nil
}

// writeFile creates path, writes data and syncs it. A partial file is
// removed on failure.
func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// syncDir makes completed renames in dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
