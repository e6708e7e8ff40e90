// Package storage provides SQLite and JSON-file backends for tuning
// studies.
package storage

import (
	"path/filepath"

	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/tuning"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Open returns the store for one study. The SQLite backend keeps one
// database per study at <dir>/<study>.db; the JSON backend writes
// <dir>/<study>.json.
func Open(backend, dir, study string) (tuning.Store, error) {
	switch backend {
	case BackendSQLite, "":
		s, err := NewSQLiteStore(filepath.Join(dir, study+".db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendJSON:
		return NewFileStore(dir), nil
	}
	return nil, errors.NewConfigurationError("storage_backend", "unknown backend", backend)
}
