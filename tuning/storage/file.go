package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/tuning"
)

// FileStore keeps each study as a JSON document <dir>/<name>.json.
type FileStore struct {
	dir string
}

var _ tuning.Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the named study. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context, name string) (*tuning.Study, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errors.WithStack(err)
	}
	path := s.path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError("read", path, err)
	}
	var study tuning.Study
	if err := json.Unmarshal(data, &study); err != nil {
		return nil, false, errors.NewStorageError("decode", path, err)
	}
	return &study, true, nil
}

// Save writes the study to a temporary file in the same directory and
// renames it over the target, so readers never see a partial document.
func (s *FileStore) Save(ctx context.Context, study *tuning.Study) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	path := s.path(study.Name)
	data, err := json.MarshalIndent(study, "", "  ")
	if err != nil {
		return errors.NewStorageError("encode", path, err)
	}
	return writeFileAtomic(path, data)
}

func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewStorageError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewStorageError("create temp", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStorageError("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.NewStorageError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageError("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewStorageError("rename", path, err)
	}
	return nil
}
