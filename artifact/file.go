package artifact

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

const payloadVersion = 1

// payload is the on-disk gob record.
type payload struct {
	Version int
	Feature PredictedFeature
}

// FileStore keeps features as gob files at <dir>/<phase>/<name>.gob.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. Directories are created on
// write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file used for (name, phase).
func (s *FileStore) Path(name, phase string) string {
	return filepath.Join(s.dir, phase, name+".gob")
}

// Write replaces the entry atomically.
func (s *FileStore) Write(ctx context.Context, f PredictedFeature) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Fingerprint == "" {
		f.Fingerprint = IndexFingerprint(f.Index)
	}
	path := s.Path(f.Name, f.Phase)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{Version: payloadVersion, Feature: f}); err != nil {
		return errors.NewStorageError("encode", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewStorageError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+f.Name+".*.tmp")
	if err != nil {
		return errors.NewStorageError("create temp", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.NewStorageError("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageError("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewStorageError("rename", path, err)
	}
	return nil
}

// Read decodes the entry and verifies its fingerprint.
func (s *FileStore) Read(ctx context.Context, name, phase string) (PredictedFeature, error) {
	if err := ctx.Err(); err != nil {
		return PredictedFeature{}, errors.WithStack(err)
	}
	path := s.Path(name, phase)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return PredictedFeature{}, errors.NewStorageError("read", path, ErrArtifactNotFound)
	}
	if err != nil {
		return PredictedFeature{}, errors.NewStorageError("read", path, err)
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return PredictedFeature{}, errors.NewStorageError("decode", path, err)
	}
	if p.Version != payloadVersion {
		return PredictedFeature{}, errors.NewStorageError("decode", path,
			errors.Newf("unsupported payload version %d", p.Version))
	}
	if p.Feature.Fingerprint != IndexFingerprint(p.Feature.Index) {
		return PredictedFeature{}, errors.NewStorageError("decode", path, errors.New("index fingerprint mismatch"))
	}
	if err := p.Feature.Validate(); err != nil {
		return PredictedFeature{}, errors.NewStorageError("decode", path, err)
	}
	return p.Feature, nil
}

// Exists reports whether the entry file is present.
func (s *FileStore) Exists(ctx context.Context, name, phase string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}
	path := s.Path(name, phase)
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStorageError("stat", path, err)
	}
	return true, nil
}
