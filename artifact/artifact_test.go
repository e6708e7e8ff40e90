package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

func fcFeature() PredictedFeature {
	return NewPredictedFeature(frame.PredictionVector{
		Name:   "fc",
		Index:  []string{"0", "1", "2"},
		Values: []float64{1.5, -2.25, 3},
	}, PhaseTest)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	f := fcFeature()

	ok, err := store.Exists(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Write(ctx, f))

	ok, err = store.Exists(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Read(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.Equal(t, f.Values, got.Values)
	assert.Equal(t, f.Index, got.Index)
	assert.Equal(t, f.Fingerprint, got.Fingerprint)
	assert.True(t, f.CreatedAt.Equal(got.CreatedAt))

	vec := got.Vector()
	assert.Equal(t, "fc", vec.Name)
	assert.Equal(t, []float64{1.5, -2.25, 3}, vec.Values)
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Write(context.Background(), fcFeature()))

	_, err := os.Stat(filepath.Join(dir, "test", "fc.gob"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "test"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStoreMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Read(context.Background(), "fc", PhaseTrain)
	require.Error(t, err)

	var serr *errors.StorageError
	assert.True(t, errors.As(err, &serr))
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	path := store.Path("fc", PhaseTest)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not gob"), 0o644))

	_, err := store.Read(context.Background(), "fc", PhaseTest)
	var serr *errors.StorageError
	require.True(t, errors.As(err, &serr))
	assert.False(t, errors.Is(err, ErrArtifactNotFound))
}

func TestWriteRejectsInvalid(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	f := fcFeature()
	f.Values = f.Values[:2]
	var shape *errors.ShapeMismatchError
	assert.True(t, errors.As(store.Write(ctx, f), &shape))

	f = fcFeature()
	f.Phase = "valid"
	assert.Error(t, store.Write(ctx, f))
}

func TestReadAligned(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Write(ctx, fcFeature()))

	got, err := ReadAligned(ctx, store, "fc", PhaseTest, []string{"0", "1", "2"})
	require.NoError(t, err)
	assert.Len(t, got.Values, 3)

	var shape *errors.ShapeMismatchError
	_, err = ReadAligned(ctx, store, "fc", PhaseTest, []string{"0", "1"})
	assert.True(t, errors.As(err, &shape))

	_, err = ReadAligned(ctx, store, "fc", PhaseTest, []string{"0", "2", "1"})
	assert.True(t, errors.As(err, &shape))
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewFileStore(t.TempDir())
	store, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	f := fcFeature()
	require.NoError(t, store.Write(ctx, f))
	assert.Equal(t, 0, store.Len())

	got, err := store.Read(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.Equal(t, f.Values, got.Values)
	assert.Equal(t, 1, store.Len())

	got.Values[0] = 100
	again, err := store.Read(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.Equal(t, 1.5, again.Values[0])

	f.Values = []float64{7, 8, 9}
	require.NoError(t, store.Write(ctx, f))
	assert.Equal(t, 0, store.Len())

	again, err = store.Read(ctx, "fc", PhaseTest)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9}, again.Values)

	_, err = NewCachedStore(inner, 0)
	var cerr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}
