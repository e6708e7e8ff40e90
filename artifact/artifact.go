// Package artifact stores predicted feature columns between pipeline
// stages.
package artifact

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// Phases of a predicted feature.
const (
	PhaseTrain = "train"
	PhaseTest  = "test"
)

// ErrArtifactNotFound is wrapped by the StorageError returned for a
// missing entry.
var ErrArtifactNotFound = errors.New("artifact: not found")

// PredictedFeature is a cached prediction column keyed by (Name, Phase).
type PredictedFeature struct {
	Name        string
	Phase       string
	Index       []string
	Values      []float64
	Fingerprint string
	CreatedAt   time.Time
}

// NewPredictedFeature wraps a prediction vector for phase.
func NewPredictedFeature(pred frame.PredictionVector, phase string) PredictedFeature {
	index := append([]string(nil), pred.Index...)
	return PredictedFeature{
		Name:        pred.Name,
		Phase:       phase,
		Index:       index,
		Values:      append([]float64(nil), pred.Values...),
		Fingerprint: IndexFingerprint(index),
		CreatedAt:   time.Now().UTC(),
	}
}

// Vector returns the feature as a prediction vector.
func (f PredictedFeature) Vector() frame.PredictionVector {
	return frame.PredictionVector{
		Name:   f.Name,
		Index:  append([]string(nil), f.Index...),
		Values: append([]float64(nil), f.Values...),
	}
}

// Validate checks that the values line up with the index.
func (f PredictedFeature) Validate() error {
	if f.Name == "" {
		return errors.NewValueError("PredictedFeature", "empty name")
	}
	if f.Phase != PhaseTrain && f.Phase != PhaseTest {
		return errors.NewValueError("PredictedFeature", fmt.Sprintf("unknown phase %q", f.Phase))
	}
	if len(f.Index) != len(f.Values) {
		return errors.NewShapeMismatchError("PredictedFeature", len(f.Index), len(f.Values), f.Name)
	}
	return nil
}

// IndexFingerprint hashes the row identifiers in order.
func IndexFingerprint(index []string) string {
	h := fnv.New64a()
	for _, id := range index {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store reads and writes predicted features.
type Store interface {
	Write(ctx context.Context, f PredictedFeature) error
	// Read returns a StorageError wrapping ErrArtifactNotFound for a
	// missing entry.
	Read(ctx context.Context, name, phase string) (PredictedFeature, error)
	Exists(ctx context.Context, name, phase string) (bool, error)
}

// ReadAligned reads (name, phase) and checks that its rows are exactly
// index, in order. A mismatch is a ShapeMismatchError: the cache was
// written for other data.
func ReadAligned(ctx context.Context, s Store, name, phase string, index []string) (PredictedFeature, error) {
	f, err := s.Read(ctx, name, phase)
	if err != nil {
		return PredictedFeature{}, err
	}
	if len(f.Index) != len(index) {
		return PredictedFeature{}, errors.NewShapeMismatchError("ReadAligned", len(index), len(f.Index),
			fmt.Sprintf("%s/%s row count", phase, name))
	}
	if f.Fingerprint != IndexFingerprint(index) {
		for i := range index {
			if f.Index[i] != index[i] {
				return PredictedFeature{}, errors.NewShapeMismatchError("ReadAligned", i, i,
					fmt.Sprintf("%s/%s row %d is %q, expected %q", phase, name, i, f.Index[i], index[i]))
			}
		}
	}
	return f, nil
}
