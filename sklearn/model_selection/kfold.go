// Package model_selection provides seeded train/validation splitters.
package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// Fold is one train/validation partition of row indices.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter produces folds over n rows.
type Splitter interface {
	Split(n int) ([]Fold, error)
	GetNSplits() int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter. nSplits < 2 is a
// ConfigurationError.
func NewKFold(nSplits int, shuffle bool, seed uint64) (*KFold, error) {
	if nSplits < 2 {
		return nil, errors.NewConfigurationError("n_splits", "must be >= 2", nSplits)
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}, nil
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split returns NSplits folds whose validation parts are disjoint and cover
// every row. The first n%NSplits folds get one extra row. The same seed
// gives the same folds.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewConfigurationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewDataInsufficientError("KFold.Split",
			"n_splits is greater than the number of rows", n)
	}

	indices := permutation(n, kf.Shuffle, kf.Seed)

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])
		train := make([]int, 0, n-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// HoldoutSplit divides n rows into one train and one validation part, the
// latter holding round(n*validationFraction) rows.
func HoldoutSplit(n int, validationFraction float64, seed uint64) (Fold, error) {
	if validationFraction <= 0 || validationFraction >= 1 {
		return Fold{}, errors.NewConfigurationError("validation_fraction", "must be in (0, 1)", validationFraction)
	}
	nVal := int(float64(n)*validationFraction + 0.5)
	if nVal < 1 || n-nVal < 1 {
		return Fold{}, errors.NewDataInsufficientError("HoldoutSplit",
			"too few rows for a train/validation split", n)
	}

	indices := permutation(n, true, seed)
	return Fold{
		TrainIndices: append([]int(nil), indices[nVal:]...),
		TestIndices:  append([]int(nil), indices[:nVal]...),
	}, nil
}

func permutation(n int, shuffle bool, seed uint64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		r := rand.New(rand.NewPCG(seed, seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return indices
}
