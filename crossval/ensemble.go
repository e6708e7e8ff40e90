package crossval

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// AverageScores returns the arithmetic mean of the fold scores.
func AverageScores(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.NewShapeMismatchError("AverageScores", 1, 0, "no scores")
	}
	return stat.Mean(scores, nil), nil
}

// AveragePredictions returns the element-wise mean of the fold
// predictions. All vectors must have the same length and index order.
func AveragePredictions(preds []frame.PredictionVector) (frame.PredictionVector, error) {
	if len(preds) == 0 {
		return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", 1, 0, "no predictions")
	}
	first := preds[0]
	n := first.Len()
	if first.Index != nil && len(first.Index) != n {
		return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", n, len(first.Index), "index length")
	}

	sum := make([]float64, n)
	for k, p := range preds {
		if p.Len() != n {
			return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", n, p.Len(),
				fmt.Sprintf("prediction %d length", k))
		}
		if (p.Index == nil) != (first.Index == nil) {
			return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", len(first.Index), len(p.Index),
				fmt.Sprintf("prediction %d index presence differs", k))
		}
		if p.Index != nil {
			if len(p.Index) != len(first.Index) {
				return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", len(first.Index), len(p.Index),
					fmt.Sprintf("prediction %d index length", k))
			}
			for i := range p.Index {
				if p.Index[i] != first.Index[i] {
					return frame.PredictionVector{}, errors.NewShapeMismatchError("AveragePredictions", i, i,
						fmt.Sprintf("prediction %d index differs at row %d", k, i))
				}
			}
		}
		for i, v := range p.Values {
			sum[i] += v
		}
	}

	for i := range sum {
		sum[i] /= float64(len(preds))
	}
	index := first.Index
	if index != nil {
		index = append([]string(nil), index...)
	}
	return frame.PredictionVector{Name: first.Name, Index: index, Values: sum}, nil
}
