package lightgbm

import (
	"runtime"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/parallel"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// parallelThreshold is the row count below which prediction stays on the
// calling goroutine.
const parallelThreshold = 512

// Predictor scores samples with a trained Model.
type Predictor struct {
	model      *Model
	numThreads int
}

// NewPredictor creates a new predictor with the given model
func NewPredictor(model *Model) *Predictor {
	return &Predictor{model: model, numThreads: runtime.NumCPU()}
}

// SetNumThreads sets the number of threads for parallel prediction
func (p *Predictor) SetNumThreads(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.numThreads = n
}

// Predict returns one raw score per row as an n×1 matrix.
func (p *Predictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, errors.NewDimensionError("Predictor.Predict", p.model.NumFeatures, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	if rows == 0 {
		return out, nil
	}
	dense, isDense := X.(*mat.Dense)

	work := func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			if isDense {
				out.Set(i, 0, p.model.PredictRow(dense.RawRowView(i)))
				continue
			}
			mat.Row(row, i, X)
			out.Set(i, 0, p.model.PredictRow(row))
		}
	}
	if rows <= parallelThreshold {
		work(0, rows)
	} else {
		parallel.ParallelizeN(rows, p.numThreads, work)
	}
	return out, nil
}
