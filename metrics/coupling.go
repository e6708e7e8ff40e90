package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// MAEFloor bounds the per-group MAE before taking the logarithm, so a
// perfectly predicted group contributes log(1e-9) instead of -Inf.
const MAEFloor = 1e-9

// LogMAE returns log(max(MAE, MAEFloor)).
func LogMAE(yTrue, yPred []float64) (float64, error) {
	mae, err := MAESlice(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return errors.StabilizeLog(mae, MAEFloor), nil
}

// GroupLogMAE computes the log-MAE separately for each group label and
// returns the unweighted mean over groups. This is the competition metric
// for scalar coupling constants, where groups are coupling types.
func GroupLogMAE(yTrue, yPred []float64, groups []string) (float64, error) {
	if len(groups) != len(yTrue) {
		return 0, errors.NewDimensionError("GroupLogMAE", len(yTrue), len(groups), 0)
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("GroupLogMAE", len(yTrue), len(yPred), 0)
	}
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("GroupLogMAE", "empty vector")
	}

	rows := make(map[string][]int)
	for i, g := range groups {
		rows[g] = append(rows[g], i)
	}
	names := make([]string, 0, len(rows))
	for g := range rows {
		names = append(names, g)
	}
	sort.Strings(names)

	scores := make([]float64, 0, len(names))
	for _, g := range names {
		idx := rows[g]
		t := make([]float64, len(idx))
		p := make([]float64, len(idx))
		for k, i := range idx {
			t[k], p[k] = yTrue[i], yPred[i]
		}
		s, err := LogMAE(t, p)
		if err != nil {
			return 0, err
		}
		scores = append(scores, s)
	}
	return stat.Mean(scores, nil), nil
}

// Scorer evaluates validation predictions. Lower is better for every
// scorer in this package.
type Scorer interface {
	Name() string
	Score(yTrue, yPred []float64, groups []string) (float64, error)
}

type scorerFunc struct {
	name string
	fn   func(yTrue, yPred []float64, groups []string) (float64, error)
}

func (s scorerFunc) Name() string { return s.name }

func (s scorerFunc) Score(yTrue, yPred []float64, groups []string) (float64, error) {
	return s.fn(yTrue, yPred, groups)
}

// MAEScorer scores with plain mean absolute error.
func MAEScorer() Scorer {
	return scorerFunc{name: "mae", fn: func(yTrue, yPred []float64, _ []string) (float64, error) {
		return MAESlice(yTrue, yPred)
	}}
}

// RMSEScorer scores with root mean squared error.
func RMSEScorer() Scorer {
	return scorerFunc{name: "rmse", fn: func(yTrue, yPred []float64, _ []string) (float64, error) {
		if len(yTrue) == 0 {
			return 0, errors.NewValueError("RMSE", "empty vector")
		}
		if len(yPred) != len(yTrue) {
			return 0, errors.NewDimensionError("RMSE", len(yTrue), len(yPred), 0)
		}
		return RMSE(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
	}}
}

// CouplingScorer uses GroupLogMAE when group labels are available and
// LogMAE otherwise.
func CouplingScorer() Scorer {
	return scorerFunc{name: "group_log_mae", fn: func(yTrue, yPred []float64, groups []string) (float64, error) {
		if groups == nil {
			return LogMAE(yTrue, yPred)
		}
		return GroupLogMAE(yTrue, yPred, groups)
	}}
}

// ScorerByName resolves a configured metric name.
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case "", "group_log_mae":
		return CouplingScorer(), nil
	case "mae":
		return MAEScorer(), nil
	case "rmse":
		return RMSEScorer(), nil
	}
	return nil, errors.NewConfigurationError("metric", "unknown metric", name)
}
