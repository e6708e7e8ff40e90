package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// TargetVector holds one or more named target columns aligned to a
// FeatureMatrix index, plus an optional group label per row.
type TargetVector struct {
	index   []string
	order   []string
	columns map[string][]float64
	groups  []string
}

// NewTargetVector creates an empty TargetVector over index.
func NewTargetVector(index []string) *TargetVector {
	return &TargetVector{index: cloneStrings(index), columns: make(map[string][]float64)}
}

// AddColumn registers a target column. Values are copied.
func (t *TargetVector) AddColumn(name string, values []float64) error {
	if len(values) != len(t.index) {
		return errors.NewDimensionError("TargetVector.AddColumn", len(t.index), len(values), 0)
	}
	if _, exists := t.columns[name]; exists {
		return errors.NewValueError("TargetVector.AddColumn", fmt.Sprintf("column %q already exists", name))
	}
	t.order = append(t.order, name)
	t.columns[name] = append([]float64(nil), values...)
	return nil
}

// SetGroups sets the per-row group label used by group-aware scoring.
func (t *TargetVector) SetGroups(groups []string) error {
	if len(groups) != len(t.index) {
		return errors.NewDimensionError("TargetVector.SetGroups", len(t.index), len(groups), 0)
	}
	t.groups = cloneStrings(groups)
	return nil
}

func (t *TargetVector) Len() int          { return len(t.index) }
func (t *TargetVector) Index() []string   { return cloneStrings(t.index) }
func (t *TargetVector) Columns() []string { return cloneStrings(t.order) }
func (t *TargetVector) Groups() []string  { return cloneStrings(t.groups) }
func (t *TargetVector) HasGroups() bool   { return t.groups != nil }
func (t *TargetVector) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named target. An unknown name is a
// configuration problem: the requested target does not exist in the data.
func (t *TargetVector) Column(name string) ([]float64, error) {
	values, ok := t.columns[name]
	if !ok {
		return nil, errors.NewConfigurationError("target_name", "target column not present in data", name)
	}
	return append([]float64(nil), values...), nil
}

// ColumnVector returns the named target as an n×1 matrix.
func (t *TargetVector) ColumnVector(name string) (*mat.Dense, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NewValueError("TargetVector.ColumnVector", "empty target")
	}
	return mat.NewDense(len(values), 1, values), nil
}

// Take copies the given rows of every column and the groups.
func (t *TargetVector) Take(rows []int) *TargetVector {
	out := &TargetVector{
		index:   make([]string, len(rows)),
		order:   cloneStrings(t.order),
		columns: make(map[string][]float64, len(t.columns)),
	}
	for k, i := range rows {
		out.index[k] = t.index[i]
	}
	for name, values := range t.columns {
		sub := make([]float64, len(rows))
		for k, i := range rows {
			sub[k] = values[i]
		}
		out.columns[name] = sub
	}
	if t.groups != nil {
		out.groups = make([]string, len(rows))
		for k, i := range rows {
			out.groups[k] = t.groups[i]
		}
	}
	return out
}

// PredictionVector is a named column of predictions aligned to a test index.
type PredictionVector struct {
	Name   string
	Index  []string
	Values []float64
}

// NewPredictionVector builds a PredictionVector from an n×1 prediction matrix.
func NewPredictionVector(name string, index []string, preds mat.Matrix) (PredictionVector, error) {
	r, _ := preds.Dims()
	if r != len(index) {
		return PredictionVector{}, errors.NewShapeMismatchError("NewPredictionVector", len(index), r, "prediction rows")
	}
	values := make([]float64, r)
	for i := range values {
		values[i] = preds.At(i, 0)
	}
	return PredictionVector{Name: name, Index: cloneStrings(index), Values: values}, nil
}

func (p PredictionVector) Len() int { return len(p.Values) }
