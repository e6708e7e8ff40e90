// Package frame holds the tabular data model: feature matrices with named
// columns and an id index, target vectors and prediction vectors.
package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// FeatureMatrix is an ordered set of named numeric columns with one row per
// example. Rows are identified by a unique string id. A FeatureMatrix is
// never modified after construction; derived matrices are copies.
type FeatureMatrix struct {
	columns []string
	index   []string
	data    *mat.Dense
}

// NewFeatureMatrix validates shapes and index uniqueness. data may be nil
// only when index is empty.
func NewFeatureMatrix(columns, index []string, data *mat.Dense) (*FeatureMatrix, error) {
	if len(columns) == 0 {
		return nil, errors.NewValueError("NewFeatureMatrix", "at least one column is required")
	}
	if data == nil {
		if len(index) != 0 {
			return nil, errors.NewDimensionError("NewFeatureMatrix", len(index), 0, 0)
		}
		return &FeatureMatrix{columns: cloneStrings(columns)}, nil
	}
	r, c := data.Dims()
	if r != len(index) {
		return nil, errors.NewDimensionError("NewFeatureMatrix", len(index), r, 0)
	}
	if c != len(columns) {
		return nil, errors.NewDimensionError("NewFeatureMatrix", len(columns), c, 1)
	}
	if err := checkUnique("column", columns); err != nil {
		return nil, err
	}
	if err := checkUnique("index", index); err != nil {
		return nil, err
	}
	return &FeatureMatrix{columns: cloneStrings(columns), index: cloneStrings(index), data: data}, nil
}

func checkUnique(what string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return errors.NewValueError("NewFeatureMatrix", fmt.Sprintf("duplicate %s %q", what, n))
		}
		seen[n] = struct{}{}
	}
	return nil
}

func (f *FeatureMatrix) Rows() int { return len(f.index) }
func (f *FeatureMatrix) Cols() int { return len(f.columns) }

// Columns returns a copy of the column names.
func (f *FeatureMatrix) Columns() []string { return cloneStrings(f.columns) }

// Index returns a copy of the row ids.
func (f *FeatureMatrix) Index() []string { return cloneStrings(f.index) }

// Matrix exposes the values read-only. It returns nil for an empty matrix.
func (f *FeatureMatrix) Matrix() mat.Matrix {
	if f.data == nil {
		return nil
	}
	return f.data
}

// At returns the value at row i, column j.
func (f *FeatureMatrix) At(i, j int) float64 { return f.data.At(i, j) }

// Column returns a copy of the named column.
func (f *FeatureMatrix) Column(name string) ([]float64, error) {
	j := f.columnIndex(name)
	if j < 0 {
		return nil, errors.NewValueError("FeatureMatrix.Column", fmt.Sprintf("unknown column %q", name))
	}
	out := make([]float64, f.Rows())
	if f.data != nil {
		mat.Col(out, j, f.data)
	}
	return out, nil
}

func (f *FeatureMatrix) columnIndex(name string) int {
	for j, c := range f.columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Take copies the given rows, in the given order.
func (f *FeatureMatrix) Take(rows []int) *FeatureMatrix {
	out := &FeatureMatrix{columns: cloneStrings(f.columns), index: make([]string, len(rows))}
	if len(rows) == 0 {
		out.index = nil
		return out
	}
	out.data = mat.NewDense(len(rows), f.Cols(), nil)
	for k, i := range rows {
		out.index[k] = f.index[i]
		out.data.SetRow(k, f.data.RawRowView(i))
	}
	return out
}

// Select copies the named columns, in the given order.
func (f *FeatureMatrix) Select(columns []string) (*FeatureMatrix, error) {
	idx := make([]int, len(columns))
	for k, name := range columns {
		j := f.columnIndex(name)
		if j < 0 {
			return nil, errors.NewValueError("FeatureMatrix.Select", fmt.Sprintf("unknown column %q", name))
		}
		idx[k] = j
	}
	if f.Rows() == 0 {
		return NewFeatureMatrix(columns, nil, nil)
	}
	data := mat.NewDense(f.Rows(), len(columns), nil)
	for i := 0; i < f.Rows(); i++ {
		for k, j := range idx {
			data.Set(i, k, f.data.At(i, j))
		}
	}
	return NewFeatureMatrix(columns, f.index, data)
}

// WithColumn returns a copy with an extra column appended.
func (f *FeatureMatrix) WithColumn(name string, values []float64) (*FeatureMatrix, error) {
	if f.columnIndex(name) >= 0 {
		return nil, errors.NewValueError("FeatureMatrix.WithColumn", fmt.Sprintf("column %q already exists", name))
	}
	if len(values) != f.Rows() {
		return nil, errors.NewDimensionError("FeatureMatrix.WithColumn", f.Rows(), len(values), 0)
	}
	columns := append(cloneStrings(f.columns), name)
	if f.Rows() == 0 {
		return NewFeatureMatrix(columns, nil, nil)
	}
	data := mat.NewDense(f.Rows(), len(columns), nil)
	data.Slice(0, f.Rows(), 0, f.Cols()).(*mat.Dense).Copy(f.data)
	data.SetCol(len(columns)-1, values)
	return NewFeatureMatrix(columns, f.index, data)
}

// CheckSchema verifies that train and test share identical column names
// and order.
func CheckSchema(train, test *FeatureMatrix) error {
	if train == nil || test == nil {
		return errors.NewDataInsufficientError("CheckSchema", "train and test feature matrices are required", 0)
	}
	if train.Cols() != test.Cols() {
		return errors.NewDataInsufficientError("CheckSchema",
			fmt.Sprintf("train has %d columns, test has %d", train.Cols(), test.Cols()), test.Rows())
	}
	for j := range train.columns {
		if train.columns[j] != test.columns[j] {
			return errors.NewDataInsufficientError("CheckSchema",
				fmt.Sprintf("column %d is %q in train and %q in test", j, train.columns[j], test.columns[j]), test.Rows())
		}
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
