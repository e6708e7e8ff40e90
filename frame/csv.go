package frame

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// CSVOptions selects columns from an engineered feature table.
type CSVOptions struct {
	IDColumn       string
	FeatureColumns []string
	// TargetColumns are read when present; missing target columns are
	// skipped so the same options can load train and test files.
	TargetColumns []string
	GroupColumn   string
}

// ReadCSVFile opens path and calls ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*FeatureMatrix, *TargetVector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(bufio.NewReader(f), opts)
}

// ReadCSV reads a header-first CSV with an id column, numeric feature
// columns and optional target and group columns.
func ReadCSV(r io.Reader, opts CSVOptions) (*FeatureMatrix, *TargetVector, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read csv header")
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}

	idPos, ok := pos[opts.IDColumn]
	if !ok {
		return nil, nil, errors.NewValueError("ReadCSV", fmt.Sprintf("id column %q not found", opts.IDColumn))
	}
	featPos := make([]int, len(opts.FeatureColumns))
	for k, name := range opts.FeatureColumns {
		p, ok := pos[name]
		if !ok {
			return nil, nil, errors.NewValueError("ReadCSV", fmt.Sprintf("feature column %q not found", name))
		}
		featPos[k] = p
	}
	var targetNames []string
	var targetPos []int
	for _, name := range opts.TargetColumns {
		if p, ok := pos[name]; ok {
			targetNames = append(targetNames, name)
			targetPos = append(targetPos, p)
		}
	}
	groupPos := -1
	if opts.GroupColumn != "" {
		if p, ok := pos[opts.GroupColumn]; ok {
			groupPos = p
		}
	}

	var (
		index   []string
		values  []float64
		targets = make([][]float64, len(targetNames))
		groups  []string
	)
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read csv line %d", line)
		}
		index = append(index, rec[idPos])
		for k, p := range featPos {
			v, err := parseFloat(rec[p])
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d column %s", line, opts.FeatureColumns[k])
			}
			values = append(values, v)
		}
		for k, p := range targetPos {
			v, err := parseFloat(rec[p])
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d column %s", line, targetNames[k])
			}
			targets[k] = append(targets[k], v)
		}
		if groupPos >= 0 {
			groups = append(groups, rec[groupPos])
		}
	}

	var data *mat.Dense
	if len(index) > 0 {
		data = mat.NewDense(len(index), len(opts.FeatureColumns), values)
	}
	X, err := NewFeatureMatrix(opts.FeatureColumns, index, data)
	if err != nil {
		return nil, nil, err
	}
	y := NewTargetVector(index)
	for k, name := range targetNames {
		if err := y.AddColumn(name, targets[k]); err != nil {
			return nil, nil, err
		}
	}
	if groupPos >= 0 {
		if err := y.SetGroups(groups); err != nil {
			return nil, nil, err
		}
	}
	return X, y, nil
}

// Empty cells read as NaN.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WritePredictions writes "id,<name>" rows.
func WritePredictions(w io.Writer, idColumn string, pred PredictionVector) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{idColumn, pred.Name}); err != nil {
		return err
	}
	for i, id := range pred.Index {
		if err := cw.Write([]string{id, strconv.FormatFloat(pred.Values[i], 'g', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
