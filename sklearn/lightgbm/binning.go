package lightgbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// missingBin holds NaN values. Real values occupy bins 1..len(upper).
const missingBin = 0

// binMapper maps a raw feature value to a histogram bin. upper[k] is the
// inclusive upper bound of bin k+1; the last bound is +Inf.
type binMapper struct {
	upper []float64
}

// newBinMapper builds bin bounds from the observed values. With at most
// maxBin distinct values every value gets its own bin; otherwise bounds
// are placed at equal-frequency quantiles.
func newBinMapper(values []float64, maxBin int) binMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return binMapper{upper: []float64{math.Inf(1)}}
	}
	sort.Float64s(sorted)

	unique := sorted[:1:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}

	var upper []float64
	if len(unique) <= maxBin {
		upper = make([]float64, 0, len(unique))
		for i := 0; i+1 < len(unique); i++ {
			upper = append(upper, (unique[i]+unique[i+1])/2)
		}
	} else {
		n := len(sorted)
		for k := 1; k < maxBin; k++ {
			pos := k * n / maxBin
			if pos <= 0 || pos >= n {
				continue
			}
			cut := (sorted[pos-1] + sorted[pos]) / 2
			if sorted[pos-1] == sorted[pos] {
				cut = sorted[pos]
			}
			if len(upper) == 0 || cut > upper[len(upper)-1] {
				upper = append(upper, cut)
			}
		}
	}
	upper = append(upper, math.Inf(1))
	return binMapper{upper: upper}
}

func (b binMapper) numBins() int { return len(b.upper) + 1 }

func (b binMapper) binOf(v float64) int {
	if math.IsNaN(v) {
		return missingBin
	}
	return 1 + sort.SearchFloat64s(b.upper, v)
}

// threshold returns the raw split value for "bin <= b goes left".
func (b binMapper) threshold(bin int) float64 {
	return b.upper[bin-1]
}

// binnedData is the column-major binned copy of a training matrix.
type binnedData struct {
	mappers []binMapper
	bins    [][]uint16 // bins[feature][row]
}

func newBinnedData(X *mat.Dense, maxBin int) *binnedData {
	rows, cols := X.Dims()
	d := &binnedData{mappers: make([]binMapper, cols), bins: make([][]uint16, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		m := newBinMapper(col, maxBin)
		d.mappers[j] = m
		b := make([]uint16, rows)
		for i, v := range col {
			b[i] = uint16(m.binOf(v))
		}
		d.bins[j] = b
	}
	return d
}

// histogramBin accumulates gradient statistics of one bin.
type histogramBin struct {
	SumGrad float64
	SumHess float64
	Count   int
}

func buildHistogram(bins []uint16, rows []int, grad, hess []float64, numBins int) []histogramBin {
	h := make([]histogramBin, numBins)
	for _, i := range rows {
		b := &h[bins[i]]
		b.SumGrad += grad[i]
		b.SumHess += hess[i]
		b.Count++
	}
	return h
}

// subtractHistogram returns parent - child, the histogram of the sibling.
func subtractHistogram(parent, child []histogramBin) []histogramBin {
	out := make([]histogramBin, len(parent))
	for k := range parent {
		out[k] = histogramBin{
			SumGrad: parent[k].SumGrad - child[k].SumGrad,
			SumHess: parent[k].SumHess - child[k].SumHess,
			Count:   parent[k].Count - child[k].Count,
		}
	}
	return out
}
