package tuning

import (
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// Distribution types as written in configuration.
const (
	TypeInt         = "int"
	TypeUniform     = "uniform"
	TypeLogUniform  = "loguniform"
	TypeCategorical = "categorical"
)

// Distribution is the sampling rule of one searched parameter.
type Distribution interface {
	// Type returns the configuration name of the distribution.
	Type() string
	// Sample draws one value.
	Sample(r *rand.Rand) params.Value
	// Contains reports whether v lies in the support.
	Contains(v params.Value) bool
	// ToUnit maps v into [0, 1] for the surrogate model.
	ToUnit(v params.Value) float64
}

// Bounds is an inclusive numeric range.
type Bounds[T constraints.Integer | constraints.Float] struct {
	Low  T `json:"low" yaml:"low"`
	High T `json:"high" yaml:"high"`
}

func (b Bounds[T]) contains(v T) bool { return v >= b.Low && v <= b.High }

func (b Bounds[T]) clamp(v T) T {
	if v < b.Low {
		return b.Low
	}
	if v > b.High {
		return b.High
	}
	return v
}

func (b Bounds[T]) unit(v T) float64 {
	if b.High == b.Low {
		return 0.5
	}
	return float64(v-b.Low) / float64(b.High-b.Low)
}

// IntDistribution samples integers uniformly from [Low, High].
type IntDistribution struct {
	Bounds[int]
}

// NewIntDistribution returns a ConfigurationError when low > high.
func NewIntDistribution(low, high int) (IntDistribution, error) {
	if low > high {
		return IntDistribution{}, errors.NewConfigurationError("param_space", "int low is greater than high", [2]int{low, high})
	}
	return IntDistribution{Bounds[int]{Low: low, High: high}}, nil
}

func (d IntDistribution) Type() string { return TypeInt }

func (d IntDistribution) Sample(r *rand.Rand) params.Value {
	return params.Int(d.Low + r.IntN(d.High-d.Low+1))
}

func (d IntDistribution) Contains(v params.Value) bool {
	i, ok := v.AsInt()
	return ok && d.contains(i)
}

func (d IntDistribution) ToUnit(v params.Value) float64 {
	i, _ := v.AsInt()
	return d.unit(d.clamp(i))
}

// UniformDistribution samples floats uniformly from [Low, High].
type UniformDistribution struct {
	Bounds[float64]
}

// NewUniformDistribution returns a ConfigurationError when low > high.
func NewUniformDistribution(low, high float64) (UniformDistribution, error) {
	if !(low <= high) {
		return UniformDistribution{}, errors.NewConfigurationError("param_space", "uniform low is greater than high", [2]float64{low, high})
	}
	return UniformDistribution{Bounds[float64]{Low: low, High: high}}, nil
}

func (d UniformDistribution) Type() string { return TypeUniform }

func (d UniformDistribution) Sample(r *rand.Rand) params.Value {
	return params.Float(d.clamp(d.Low + r.Float64()*(d.High-d.Low)))
}

func (d UniformDistribution) Contains(v params.Value) bool {
	f, ok := v.AsFloat()
	return ok && d.contains(f)
}

func (d UniformDistribution) ToUnit(v params.Value) float64 {
	f, _ := v.AsFloat()
	return d.unit(d.clamp(f))
}

// LogUniformDistribution samples floats whose logarithm is uniform on
// [log Low, log High].
type LogUniformDistribution struct {
	Bounds[float64]
}

// NewLogUniformDistribution returns a ConfigurationError when low > high
// or low <= 0.
func NewLogUniformDistribution(low, high float64) (LogUniformDistribution, error) {
	if !(low > 0) {
		return LogUniformDistribution{}, errors.NewConfigurationError("param_space", "loguniform low must be > 0", low)
	}
	if low > high {
		return LogUniformDistribution{}, errors.NewConfigurationError("param_space", "loguniform low is greater than high", [2]float64{low, high})
	}
	return LogUniformDistribution{Bounds[float64]{Low: low, High: high}}, nil
}

func (d LogUniformDistribution) Type() string { return TypeLogUniform }

// Sample clamps the result so rounding in exp never leaves [Low, High].
func (d LogUniformDistribution) Sample(r *rand.Rand) params.Value {
	lo, hi := math.Log(d.Low), math.Log(d.High)
	return params.Float(d.clamp(math.Exp(lo + r.Float64()*(hi-lo))))
}

func (d LogUniformDistribution) Contains(v params.Value) bool {
	f, ok := v.AsFloat()
	return ok && d.contains(f)
}

func (d LogUniformDistribution) ToUnit(v params.Value) float64 {
	f, _ := v.AsFloat()
	if d.High == d.Low {
		return 0.5
	}
	f = d.clamp(f)
	return (math.Log(f) - math.Log(d.Low)) / (math.Log(d.High) - math.Log(d.Low))
}

// CategoricalDistribution picks one of Choices uniformly.
type CategoricalDistribution struct {
	Choices []string `json:"choices" yaml:"choices"`
}

// NewCategoricalDistribution returns a ConfigurationError for an empty
// choice list.
func NewCategoricalDistribution(choices []string) (CategoricalDistribution, error) {
	if len(choices) == 0 {
		return CategoricalDistribution{}, errors.NewConfigurationError("param_space", "categorical needs at least one choice", choices)
	}
	return CategoricalDistribution{Choices: append([]string(nil), choices...)}, nil
}

func (d CategoricalDistribution) Type() string { return TypeCategorical }

func (d CategoricalDistribution) Sample(r *rand.Rand) params.Value {
	return params.String(d.Choices[r.IntN(len(d.Choices))])
}

func (d CategoricalDistribution) Contains(v params.Value) bool {
	return d.index(v) >= 0
}

func (d CategoricalDistribution) ToUnit(v params.Value) float64 {
	if len(d.Choices) < 2 {
		return 0.5
	}
	return float64(d.index(v)) / float64(len(d.Choices)-1)
}

func (d CategoricalDistribution) index(v params.Value) int {
	s, ok := v.AsString()
	if !ok {
		return -1
	}
	for i, c := range d.Choices {
		if c == s {
			return i
		}
	}
	return -1
}

// NewDistribution builds a distribution from its configuration form.
func NewDistribution(typ string, low, high float64, choices []string) (Distribution, error) {
	switch typ {
	case TypeInt:
		if low != math.Trunc(low) || high != math.Trunc(high) {
			return nil, errors.NewConfigurationError("param_space", "int bounds must be integral", [2]float64{low, high})
		}
		return NewIntDistribution(int(low), int(high))
	case TypeUniform:
		return NewUniformDistribution(low, high)
	case TypeLogUniform:
		return NewLogUniformDistribution(low, high)
	case TypeCategorical:
		return NewCategoricalDistribution(choices)
	}
	return nil, errors.NewConfigurationError("param_space", "unknown distribution type", typ)
}

// Space maps parameter names to their distributions.
type Space map[string]Distribution

// Keys returns the parameter names in sorted order.
func (s Space) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample draws every entry independently. Names are visited in sorted
// order so a seeded generator gives reproducible sets.
func (s Space) Sample(r *rand.Rand) params.Set {
	out := make(params.Set, len(s))
	for _, name := range s.Keys() {
		out[name] = s[name].Sample(r)
	}
	return out
}

// Contains reports whether set has a value inside the support of every
// entry.
func (s Space) Contains(set params.Set) bool {
	for name, d := range s {
		v, ok := set[name]
		if !ok || !d.Contains(v) {
			return false
		}
	}
	return true
}

// Validate checks the space names against a model schema.
func (s Space) Validate(schema params.Schema) error {
	for _, name := range s.Keys() {
		if !schema.Has(name) {
			return errors.NewConfigurationError(name, "searched parameter is not accepted by the model", s[name].Type())
		}
	}
	return nil
}
