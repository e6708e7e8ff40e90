package lightgbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// ObjectiveFunction defines the interface for different objective functions
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial score for this objective
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// CreateObjectiveFunction resolves an objective by name.
func CreateObjectiveFunction(name string, p TrainingParams) (ObjectiveFunction, error) {
	switch name {
	case "", "regression", "l2", "mse":
		return L2Objective{}, nil
	case "regression_l1", "l1", "mae":
		return NewL1Objective(), nil
	case "huber":
		return NewHuberObjective(p.HuberDelta), nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", name)
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

func (L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (L2Objective) CalculateHessian(_, _ float64) float64 {
	return 1.0
}

func (L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (L2Objective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	return stat.Mean(targets, nil)
}

func (L2Objective) Name() string {
	return "regression"
}

// L1Objective implements L1 (Mean Absolute Error) loss
type L1Objective struct {
	epsilon float64 // Small value to approximate the non-differentiable point
}

func NewL1Objective() *L1Objective {
	return &L1Objective{epsilon: 1e-7}
}

func (o *L1Objective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) < o.epsilon {
		return 0.0
	}
	if diff > 0 {
		return 1.0
	}
	return -1.0
}

// CalculateHessian uses a constant 1.0, as LightGBM does for L1.
func (o *L1Objective) CalculateHessian(_, _ float64) float64 {
	return 1.0
}

func (o *L1Objective) CalculateLoss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

// GetInitScore returns the median of the targets.
func (o *L1Objective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	return median(targets)
}

func (o *L1Objective) Name() string {
	return "regression_l1"
}

// HuberObjective implements Huber loss (combination of L1 and L2)
type HuberObjective struct {
	delta float64 // Threshold for switching between L1 and L2
}

func NewHuberObjective(delta float64) *HuberObjective {
	if delta <= 0 {
		delta = 1.0
	}
	return &HuberObjective{delta: delta}
}

func (o *HuberObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.delta {
		return diff
	}
	if diff > 0 {
		return o.delta
	}
	return -o.delta
}

func (o *HuberObjective) CalculateHessian(prediction, target float64) float64 {
	if math.Abs(prediction-target) <= o.delta {
		return 1.0
	}
	// L1 region, small positive value for stability
	return 1e-7
}

func (o *HuberObjective) CalculateLoss(prediction, target float64) float64 {
	absDiff := math.Abs(prediction - target)
	if absDiff <= o.delta {
		return 0.5 * absDiff * absDiff
	}
	return o.delta * (absDiff - 0.5*o.delta)
}

func (o *HuberObjective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	return stat.Mean(targets, nil)
}

func (o *HuberObjective) Name() string {
	return "huber"
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
