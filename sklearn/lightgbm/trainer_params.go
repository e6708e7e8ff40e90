package lightgbm

import (
	"math/rand/v2"
)

// SamplingStrategy handles data and feature sampling for training
type SamplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
	baggingFraction float64
	baggingFreq     int
	bag             []int
}

// NewSamplingStrategy creates a sampling strategy seeded from the
// random_state parameter.
func NewSamplingStrategy(p TrainingParams) *SamplingStrategy {
	seed := uint64(p.Seed)
	return &SamplingStrategy{
		rng:             rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		featureFraction: p.FeatureFraction,
		baggingFraction: p.BaggingFraction,
		baggingFreq:     p.BaggingFreq,
	}
}

// SampleFeatures samples features for tree building
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	if s.featureFraction >= 1.0 {
		return identity(numFeatures)
	}
	numSample := int(float64(numFeatures)*s.featureFraction + 0.5)
	return s.sample(numFeatures, numSample)
}

// SampleInstances returns the bag for this iteration. A new bag is drawn
// every baggingFreq iterations and reused in between.
func (s *SamplingStrategy) SampleInstances(numInstances int, iteration int) []int {
	if s.baggingFreq <= 0 || s.baggingFraction >= 1.0 {
		return identity(numInstances)
	}
	if s.bag == nil || iteration%s.baggingFreq == 0 {
		numSample := int(float64(numInstances) * s.baggingFraction)
		s.bag = s.sample(numInstances, numSample)
	}
	return s.bag
}

// sample draws k of n indices without replacement (partial Fisher-Yates).
func (s *SamplingStrategy) sample(n, k int) []int {
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	perm := identity(n)
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// RegularizationStrategy handles L1/L2 regularization
type RegularizationStrategy struct {
	lambdaL1 float64
	lambdaL2 float64
}

// NewRegularizationStrategy creates a new regularization strategy
func NewRegularizationStrategy(p TrainingParams) *RegularizationStrategy {
	return &RegularizationStrategy{lambdaL1: p.Alpha, lambdaL2: p.Lambda}
}

const hessEpsilon = 1e-10

// thresholdL1 is the soft-thresholding operator applied to the gradient sum.
func (r *RegularizationStrategy) thresholdL1(sumGrad float64) float64 {
	switch {
	case sumGrad > r.lambdaL1:
		return sumGrad - r.lambdaL1
	case sumGrad < -r.lambdaL1:
		return sumGrad + r.lambdaL1
	default:
		return 0
	}
}

// LeafValue returns the optimal leaf output -T(G)/(H+λ2).
func (r *RegularizationStrategy) LeafValue(sumGrad, sumHess float64) float64 {
	return -r.thresholdL1(sumGrad) / (sumHess + r.lambdaL2 + hessEpsilon)
}

// SplitGain returns left + right - parent node scores.
func (r *RegularizationStrategy) SplitGain(leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return r.score(leftGrad, leftHess) + r.score(rightGrad, rightHess) - r.score(parentGrad, parentHess)
}

// score is T(G)^2 / (H + λ2), without the 1/2 factor.
func (r *RegularizationStrategy) score(sumGrad, sumHess float64) float64 {
	g := r.thresholdL1(sumGrad)
	return g * g / (sumHess + r.lambdaL2 + hessEpsilon)
}
