package tuning

import (
	"math"
	mrand "math/rand"
	"math/rand/v2"

	"github.com/thalesfsp/ho"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/core/params"
)

// AcquisitionType selects how the GP posterior ranks candidates.
type AcquisitionType string

const (
	AcquisitionUCB      AcquisitionType = "ucb"
	AcquisitionPI       AcquisitionType = "pi"
	AcquisitionEI       AcquisitionType = "ei"
	AcquisitionThompson AcquisitionType = "thompson"
)

// GPSampler is a Bayesian-optimisation sampler. It fits a Gaussian
// process with an RBF kernel to the completed trials, scores NumCandidates
// random candidates with the acquisition function and proposes the best.
// The first InitialSamples trials are random.
type GPSampler struct {
	InitialSamples int
	NumCandidates  int
	Acquisition    AcquisitionType
	Beta           float64 // UCB exploration weight
	Xi             float64 // PI/EI improvement margin
	LengthScale    float64 // RBF width in unit coordinates
	Noise          float64 // diagonal jitter

	rng       *rand.Rand
	posterior *mrand.Rand // Thompson draws
}

// NewGPSampler returns a sampler with the usual defaults.
func NewGPSampler(seed uint64) *GPSampler {
	return &GPSampler{
		InitialSamples: 10,
		NumCandidates:  256,
		Acquisition:    AcquisitionEI,
		Beta:           2.0,
		Xi:             0.01,
		LengthScale:    0.25,
		Noise:          1e-6,
		rng:            newRand(seed),
		posterior:      mrand.New(mrand.NewSource(int64(seed))),
	}
}

func (s *GPSampler) Name() string { return "gp" }

func (s *GPSampler) Sample(space Space, history []TrialRecord) params.Set {
	keys := space.Keys()
	var xs [][]float64
	var ys []float64
	for _, t := range history {
		if t.State != TrialComplete || !space.Contains(t.Params) || math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
			continue
		}
		xs = append(xs, s.encode(space, keys, t.Params))
		ys = append(ys, t.Value)
	}
	if len(xs) < s.InitialSamples || len(xs) < 2 || len(keys) == 0 {
		return space.Sample(s.rng)
	}

	gp, ok := fitGP(xs, ys, s.LengthScale, s.Noise)
	if !ok {
		return space.Sample(s.rng)
	}

	var best params.Set
	bestScore := math.Inf(1)
	for c := 0; c < s.NumCandidates; c++ {
		cand := space.Sample(s.rng)
		mean, variance := gp.predict(s.encode(space, keys, cand))
		if score := s.acquire(mean, variance, gp.bestSoFar()); score < bestScore || best == nil {
			best, bestScore = cand, score
		}
	}
	return best
}

func (s *GPSampler) encode(space Space, keys []string, set params.Set) []float64 {
	x := make([]float64, len(keys))
	for i, k := range keys {
		x[i] = space[k].ToUnit(set[k])
	}
	return x
}

// acquire returns a score where lower is better.
func (s *GPSampler) acquire(mean, variance, best float64) float64 {
	variance = math.Max(variance, 1e-12)
	ap := ho.AcquisitionParams{Beta: s.Beta, Xi: s.Xi, BestSoFar: best, RandomState: s.posterior}
	switch s.Acquisition {
	case AcquisitionUCB:
		return ho.UCB(mean, variance, ap)
	case AcquisitionThompson:
		return ho.ThompsonSampling(mean, variance, ap)
	}

	// ho counts improvement as mean above BestSoFar. Losses improve
	// downwards, so PI and EI see the mirrored posterior.
	ap.BestSoFar = -best
	if s.Acquisition == AcquisitionPI {
		return -ho.ProbabilityOfImprovement(-mean, variance, ap)
	}
	return -ho.ExpectedImprovement(-mean, variance, ap)
}

// gaussianProcess is a zero-mean GP on standardised targets.
type gaussianProcess struct {
	xs          [][]float64
	alpha       *mat.VecDense // K^-1 y
	chol        mat.Cholesky
	lengthScale float64
	yMin        float64
}

func fitGP(xs [][]float64, ys []float64, lengthScale, noise float64) (*gaussianProcess, bool) {
	n := len(xs)
	mean, std := stat.MeanStdDev(ys, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	y := mat.NewVecDense(n, nil)
	yMin := math.Inf(1)
	for i, v := range ys {
		y.SetVec(i, (v-mean)/std)
		yMin = math.Min(yMin, y.AtVec(i))
	}

	gp := &gaussianProcess{xs: xs, lengthScale: lengthScale, yMin: yMin}
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			K.SetSym(i, j, gp.kernel(xs[i], xs[j]))
		}
		K.SetSym(i, i, K.At(i, i)+noise)
	}
	if ok := gp.chol.Factorize(K); !ok {
		return nil, false
	}
	gp.alpha = mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(gp.alpha, y); err != nil {
		return nil, false
	}
	return gp, true
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-sum / (2 * gp.lengthScale * gp.lengthScale))
}

// predict returns the posterior mean and variance in standardised units.
func (gp *gaussianProcess) predict(x []float64) (float64, float64) {
	n := len(gp.xs)
	k := mat.NewVecDense(n, nil)
	for i := range gp.xs {
		k.SetVec(i, gp.kernel(x, gp.xs[i]))
	}
	mean := mat.Dot(k, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, k); err != nil {
		return mean, 1
	}
	variance := 1 - mat.Dot(k, v)
	return mean, math.Max(variance, 0)
}

func (gp *gaussianProcess) bestSoFar() float64 { return gp.yMin }
