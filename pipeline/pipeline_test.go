package pipeline

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/artifact"
	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/tuning"
	"github.com/YuminosukeSato/coupling/tuning/storage"
)

// meanRegressor predicts the training mean plus a bias taken from
// num_leaves, so tuned parameters change the score.
type meanRegressor struct {
	model.BaseEstimator
	mean float64
	bias float64
}

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	m.mean = stat.Mean(mat.Col(nil, 0, y), nil)
	m.SetFitted()
	return nil
}

func (m *meanRegressor) FitWithEvalSet(X, y, _, _ mat.Matrix) error { return m.Fit(X, y) }

func (m *meanRegressor) BestIteration() int { return 1 }

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean+m.bias)
	}
	return out, nil
}

// recordingFactory builds meanRegressors and keeps every set it saw.
type recordingFactory struct {
	mu   sync.Mutex
	sets []params.Set
}

func (f *recordingFactory) build(set params.Set, _ int) (model.EvalSetFitter, error) {
	f.mu.Lock()
	f.sets = append(f.sets, set.Clone())
	f.mu.Unlock()
	return &meanRegressor{bias: float64(set.Int("num_leaves", 31)) / 100}, nil
}

func fixture(t *testing.T, n int) (*frame.FeatureMatrix, *frame.TargetVector, *frame.FeatureMatrix) {
	t.Helper()
	index := make([]string, n)
	data := mat.NewDense(n, 2, nil)
	fc := make([]float64, n)
	sd := make([]float64, n)
	scc := make([]float64, n)
	for i := 0; i < n; i++ {
		index[i] = fmt.Sprintf("id%d", i)
		x0, x1 := float64(i), float64(i%4)
		data.Set(i, 0, x0)
		data.Set(i, 1, x1)
		fc[i] = 2*x0 + 1
		sd[i] = x1 - 0.5
		scc[i] = fc[i] + sd[i]
	}
	X, err := frame.NewFeatureMatrix([]string{"dist", "kind"}, index, data)
	require.NoError(t, err)
	y := frame.NewTargetVector(index)
	require.NoError(t, y.AddColumn("fc", fc))
	require.NoError(t, y.AddColumn("sd", sd))
	require.NoError(t, y.AddColumn("scalar_coupling_constant", scc))

	Xtest, err := frame.NewFeatureMatrix([]string{"dist", "kind"}, []string{"t0", "t1", "t2", "t3"},
		mat.NewDense(4, 2, []float64{1, 0, 5, 2, 9, 1, 12, 3}))
	require.NoError(t, err)
	return X, y, Xtest
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Paths.FeatureDir = t.TempDir()
	cfg.StorageBackend = storage.BackendJSON
	cfg.NSplits = 3
	cfg.ParamSpace = map[string]config.SpaceEntry{
		"num_leaves": {Type: tuning.TypeInt, Low: 2, High: 100},
	}
	return cfg
}

func newTestPrediction(t *testing.T, cfg *config.Config, factory *recordingFactory) (*SubTargetPrediction, *log.TestLogger, artifact.Store) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	store := artifact.NewFileStore(cfg.Paths.FeatureDir)
	p, err := NewSubTargetPrediction(cfg, Deps{
		Artifacts: store,
		Factory:   factory.build,
		Logger:    logger,
	})
	require.NoError(t, err)
	return p, logger, store
}

func storeStudy(t *testing.T, cfg *config.Config, study *tuning.Study) {
	t.Helper()
	store, err := storage.Open(cfg.StorageBackend, cfg.Paths.StorageDir, study.Name)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(context.Background(), study))
}

func loadStudy(t *testing.T, cfg *config.Config) *tuning.Study {
	t.Helper()
	store, err := storage.Open(cfg.StorageBackend, cfg.Paths.StorageDir, cfg.StudyName())
	require.NoError(t, err)
	defer store.Close()
	study, ok, err := store.Load(context.Background(), cfg.StudyName())
	require.NoError(t, err)
	require.True(t, ok)
	return study
}

func studyWithBest(value float64, leaves int) *tuning.Study {
	study := tuning.NewStudy("lgb_fc")
	study.Record(tuning.TrialRecord{
		Number: 0, ID: "seed", State: tuning.TrialComplete, Value: value,
		Params: params.Set{"num_leaves": params.Int(leaves)},
	})
	return study
}

func TestSubTargetPredictionLogsScore(t *testing.T) {
	cfg := testConfig(t)
	X, y, Xtest := fixture(t, 30)
	p, logger, store := newTestPrediction(t, cfg, &recordingFactory{})

	pred, err := p.Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)
	assert.Equal(t, "fc", pred.Name)
	assert.Equal(t, Xtest.Index(), pred.Index)
	assert.Len(t, pred.Values, 4)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	scoreLine := regexp.MustCompile(`^Score: -?[0-9.]+(e[-+]?[0-9]+)?$`)
	found := false
	for _, e := range entries {
		if msg, _ := e["message"].(string); scoreLine.MatchString(msg) {
			found = true
			assert.Equal(t, "fc", e[log.TargetKey])
		}
	}
	assert.True(t, found, "no Score line logged")

	ok, err := store.Exists(context.Background(), "fc", artifact.PhaseTest)
	require.NoError(t, err)
	assert.False(t, ok, "nothing cached when save is disabled")
}

func TestSubTargetPredictionCachesPrediction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Save = true
	X, y, Xtest := fixture(t, 30)
	p, logger, store := newTestPrediction(t, cfg, &recordingFactory{})

	pred, err := p.Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)

	cached, err := artifact.ReadAligned(context.Background(), store, "fc", artifact.PhaseTest, Xtest.Index())
	require.NoError(t, err)
	assert.Equal(t, pred.Values, cached.Values)
	assert.True(t, logger.ContainsMessage("Saved predicted feature"))
}

func TestDisabledTuningUsesStoredParams(t *testing.T) {
	cfg := testConfig(t)
	storeStudy(t, cfg, studyWithBest(0.4, 31))
	X, y, Xtest := fixture(t, 30)
	factory := &recordingFactory{}
	p, _, _ := newTestPrediction(t, cfg, factory)

	set, err := p.ResolveParams(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 31, set.Int("num_leaves", 0))
	assert.Equal(t, 20, set.Int("max_depth", 0), "fixed parameters are merged in")

	_, err = p.Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)
	require.Len(t, factory.sets, 3)
	for _, s := range factory.sets {
		assert.Equal(t, 31, s.Int("num_leaves", 0))
		_, seeded := s["random_state"]
		assert.True(t, seeded)
	}

	study := loadStudy(t, cfg)
	assert.Len(t, study.Trials, 1, "disabled tuning does not touch the study")
	assert.Equal(t, 0.4, study.BestValue)
}

func TestDisabledTuningWithoutStudy(t *testing.T) {
	cfg := testConfig(t)
	X, y, _ := fixture(t, 30)
	p, _, _ := newTestPrediction(t, cfg, &recordingFactory{})

	set, err := p.ResolveParams(context.Background(), X, y)
	require.NoError(t, err)
	assert.True(t, set.Equal(cfg.FixedParams))
}

func TestTuningNeverRegresses(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tuning = true
	cfg.NTrials = 4
	storeStudy(t, cfg, studyWithBest(-1e9, 31))
	X, y, Xtest := fixture(t, 40)
	p, _, _ := newTestPrediction(t, cfg, &recordingFactory{})

	_, err := p.Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)

	study := loadStudy(t, cfg)
	assert.Len(t, study.Trials, 5)
	assert.Equal(t, -1e9, study.BestValue)
	assert.Equal(t, 31, study.BestParams.Int("num_leaves", 0))
}

func TestTuningImprovesStoredBest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tuning = true
	cfg.NTrials = 3
	storeStudy(t, cfg, studyWithBest(1e9, 31))
	X, y, _ := fixture(t, 40)
	p, _, _ := newTestPrediction(t, cfg, &recordingFactory{})

	set, err := p.ResolveParams(context.Background(), X, y)
	require.NoError(t, err)

	study := loadStudy(t, cfg)
	assert.Less(t, study.BestValue, 1e9)
	assert.Equal(t, study.BestParams.Int("num_leaves", 0), set.Int("num_leaves", -1))
	assert.Equal(t, 100000, set.Int("n_estimators", 0))
}

func TestTuningWithoutSuccessfulTrial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tuning = true
	cfg.NTrials = 2
	X, y, Xtest := fixture(t, 30)

	p, err := NewSubTargetPrediction(cfg, Deps{
		Factory: func(params.Set, int) (model.EvalSetFitter, error) {
			return nil, errors.NewValidationError("num_leaves", "rejected", 0)
		},
		Logger: log.GetLoggerWithName("test"),
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), X, y, Xtest)
	var exhausted *errors.TuningExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.False(t, exhausted.HasBest())
	assert.Equal(t, 6, exhausted.Attempts)
}

func TestSubTargetPredictionRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)
	X, y, _ := fixture(t, 30)
	p, _, _ := newTestPrediction(t, cfg, &recordingFactory{})

	t.Run("schema", func(t *testing.T) {
		other, err := frame.NewFeatureMatrix([]string{"kind", "dist"}, []string{"t0"}, mat.NewDense(1, 2, nil))
		require.NoError(t, err)
		_, err = p.Run(context.Background(), X, y, other)
		var derr *errors.DataInsufficientError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("missing matrices", func(t *testing.T) {
		_, _, Xtest := fixture(t, 30)
		for _, run := range []func() error{
			func() error { _, err := p.Run(context.Background(), X, y, nil); return err },
			func() error { _, err := p.Run(context.Background(), nil, y, Xtest); return err },
			func() error { _, err := p.Run(context.Background(), X, nil, Xtest); return err },
		} {
			var derr *errors.DataInsufficientError
			assert.True(t, errors.As(run(), &derr))
		}
	})

	t.Run("too many folds", func(t *testing.T) {
		small := testConfig(t)
		small.NSplits = 50
		X10, y10, Xtest := fixture(t, 10)
		p, _, _ := newTestPrediction(t, small, &recordingFactory{})
		_, err := p.Run(context.Background(), X10, y10, Xtest)
		var derr *errors.DataInsufficientError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("single fold", func(t *testing.T) {
		bad := testConfig(t)
		bad.NSplits = 1
		_, err := NewSubTargetPrediction(bad, Deps{})
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})
}

func TestHoldoutObjective(t *testing.T) {
	X, y, _ := fixture(t, 60)
	obj, err := NewHoldoutObjective(X, y, "fc", 0.25, 3, 3, nil, nil)
	require.NoError(t, err)

	set := params.Set{
		"n_estimators":      params.Int(50),
		"num_leaves":        params.Int(4),
		"min_child_samples": params.Int(2),
	}
	value, err := obj.Evaluate(context.Background(), set)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(value))

	again, err := obj.Evaluate(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, value, again, "the split is fixed")

	_, err = obj.Evaluate(context.Background(), params.Set{"num_leaves": params.Int(1)})
	assert.True(t, errors.IsTrialFailure(err))
}

func TestTargetPrediction(t *testing.T) {
	X, y, Xtest := fixture(t, 30)
	cfg := config.Default().WithTarget(config.TargetScalarCoupling)
	cfg.Linear.Alpha = 0
	pred, err := NewTargetPrediction(cfg, nil).Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)

	assert.Equal(t, "scalar_coupling_constant", pred.Name)
	want := []float64{2.5, 12.5, 19.5, 27.5}
	for i, v := range want {
		assert.InDelta(t, v, pred.Values[i], 1e-6)
	}
}

func TestTwoStage(t *testing.T) {
	cfg := testConfig(t)
	cfg.SubTargets = []string{"fc", "sd"}
	X, y, Xtest := fixture(t, 30)
	store := artifact.NewFileStore(cfg.Paths.FeatureDir)
	factory := &recordingFactory{}

	ts, err := NewTwoStage(cfg, Deps{Artifacts: store, Factory: factory.build})
	require.NoError(t, err)
	pred, err := ts.Run(context.Background(), X, y, Xtest)
	require.NoError(t, err)

	assert.Equal(t, "scalar_coupling_constant", pred.Name)
	assert.Equal(t, Xtest.Index(), pred.Index)
	assert.Len(t, pred.Values, 4)
	assert.Len(t, factory.sets, 6, "three folds for each of two sub-targets")

	for _, target := range cfg.SubTargets {
		ok, err := store.Exists(context.Background(), target, artifact.PhaseTest)
		require.NoError(t, err)
		assert.True(t, ok, target)
	}
}
