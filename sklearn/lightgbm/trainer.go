package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/parallel"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
)

// Trainer implements histogram-based leaf-wise gradient boosting.
type Trainer struct {
	params TrainingParams

	objective ObjectiveFunction
	sampling  *SamplingStrategy
	reg       *RegularizationStrategy

	// Data
	X    *mat.Dense
	y    []float64
	data *binnedData

	// Gradient and Hessian
	gradients []float64
	hessians  []float64

	// Running raw scores of the ensemble on the training rows
	trainPred []float64

	trees     []Tree
	initScore float64

	earlyStopping *EarlyStopping
	history       map[string][]float64
}

// ValidationData holds the evaluation set used for early stopping.
type ValidationData struct {
	X mat.Matrix
	Y mat.Matrix
}

// splitInfo describes the best split found for a leaf.
type splitInfo struct {
	Feature     int
	Bin         int // bins 1..Bin go left
	DefaultLeft bool
	Gain        float64
	LeftGrad    float64
	LeftHess    float64
	LeftCount   int
	valid       bool
}

// leafState is a leaf that may still be split.
type leafState struct {
	nodeID  int
	rows    []int
	hist    [][]histogramBin // indexed by feature, nil for unsampled features
	sumGrad float64
	sumHess float64
	depth   int
	split   splitInfo
}

// NewTrainer creates a trainer. Parameters are validated here so that a
// bad sample fails before any data is touched.
func NewTrainer(p TrainingParams) (*Trainer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	obj, err := CreateObjectiveFunction(p.Objective, p)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		params:    p,
		objective: obj,
		sampling:  NewSamplingStrategy(p),
		reg:       NewRegularizationStrategy(p),
		history:   make(map[string][]float64),
	}, nil
}

// Fit trains on (X, y) for NumIterations rounds.
func (t *Trainer) Fit(X, y mat.Matrix) error {
	return t.FitWithValidation(X, y, nil)
}

// FitWithValidation trains with an optional evaluation set. When valData is
// set and EarlyStoppingRounds > 0, training stops once the validation loss
// has not improved for that many rounds and the ensemble is truncated to
// the best round.
func (t *Trainer) FitWithValidation(X, y mat.Matrix, valData *ValidationData) error {
	if err := t.initialize(X, y); err != nil {
		return err
	}

	var valX *mat.Dense
	var valY, valPred []float64
	if valData != nil {
		vr, vc := valData.X.Dims()
		_, c := t.X.Dims()
		if vc != c {
			return errors.NewDimensionError("FitWithValidation", c, vc, 1)
		}
		if yr, _ := valData.Y.Dims(); yr != vr {
			return errors.NewDimensionError("FitWithValidation", vr, yr, 0)
		}
		valX = mat.DenseCopyOf(valData.X)
		valY = mat.Col(nil, 0, valData.Y)
		if err := errors.CheckNumericalStability("FitWithValidation.targets", valY, 0); err != nil {
			return err
		}
		valPred = make([]float64, vr)
		for i := range valPred {
			valPred[i] = t.initScore
		}
		t.earlyStopping = NewEarlyStopping(t.params.EarlyStoppingRounds, t.objective.Name())
	} else {
		t.earlyStopping = NewEarlyStopping(0, "")
	}

	logger := log.GetLoggerWithName("lightgbm.trainer")
	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()
		if err := errors.CheckNumericalStability("gradients", t.gradients, iter); err != nil {
			return err
		}

		tree := t.buildTree(iter)
		t.trees = append(t.trees, tree)
		t.updatePredictions(&tree, t.X, t.trainPred)

		trainLoss := t.loss(t.y, t.trainPred)
		t.history["training"] = append(t.history["training"], trainLoss)
		if err := errors.CheckScalar("training loss", trainLoss, iter); err != nil {
			return err
		}

		if valX != nil {
			t.updatePredictions(&tree, valX, valPred)
			validLoss := t.loss(valY, valPred)
			t.history["valid_0"] = append(t.history["valid_0"], validLoss)
			if t.earlyStopping.Update(iter+1, validLoss) {
				logger.Debug("Early stopping",
					log.IterationKey, iter+1,
					log.BestIterationKey, t.earlyStopping.BestIteration,
					log.LossKey, t.earlyStopping.BestScore)
				break
			}
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			logger.Debug("Training progress", log.IterationKey, iter, log.LossKey, trainLoss)
		}
	}

	if best := t.earlyStopping.GetBestIteration(); best > 0 && best < len(t.trees) {
		t.trees = t.trees[:best]
	}
	return nil
}

func (t *Trainer) initialize(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("Fit", 1, yCols, 1)
	}

	t.X = mat.DenseCopyOf(X)
	t.y = mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability("Fit.targets", t.y, 0); err != nil {
		return err
	}

	t.data = newBinnedData(t.X, t.params.MaxBin)
	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.initScore = t.objective.GetInitScore(t.y)
	t.trainPred = make([]float64, rows)
	for i := range t.trainPred {
		t.trainPred[i] = t.initScore
	}
	t.trees = nil
	return nil
}

func (t *Trainer) calculateGradients() {
	for i, target := range t.y {
		t.gradients[i] = t.objective.CalculateGradient(t.trainPred[i], target)
		t.hessians[i] = t.objective.CalculateHessian(t.trainPred[i], target)
	}
}

// loss returns the mean objective loss.
func (t *Trainer) loss(y, pred []float64) float64 {
	var sum float64
	for i, target := range y {
		sum += t.objective.CalculateLoss(pred[i], target)
	}
	return sum / float64(len(y))
}

func (t *Trainer) updatePredictions(tree *Tree, X *mat.Dense, pred []float64) {
	rows, _ := X.Dims()
	parallel.ParallelizeN(rows, t.params.NumThreads, func(start, end int) {
		for i := start; i < end; i++ {
			pred[i] += tree.Predict(X.RawRowView(i))
		}
	})
}

// buildTree grows one tree leaf-wise: the leaf with the largest split gain
// is split next until NumLeaves is reached or no split has positive gain.
func (t *Trainer) buildTree(iter int) Tree {
	_, cols := t.X.Dims()
	rows := t.sampling.SampleInstances(len(t.y), iter)
	features := t.sampling.SampleFeatures(cols)

	tree := Tree{TreeIndex: iter, ShrinkageRate: t.params.LearningRate}
	root := &leafState{nodeID: 0, rows: rows}
	for _, i := range rows {
		root.sumGrad += t.gradients[i]
		root.sumHess += t.hessians[i]
	}
	root.hist = t.histograms(rows, features)
	tree.Nodes = append(tree.Nodes, Node{NodeID: 0, ParentID: -1, LeftChild: -1, RightChild: -1, NodeType: LeafNode})
	t.findBestSplit(root, features)

	leaves := []*leafState{root}
	for len(leaves) < t.params.NumLeaves {
		bestIdx := -1
		for i, leaf := range leaves {
			if leaf.split.valid && (bestIdx < 0 || leaf.split.Gain > leaves[bestIdx].split.Gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		leaf := leaves[bestIdx]
		left, right := t.splitLeaf(&tree, leaf, features)
		leaves[bestIdx] = left
		leaves = append(leaves, right)
	}

	for _, leaf := range leaves {
		node := &tree.Nodes[leaf.nodeID]
		node.LeafValue = t.reg.LeafValue(leaf.sumGrad, leaf.sumHess)
		node.LeafCount = len(leaf.rows)
	}
	tree.NumLeaves = len(leaves)
	return tree
}

// histograms builds per-feature histograms for rows, in parallel across
// features.
func (t *Trainer) histograms(rows []int, features []int) [][]histogramBin {
	hist := make([][]histogramBin, len(t.data.mappers))
	parallel.ParallelizeN(len(features), t.params.NumThreads, func(start, end int) {
		for _, f := range features[start:end] {
			hist[f] = buildHistogram(t.data.bins[f], rows, t.gradients, t.hessians, t.data.mappers[f].numBins())
		}
	})
	return hist
}

// splitLeaf turns leaf into an internal node with two new leaves. Only the
// smaller child's histograms are built from rows; the sibling's come from
// subtraction.
func (t *Trainer) splitLeaf(tree *Tree, leaf *leafState, features []int) (*leafState, *leafState) {
	s := leaf.split
	bins := t.data.bins[s.Feature]
	leftRows := make([]int, 0, s.LeftCount)
	rightRows := make([]int, 0, len(leaf.rows)-s.LeftCount)
	for _, i := range leaf.rows {
		b := int(bins[i])
		goLeft := b != missingBin && b <= s.Bin
		if b == missingBin {
			goLeft = s.DefaultLeft
		}
		if goLeft {
			leftRows = append(leftRows, i)
		} else {
			rightRows = append(rightRows, i)
		}
	}

	leftID, rightID := len(tree.Nodes), len(tree.Nodes)+1
	depth := leaf.depth + 1
	tree.Nodes = append(tree.Nodes,
		Node{NodeID: leftID, ParentID: leaf.nodeID, LeftChild: -1, RightChild: -1, NodeType: LeafNode, Depth: depth},
		Node{NodeID: rightID, ParentID: leaf.nodeID, LeftChild: -1, RightChild: -1, NodeType: LeafNode, Depth: depth},
	)
	parent := &tree.Nodes[leaf.nodeID]
	parent.NodeType = NumericalNode
	parent.LeftChild = leftID
	parent.RightChild = rightID
	parent.SplitFeature = s.Feature
	parent.Threshold = t.data.mappers[s.Feature].threshold(s.Bin)
	parent.DefaultLeft = s.DefaultLeft
	parent.Gain = s.Gain

	left := &leafState{nodeID: leftID, rows: leftRows, sumGrad: s.LeftGrad, sumHess: s.LeftHess, depth: depth}
	right := &leafState{nodeID: rightID, rows: rightRows,
		sumGrad: leaf.sumGrad - s.LeftGrad, sumHess: leaf.sumHess - s.LeftHess, depth: depth}

	small, large := left, right
	if len(rightRows) < len(leftRows) {
		small, large = right, left
	}
	small.hist = t.histograms(small.rows, features)
	large.hist = make([][]histogramBin, len(leaf.hist))
	for _, f := range features {
		large.hist[f] = subtractHistogram(leaf.hist[f], small.hist[f])
	}
	leaf.hist = nil

	t.findBestSplit(left, features)
	t.findBestSplit(right, features)
	return left, right
}

func (t *Trainer) findBestSplit(leaf *leafState, features []int) {
	leaf.split = splitInfo{}
	if t.params.MaxDepth > 0 && leaf.depth >= t.params.MaxDepth {
		return
	}
	if len(leaf.rows) < 2*maxInt(t.params.MinChildSamples, 1) {
		return
	}
	for _, f := range features {
		if s := t.findBestSplitForFeature(leaf, f); s.valid && (!leaf.split.valid || s.Gain > leaf.split.Gain) {
			leaf.split = s
		}
	}
}

// findBestSplitForFeature scans bin boundaries left to right and tries
// sending the missing bin to either side.
func (t *Trainer) findBestSplitForFeature(leaf *leafState, feature int) splitInfo {
	hist := leaf.hist[feature]
	missing := hist[missingBin]
	total := len(leaf.rows)
	best := splitInfo{Feature: feature}

	var accGrad, accHess float64
	var accCount int
	for b := 1; b < len(hist); b++ {
		accGrad += hist[b].SumGrad
		accHess += hist[b].SumHess
		accCount += hist[b].Count
		if hist[b].Count == 0 && b < len(hist)-1 {
			continue
		}

		for _, defaultLeft := range [2]bool{false, true} {
			if defaultLeft && missing.Count == 0 {
				continue
			}
			lg, lh, lc := accGrad, accHess, accCount
			if defaultLeft {
				lg += missing.SumGrad
				lh += missing.SumHess
				lc += missing.Count
			}
			rg, rh, rc := leaf.sumGrad-lg, leaf.sumHess-lh, total-lc
			if lc < maxInt(t.params.MinChildSamples, 1) || rc < maxInt(t.params.MinChildSamples, 1) {
				continue
			}
			if lh < t.params.MinChildWeight || rh < t.params.MinChildWeight {
				continue
			}

			gain := t.reg.SplitGain(lg, lh, rg, rh, leaf.sumGrad, leaf.sumHess)
			if gain <= t.params.MinGainToSplit || math.IsNaN(gain) {
				continue
			}
			if !best.valid || gain > best.Gain {
				best = splitInfo{
					Feature:     feature,
					Bin:         b,
					DefaultLeft: defaultLeft,
					Gain:        gain,
					LeftGrad:    lg,
					LeftHess:    lh,
					LeftCount:   lc,
					valid:       true,
				}
			}
		}
	}
	return best
}

// GetModel returns the trained ensemble.
func (t *Trainer) GetModel() *Model {
	_, cols := t.X.Dims()
	return &Model{
		Trees:         t.trees,
		InitScore:     t.initScore,
		NumFeatures:   cols,
		Objective:     t.objective.Name(),
		BestIteration: len(t.trees),
	}
}

// EvalHistory returns the per-round mean loss keyed by "training" and,
// when an evaluation set was given, "valid_0".
func (t *Trainer) EvalHistory() map[string][]float64 {
	out := make(map[string][]float64, len(t.history))
	for k, v := range t.history {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
