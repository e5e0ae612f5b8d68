package boosting

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
	"github.com/YuminosukeSato/riskpipe/pkg/log"
)

// TrainingParams contains the boosting hyperparameters.
type TrainingParams struct {
	NumIterations int     `json:"num_iterations" mapstructure:"num_iterations"`
	LearningRate  float64 `json:"learning_rate" mapstructure:"learning_rate"`
	NumLeaves     int     `json:"num_leaves" mapstructure:"num_leaves"`
	MaxDepth      int     `json:"max_depth" mapstructure:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" mapstructure:"min_data_in_leaf"`

	// Lambda is the L2 regularization strength on leaf values.
	Lambda         float64 `json:"lambda_l2" mapstructure:"lambda_l2"`
	MinGainToSplit float64 `json:"min_gain_to_split" mapstructure:"min_gain_to_split"`

	Objective string `json:"objective" mapstructure:"objective"`

	// EarlyStopping is the patience window in rounds; 0 disables it.
	EarlyStopping int    `json:"early_stopping_rounds" mapstructure:"early_stopping_rounds"`
	Metric        string `json:"metric" mapstructure:"metric"`

	Seed      int `json:"seed" mapstructure:"seed"`
	Verbosity int `json:"verbosity" mapstructure:"verbosity"`
}

// withDefaults fills unset parameters with the reference defaults.
func (p TrainingParams) withDefaults() TrainingParams {
	if p.NumIterations == 0 {
		p.NumIterations = 100
	}
	if p.LearningRate == 0 {
		p.LearningRate = 0.1
	}
	if p.NumLeaves == 0 {
		p.NumLeaves = 31
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = 20
	}
	if p.Objective == "" {
		p.Objective = ObjectiveBinary
	}
	if p.Metric == "" && p.Objective == ObjectiveBinary {
		p.Metric = "auc"
	}
	return p
}

// SplitInfo describes a candidate split of one node.
type SplitInfo struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
}

// Trainer builds one boosted-tree ensemble. Trees are grown greedily with
// exact split search over sorted feature values; leaf values carry L2
// regularization and learning-rate shrinkage.
type Trainer struct {
	params TrainingParams

	X *mat.Dense
	y []float64

	gradients []float64
	hessians  []float64

	// rawPreds caches the current raw ensemble score per training sample and
	// is updated incrementally as trees are appended.
	rawPreds []float64

	trees     []Tree
	iteration int

	objective ObjectiveFunction
	initScore float64

	logger log.Logger
}

// NewTrainer creates a trainer with defaulted parameters.
func NewTrainer(params TrainingParams) *Trainer {
	return &Trainer{
		params: params.withDefaults(),
		logger: log.GetLoggerWithName("riskpipe.boosting"),
	}
}

// Fit trains the ensemble on X and y without a validation set.
func (t *Trainer) Fit(X mat.Matrix, y []float64) error {
	return t.FitWithValidation(X, y, nil)
}

// setData copies the inputs into the trainer and prepares the objective,
// derivative buffers and the cached raw predictions.
func (t *Trainer) setData(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Trainer.Fit", "empty training data", errors.ErrEmptyData)
	}
	if rows != len(y) {
		return errors.NewDimensionError("Trainer.Fit", rows, len(y), 0)
	}

	if dense, ok := X.(*mat.Dense); ok {
		t.X = dense
	} else {
		t.X = mat.DenseCopyOf(X)
	}
	t.y = y

	objFunc, err := CreateObjectiveFunction(t.params.Objective)
	if err != nil {
		return err
	}
	t.objective = objFunc
	t.initScore = t.objective.InitScore(y)

	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.rawPreds = make([]float64, rows)
	for i := range t.rawPreds {
		t.rawPreds[i] = t.initScore
	}
	t.trees = t.trees[:0]
	return nil
}

// boostOneRound computes derivatives at the current predictions, grows one
// tree and folds its contribution into the prediction cache.
func (t *Trainer) boostOneRound() error {
	t.calculateGradients()

	tree, err := t.buildTree()
	if err != nil {
		return errors.Wrapf(err, "tree building failed at iteration %d", t.iteration)
	}
	t.trees = append(t.trees, tree)
	t.updatePredictions(&tree)
	return nil
}

// calculateGradients fills the gradient and hessian buffers from the cached
// raw predictions.
func (t *Trainer) calculateGradients() {
	for i := range t.y {
		t.gradients[i] = t.objective.Gradient(t.rawPreds[i], t.y[i])
		t.hessians[i] = t.objective.Hessian(t.rawPreds[i], t.y[i])
	}
}

// updatePredictions adds the new tree's shrunken outputs to the cache.
func (t *Trainer) updatePredictions(tree *Tree) {
	_, cols := t.X.Dims()
	features := make([]float64, cols)
	for i := range t.rawPreds {
		mat.Row(features, i, t.X)
		t.rawPreds[i] += tree.Predict(features)
	}
}

// buildTree constructs a single tree against the current derivatives.
func (t *Trainer) buildTree() (Tree, error) {
	tree := Tree{
		TreeIndex:     t.iteration,
		ShrinkageRate: t.params.LearningRate,
		Nodes:         []Node{},
	}

	rows, _ := t.X.Dims()
	rootIndices := make([]int, rows)
	for i := range rootIndices {
		rootIndices[i] = i
	}

	t.buildNode(&tree, rootIndices, -1, 0)
	tree.NumLeaves = countLeaves(&tree)
	return tree, nil
}

// buildNode recursively grows the tree and returns the created node index.
func (t *Trainer) buildNode(tree *Tree, indices []int, parentIdx, depth int) int {
	nodeIdx := len(tree.Nodes)

	atDepthLimit := t.params.MaxDepth > 0 && depth >= t.params.MaxDepth
	atLeafLimit := t.params.NumLeaves > 0 && countLeaves(tree) >= t.params.NumLeaves-1
	if atDepthLimit || atLeafLimit || len(indices) < 2*t.params.MinDataInLeaf {
		return t.appendLeaf(tree, indices, parentIdx)
	}

	bestSplit := t.findBestSplit(indices)
	if bestSplit.Gain <= t.params.MinGainToSplit {
		return t.appendLeaf(tree, indices, parentIdx)
	}

	tree.Nodes = append(tree.Nodes, Node{
		NodeID:       nodeIdx,
		ParentID:     parentIdx,
		NodeType:     SplitNode,
		SplitFeature: bestSplit.Feature,
		Threshold:    bestSplit.Threshold,
		Gain:         bestSplit.Gain,
		LeftChild:    -1,
		RightChild:   -1,
	})

	leftIndices, rightIndices := t.splitData(indices, bestSplit)
	leftChild := t.buildNode(tree, leftIndices, nodeIdx, depth+1)
	rightChild := t.buildNode(tree, rightIndices, nodeIdx, depth+1)

	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

func (t *Trainer) appendLeaf(tree *Tree, indices []int, parentIdx int) int {
	nodeIdx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{
		NodeID:     nodeIdx,
		ParentID:   parentIdx,
		NodeType:   LeafNode,
		LeafValue:  t.calculateLeafValue(indices),
		LeafCount:  len(indices),
		LeftChild:  -1,
		RightChild: -1,
	})
	return nodeIdx
}

// findBestSplit scans every feature for the highest-gain split of indices.
func (t *Trainer) findBestSplit(indices []int) SplitInfo {
	_, cols := t.X.Dims()
	bestSplit := SplitInfo{Gain: -math.MaxFloat64}

	for j := 0; j < cols; j++ {
		split := t.findBestSplitForFeature(indices, j)
		if split.Gain > bestSplit.Gain {
			bestSplit = split
		}
	}
	return bestSplit
}

// findBestSplitForFeature performs the exact greedy scan over the sorted
// values of one feature.
func (t *Trainer) findBestSplitForFeature(indices []int, feature int) SplitInfo {
	type valueIdx struct {
		value float64
		idx   int
	}
	values := make([]valueIdx, len(indices))
	for i, idx := range indices {
		values[i] = valueIdx{value: t.X.At(idx, feature), idx: idx}
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	totalGrad := 0.0
	totalHess := 0.0
	for _, idx := range indices {
		totalGrad += t.gradients[idx]
		totalHess += t.hessians[idx]
	}

	bestSplit := SplitInfo{Feature: feature, Gain: -math.MaxFloat64}

	leftGrad, leftHess := 0.0, 0.0
	leftCount := 0
	for i := 0; i < len(values)-1; i++ {
		idx := values[i].idx
		leftGrad += t.gradients[idx]
		leftHess += t.hessians[idx]
		leftCount++

		if values[i].value == values[i+1].value {
			continue
		}

		rightCount := len(indices) - leftCount
		if leftCount < t.params.MinDataInLeaf || rightCount < t.params.MinDataInLeaf {
			continue
		}

		gain := t.calculateSplitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > bestSplit.Gain {
			bestSplit.Gain = gain
			bestSplit.Threshold = (values[i].value + values[i+1].value) / 2
			bestSplit.LeftCount = leftCount
			bestSplit.RightCount = rightCount
		}
	}
	return bestSplit
}

// calculateSplitGain is the standard second-order gain with L2 penalty.
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

func (t *Trainer) splitData(indices []int, split SplitInfo) ([]int, []int) {
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if t.X.At(idx, split.Feature) <= split.Threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

// calculateLeafValue is the Newton step -G/(H+lambda) for the leaf.
func (t *Trainer) calculateLeafValue(indices []int) float64 {
	sumGrad, sumHess := 0.0, 0.0
	for _, idx := range indices {
		sumGrad += t.gradients[idx]
		sumHess += t.hessians[idx]
	}

	const epsilon = 1e-10
	if math.Abs(sumHess) < epsilon {
		sumHess = epsilon
	}
	return -sumGrad / (sumHess + t.params.Lambda + epsilon)
}

func countLeaves(tree *Tree) int {
	count := 0
	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// GetModel returns the trained ensemble.
func (t *Trainer) GetModel() *Model {
	return &Model{
		Objective:     t.objective.Name(),
		Trees:         t.trees,
		NumFeatures:   t.X.RawMatrix().Cols,
		LearningRate:  t.params.LearningRate,
		InitScore:     t.initScore,
		BestIteration: len(t.trees),
	}
}
