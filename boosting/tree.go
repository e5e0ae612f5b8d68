// Package boosting implements gradient-boosted decision trees for binary
// default prediction: a greedy exact-split trainer, early stopping on a
// held-out validation AUC, K-fold cross-validation with out-of-fold
// prediction tracking, and uniform-mean model ensembling.
package boosting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/core/parallel"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// NodeType discriminates leaves from split nodes.
type NodeType int

const (
	// LeafNode is a terminal node carrying an output value.
	LeafNode NodeType = iota
	// SplitNode is an internal node with a numerical threshold split.
	SplitNode
)

// Node is a single node of a decision tree. Children reference node indices
// within the owning tree; -1 means none.
type Node struct {
	NodeID     int
	ParentID   int
	LeftChild  int
	RightChild int
	NodeType   NodeType

	SplitFeature int
	Threshold    float64
	Gain         float64

	LeafValue float64
	LeafCount int
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one regression tree of the boosted ensemble. Leaf values are
// stored unscaled; ShrinkageRate is applied at prediction time.
type Tree struct {
	TreeIndex     int
	NumLeaves     int
	ShrinkageRate float64
	Nodes         []Node
}

// Predict returns the shrunken output of the tree for one feature vector.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// Model is a trained boosted-tree ensemble.
type Model struct {
	Objective    string
	Trees        []Tree
	NumFeatures  int
	LearningRate float64
	InitScore    float64

	// BestIteration is the early-stopped tree count, or the full count when
	// no early stopping fired.
	BestIteration int
}

// predictThreshold is the row count above which batch prediction fans out
// across cores.
const predictThreshold = 512

// PredictRaw returns the untransformed ensemble score for one sample.
func (m *Model) PredictRaw(features []float64) float64 {
	score := m.InitScore
	for i := range m.Trees {
		score += m.Trees[i].Predict(features)
	}
	return score
}

// PredictSingle returns the model output for one sample: the positive-class
// probability for the binary objective, the raw score otherwise.
func (m *Model) PredictSingle(features []float64) float64 {
	score := m.PredictRaw(features)
	if m.Objective == ObjectiveBinary {
		return sigmoid(score)
	}
	return score
}

// Predict scores a batch of samples and returns an n x 1 matrix. Rows are
// scored independently, so large batches are processed in parallel.
func (m *Model) Predict(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("Model.Predict", m.NumFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictThreshold, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			out.Set(i, 0, m.PredictSingle(features))
		}
	})
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
