package lightgbm

import (
	"math"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with numerical split
	NumericalNode
)

// Node represents a single node in a decision tree
type Node struct {
	NodeID     int
	ParentID   int // -1 for root
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf
	NodeType   NodeType
	Depth      int

	// Split information (for non-leaf nodes)
	SplitFeature int
	Threshold    float64 // value <= Threshold goes left
	DefaultLeft  bool    // direction for missing values
	Gain         float64

	// Leaf information (for leaf nodes)
	LeafValue float64
	LeafCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.NodeType == LeafNode
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	TreeIndex     int
	NumLeaves     int
	ShrinkageRate float64 // learning rate applied to leaf values
	Nodes         []Node  // Nodes[0] is the root
}

// Predict makes a prediction for a single sample using this tree
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}

		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case v <= node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// Model is a trained boosting ensemble.
type Model struct {
	Trees         []Tree
	InitScore     float64
	NumFeatures   int
	Objective     string
	BestIteration int // number of trees kept, 1-based
}

// PredictRow returns the raw score for one sample.
func (m *Model) PredictRow(features []float64) float64 {
	pred := m.InitScore
	for i := range m.Trees {
		pred += m.Trees[i].Predict(features)
	}
	return pred
}

// FeatureImportance returns per-feature split counts ("split") or summed
// split gains ("gain").
func (m *Model) FeatureImportance(importanceType string) []float64 {
	imp := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			if importanceType == "gain" {
				imp[node.SplitFeature] += node.Gain
			} else {
				imp[node.SplitFeature]++
			}
		}
	}
	return imp
}
