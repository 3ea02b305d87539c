// Package modelfile loads trained model artifacts from a directory. An
// artifact named T3 lives in T3.json, T3.yaml or T3.yml.
package modelfile

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/utilcast/core/features"
)

const (
	KindLinear = "linear"
	KindForest = "forest"
)

// Artifact is the serialised form of a model.
type Artifact struct {
	Kind string `json:"kind" yaml:"kind"`
	// Columns, when present, must match the feature column order.
	Columns      []string  `json:"columns,omitempty" yaml:"columns,omitempty"`
	Intercept    float64   `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	Trees        []Tree    `json:"trees,omitempty" yaml:"trees,omitempty"`
}

// Tree is a binary regression tree stored as a flat node list; node 0 is
// the root.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a split when Left >= 0 and a leaf otherwise. A split sends rows
// with feature value <= Threshold to Left.
type Node struct {
	Feature   int     `json:"feature" yaml:"feature"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Left      int     `json:"left" yaml:"left"`
	Right     int     `json:"right" yaml:"right"`
	Value     float64 `json:"value" yaml:"value"`
}

func (a Artifact) build(name string) (model, error) {
	if len(a.Columns) > 0 && !slices.Equal(a.Columns, features.ColumnNames()) {
		return nil, fmt.Errorf("model %s: feature columns do not match", name)
	}
	switch a.Kind {
	case KindLinear:
		if len(a.Coefficients) != features.NumColumns {
			return nil, fmt.Errorf("model %s: expected %d coefficients, got %d",
				name, features.NumColumns, len(a.Coefficients))
		}
		return &linear{
			name:      name,
			intercept: a.Intercept,
			coef:      mat.NewVecDense(features.NumColumns, slices.Clone(a.Coefficients)),
		}, nil
	case KindForest:
		if len(a.Trees) == 0 {
			return nil, fmt.Errorf("model %s: forest has no trees", name)
		}
		for i, t := range a.Trees {
			if len(t.Nodes) == 0 {
				return nil, fmt.Errorf("model %s: tree %d is empty", name, i)
			}
		}
		return &forest{name: name, trees: a.Trees}, nil
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", name, a.Kind)
	}
}

type model interface {
	Name() string
	Predict(v features.Vector) (float64, error)
}

type linear struct {
	name      string
	intercept float64
	coef      *mat.VecDense
}

func (l *linear) Name() string { return l.name }

func (l *linear) Predict(v features.Vector) (float64, error) {
	x := mat.NewVecDense(features.NumColumns, v.Slice())
	return l.intercept + mat.Dot(l.coef, x), nil
}

type forest struct {
	name  string
	trees []Tree
}

func (f *forest) Name() string { return f.name }

// Predict averages the leaf values reached in every tree.
func (f *forest) Predict(v features.Vector) (float64, error) {
	x := v.Slice()
	out := make([]float64, len(f.trees))
	for i, t := range f.trees {
		val, err := t.eval(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		out[i] = val
	}
	return stat.Mean(out, nil), nil
}

var errMalformedTree = errors.New("malformed tree")

func (t Tree) eval(x []float64) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("%w: node %d out of range", errMalformedTree, idx)
		}
		n := t.Nodes[idx]
		if n.Left < 0 {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(x) {
			return 0, fmt.Errorf("%w: feature %d out of range", errMalformedTree, n.Feature)
		}
		if x[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0, fmt.Errorf("%w: cycle detected", errMalformedTree)
}
