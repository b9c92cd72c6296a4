// Package rankmodel loads the pretrained top-10 ranking classifier from
// JSON artifacts and evaluates it over gap/ratio feature vectors.
package rankmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
)

// Classifier returns the probability of the "ranks in top 10" class.
type Classifier interface {
	PredictProba(x []float64) (float64, error)
}

// Model pairs a classifier with the feature order it was trained on.
type Model struct {
	Classifier Classifier
	Features   []string
}

// Predict builds the feature vector for user against median and evaluates it.
func (m *Model) Predict(user, median Signals) (float64, error) {
	x, err := BuildVector(m.Features, user, median)
	if err != nil {
		return 0, err
	}
	p, err := m.Classifier.PredictProba(x)
	if err != nil {
		return 0, fmt.Errorf("model prediction failed: %w", err)
	}
	return math.Max(0, math.Min(1, p)), nil
}

// Load reads the model and feature-list artifacts. A missing file yields
// ErrArtifactMissing.
func Load(modelPath, featureListPath string) (*Model, error) {
	features, err := loadFeatureList(featureListPath)
	if err != nil {
		return nil, err
	}

	data, err := readArtifact(modelPath)
	if err != nil {
		return nil, err
	}
	clf, err := decodeClassifier(data, len(features))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, modelPath, err)
	}
	return &Model{Classifier: clf, Features: features}, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func loadFeatureList(path string) ([]string, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s: empty feature list", ErrInvalidArtifact, path)
	}
	for _, n := range names {
		if _, ok := featureFuncs[n]; !ok {
			return nil, fmt.Errorf("%w: %s: unknown feature %q", ErrInvalidArtifact, path, n)
		}
	}
	return names, nil
}

type artifact struct {
	Type         string    `json:"type"`
	Trees        []Tree    `json:"trees"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func decodeClassifier(data []byte, nFeatures int) (Classifier, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	switch a.Type {
	case "random_forest":
		f := &Forest{Trees: a.Trees}
		if err := f.validate(nFeatures); err != nil {
			return nil, err
		}
		return f, nil
	case "logistic_regression":
		if len(a.Coefficients) != nFeatures {
			return nil, fmt.Errorf("%d coefficients for %d features", len(a.Coefficients), nFeatures)
		}
		return &Logistic{Coefficients: a.Coefficients, Intercept: a.Intercept}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Type)
	}
}

// Node is one decision-tree node. Leaves have Left == -1 and carry class
// counts in Value as [negative, positive].
type Node struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Value     [2]float64 `json:"value"`
}

// Tree is a binary decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == -1 {
			total := n.Value[0] + n.Value[1]
			if total <= 0 {
				return 0
			}
			return n.Value[1] / total
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest averages the positive-class probability over its trees.
type Forest struct {
	Trees []Tree
}

// PredictProba implements Classifier.
func (f *Forest) PredictProba(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("empty forest")
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// validate rejects trees that would index out of range or loop.
func (f *Forest) validate(nFeatures int) error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == -1 {
				continue
			}
			if n.Feature < 0 || n.Feature >= nFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children must come later so traversal terminates
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Logistic is a linear model with a sigmoid link.
type Logistic struct {
	Coefficients []float64
	Intercept    float64
}

// PredictProba implements Classifier.
func (l *Logistic) PredictProba(x []float64) (float64, error) {
	if len(x) != len(l.Coefficients) {
		return 0, fmt.Errorf("got %d features, want %d", len(x), len(l.Coefficients))
	}
	z := l.Intercept
	for i, c := range l.Coefficients {
		z += c * x[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}
