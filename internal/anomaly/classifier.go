package anomaly

import "errors"

// Result is the outcome of classifying one feature vector.
type Result struct {
	IsAnomaly bool
	Score     float64
}

// Classifier wraps a fitted model. It holds no mutable state, so calls are
// idempotent and safe for concurrent use.
type Classifier struct {
	model *Model
}

// NewClassifier creates a classifier for a fitted model.
func NewClassifier(m *Model) (*Classifier, error) {
	if m == nil || len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	return &Classifier{model: m}, nil
}

// Classify returns whether the sample is an outlier relative to the fitted distribution.
func (c *Classifier) Classify(sample []float64) (Result, error) {
	if c == nil {
		return Result{}, errors.New("nil classifier")
	}
	score, err := c.model.Score(sample)
	if err != nil {
		return Result{}, err
	}
	return Result{IsAnomaly: c.model.IsOutlier(score), Score: score}, nil
}

// Model returns the wrapped model.
func (c *Classifier) Model() *Model {
	return c.model
}
