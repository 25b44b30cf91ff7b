package pipeline

import (
	"fmt"
	"math"
)

// Component is one weighted contribution to an aggregate quality score.
// Aggregates belong to pipeline instances: the executor never computes them,
// it only carries the results they are derived from.
type Component struct {
	Name   string
	Score  float64
	Weight float64
}

const weightTolerance = 1e-6

// WeightedScore combines component scores by weight. Weights must sum to 1.
func WeightedScore(components []Component) (float64, error) {
	if len(components) == 0 {
		return 0, fmt.Errorf("pipeline: weighted score requires at least one component")
	}
	var total, weightSum float64
	for _, c := range components {
		if c.Weight < 0 {
			return 0, fmt.Errorf("pipeline: component %s has negative weight", c.Name)
		}
		total += c.Score * c.Weight
		weightSum += c.Weight
	}
	if math.Abs(weightSum-1) > weightTolerance {
		return 0, fmt.Errorf("pipeline: component weights sum to %.4f, want 1", weightSum)
	}
	return total, nil
}

// Passes reports whether a score meets a threshold.
func Passes(score, threshold float64) bool {
	return score >= threshold
}
