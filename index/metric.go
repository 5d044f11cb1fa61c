package index

import (
	"fmt"
	"math"
	"strings"

	"github.com/poiesic/insight/core"
)

// Metric scores a pair of equal-length vectors. Higher scores mean more similar.
type Metric interface {
	Name() string
	Similarity(a, b []float32) float32
}

var (
	// Cosine is the cosine of the angle between two vectors, in [-1, 1].
	// A zero vector scores 0 against anything.
	Cosine Metric = cosine{}

	// DotProduct is the raw inner product. It equals Cosine for unit-length vectors.
	DotProduct Metric = dotProduct{}

	// Euclidean is the negated L2 distance, so identical vectors score 0
	// and everything else scores below it.
	Euclidean Metric = euclidean{}
)

// MetricByName returns the metric registered under name ("cosine", "dot"
// or "euclidean").
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cosine":
		return Cosine, nil
	case "dot", "dot-product", "dotproduct", "inner-product":
		return DotProduct, nil
	case "euclidean", "l2":
		return Euclidean, nil
	default:
		return nil, fmt.Errorf("%w: unknown similarity metric %q", core.ErrConfig, name)
	}
}

type cosine struct{}

func (cosine) Name() string { return "cosine" }

func (cosine) Similarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

type dotProduct struct{}

func (dotProduct) Name() string { return "dot" }

func (dotProduct) Similarity(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

type euclidean struct{}

func (euclidean) Name() string { return "euclidean" }

func (euclidean) Similarity(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(-math.Sqrt(sum))
}
