package cluster

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Centroid is the representative point of a cluster in normalized feature space.
type Centroid map[string]float64

// Cluster is one group of a Partition, identified by its index in [0, k).
type Cluster struct {
	Index   int                `json:"index"`
	Members []NormalizedEntity `json:"members"`
}

// Partition is the result of KMeans. Every input entity appears in exactly
// one cluster; clusters may be empty.
type Partition struct {
	Clusters []Cluster `json:"clusters"`
	// Seeds are the initial centroids, copied from the first k entities.
	Seeds []Centroid `json:"seeds"`
	// Centroids are the centroids after the last update step.
	Centroids []Centroid `json:"centroids"`
	// Iterations is the number of assignment/update rounds executed.
	Iterations int `json:"iterations"`
}

// Assignments maps each entity ID to its cluster index.
func (p *Partition) Assignments() map[string]int {
	out := make(map[string]int)
	for _, c := range p.Clusters {
		for _, m := range c.Members {
			out[m.ID] = c.Index
		}
	}
	return out
}

type options struct {
	earlyStop bool
}

// Option configures KMeans.
type Option func(*options)

// WithEarlyStop ends the loop after an assignment step in which no entity
// changed cluster. Without it every run uses the full iteration budget.
func WithEarlyStop() Option {
	return func(o *options) { o.earlyStop = true }
}

// KMeans partitions entities into k clusters over at most iterations rounds.
// Seeding is the first k entities in input order; ties in the assignment step
// go to the lowest cluster index; empty clusters keep their centroid.
// Entity IDs must be unique. The context is checked between iterations.
func KMeans(ctx context.Context, entities []NormalizedEntity, k, iterations int, opts ...Option) (*Partition, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateKMeans(entities, k, iterations); err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}
	names, err := schema(entities, func(e NormalizedEntity) (string, map[string]float64) { return e.ID, e.Norm })
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}

	dim := len(names)
	points := make([][]float64, len(entities))
	for i, e := range entities {
		points[i] = toVector(e.Norm, names)
		for j, v := range points[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("kmeans: %w: entity %q (index %d) has non-finite feature %q",
					ErrInvalidInput, e.ID, i, names[j])
			}
		}
	}

	centroids := make([][]float64, k)
	for i := range k {
		centroids[i] = make([]float64, dim)
		copy(centroids[i], points[i])
	}
	seeds := toCentroids(centroids, names)

	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}
	sums := make([][]float64, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	counts := make([]int, k)

	ran := 0
	for iter := 0; iter < iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		ran++

		for j := range k {
			clear(sums[j])
			counts[j] = 0
		}
		for i, p := range points {
			c := assignments[i]
			floats.Add(sums[c], p)
			counts[c]++
		}
		for j := range k {
			if counts[j] == 0 {
				// Empty cluster: centroid carried over unchanged.
				continue
			}
			copy(centroids[j], sums[j])
			floats.Scale(1/float64(counts[j]), centroids[j])
		}

		if o.earlyStop && !changed {
			break
		}
	}

	clusters := make([]Cluster, k)
	for j := range clusters {
		clusters[j] = Cluster{Index: j, Members: make([]NormalizedEntity, 0, counts[j])}
	}
	for i, e := range entities {
		c := assignments[i]
		clusters[c].Members = append(clusters[c].Members, e)
	}

	return &Partition{
		Clusters:   clusters,
		Seeds:      seeds,
		Centroids:  toCentroids(centroids, names),
		Iterations: ran,
	}, nil
}

func validateKMeans(entities []NormalizedEntity, k, iterations int) error {
	if len(entities) == 0 {
		return fmt.Errorf("%w: no entities", ErrInvalidInput)
	}
	if k < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidInput, k)
	}
	if iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidInput, iterations)
	}
	distinct := make(map[string]struct{}, len(entities))
	for i, e := range entities {
		if _, ok := distinct[e.ID]; ok {
			return fmt.Errorf("%w: duplicate entity ID %q (index %d)", ErrInvalidInput, e.ID, i)
		}
		distinct[e.ID] = struct{}{}
	}
	if len(distinct) < k {
		return fmt.Errorf("%w: %d distinct entities for k=%d", ErrInvalidInput, len(distinct), k)
	}
	return nil
}

// nearest returns the index of the closest centroid. Only a strictly smaller
// distance replaces the current best, so ties keep the lowest index.
func nearest(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := floats.Distance(p, centroids[0], 2)
	for j := 1; j < len(centroids); j++ {
		if d := floats.Distance(p, centroids[j], 2); d < bestDist {
			best = j
			bestDist = d
		}
	}
	return best
}

func toVector(m map[string]float64, names []string) []float64 {
	v := make([]float64, len(names))
	for i, name := range names {
		v[i] = m[name]
	}
	return v
}

func toCentroids(vectors [][]float64, names []string) []Centroid {
	out := make([]Centroid, len(vectors))
	for i, v := range vectors {
		c := make(Centroid, len(names))
		for j, name := range names {
			c[name] = v[j]
		}
		out[i] = c
	}
	return out
}
