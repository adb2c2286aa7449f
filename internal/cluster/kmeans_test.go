package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(t *testing.T, in []Entity) []NormalizedEntity {
	t.Helper()
	out, err := Normalize(in)
	require.NoError(t, err)
	return out
}

func memberIDs(c Cluster) []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

func TestKMeans_TwoGroupScenario(t *testing.T) {
	points := normalized(t, entities("x", 0, 0, 10, 10))
	require.Equal(t, []float64{0, 0, 1, 1}, []float64{
		points[0].Norm["x"], points[1].Norm["x"], points[2].Norm["x"], points[3].Norm["x"],
	})

	t.Run("first iteration ties go to cluster zero", func(t *testing.T) {
		// Both seeds sit at x=0, so every entity is equidistant to the two
		// centroids and the lowest index wins.
		p, err := KMeans(context.Background(), points, 2, 1)
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c", "d"}, memberIDs(p.Clusters[0]))
		assert.Empty(t, p.Clusters[1].Members)
		assert.InDelta(t, 0.5, p.Centroids[0]["x"], 1e-12)
		assert.Equal(t, 0.0, p.Centroids[1]["x"])
	})

	t.Run("stabilizes by the second iteration", func(t *testing.T) {
		p2, err := KMeans(context.Background(), points, 2, 2)
		require.NoError(t, err)
		p3, err := KMeans(context.Background(), points, 2, 3)
		require.NoError(t, err)

		assert.Equal(t, []string{"c", "d"}, memberIDs(p3.Clusters[0]))
		assert.Equal(t, []string{"a", "b"}, memberIDs(p3.Clusters[1]))
		assert.Equal(t, p2.Assignments(), p3.Assignments())
		assert.InDelta(t, 1.0, p3.Centroids[0]["x"], 1e-12)
		assert.InDelta(t, 0.0, p3.Centroids[1]["x"], 1e-12)
		assert.Equal(t, 3, p3.Iterations)
	})
}

func TestKMeans_SeedsCopyFirstEntities(t *testing.T) {
	in := []Entity{
		{ID: "a", Features: map[string]float64{"x": 1, "y": 9}},
		{ID: "b", Features: map[string]float64{"x": 4, "y": 2}},
		{ID: "c", Features: map[string]float64{"x": 9, "y": 5}},
		{ID: "d", Features: map[string]float64{"x": 3, "y": 3}},
	}
	points := normalized(t, in)

	p, err := KMeans(context.Background(), points, 3, 1)
	require.NoError(t, err)
	require.Len(t, p.Seeds, 3)
	for i := range 3 {
		assert.Equal(t, Centroid(points[i].Norm), p.Seeds[i], "seed %d", i)
	}

	p.Seeds[0]["x"] = 42
	assert.NotEqual(t, 42.0, points[0].Norm["x"], "seed must be a copy")
}

func TestKMeans_EmptyClusterKeepsCentroid(t *testing.T) {
	// Normalized x: 0, 0.5, 0.5, 1. Seeds 1 and 2 coincide, so cluster 2
	// loses every tie to cluster 1 and receives no members.
	points := normalized(t, entities("x", 0, 5, 5, 10))

	p, err := KMeans(context.Background(), points, 3, 1)
	require.NoError(t, err)

	assert.Empty(t, p.Clusters[2].Members)
	assert.Equal(t, p.Seeds[2], p.Centroids[2])
	assert.InDelta(t, 0.5, p.Centroids[2]["x"], 1e-12)

	assert.Equal(t, []string{"a"}, memberIDs(p.Clusters[0]))
	assert.Equal(t, []string{"b", "c", "d"}, memberIDs(p.Clusters[1]))
	assert.InDelta(t, 2.0/3.0, p.Centroids[1]["x"], 1e-12)
}

func TestKMeans_PartitionIsComplete(t *testing.T) {
	in := []Entity{
		{ID: "a", Features: map[string]float64{"median": 35, "p90": 60, "max": 110, "unhealthy": 0}},
		{ID: "b", Features: map[string]float64{"median": 52, "p90": 88, "max": 190, "unhealthy": 4}},
		{ID: "c", Features: map[string]float64{"median": 18, "p90": 40, "max": 70, "unhealthy": 0}},
		{ID: "d", Features: map[string]float64{"median": 61, "p90": 120, "max": 420, "unhealthy": 19}},
		{ID: "e", Features: map[string]float64{"median": 44, "p90": 71, "max": 151, "unhealthy": 1}},
		{ID: "f", Features: map[string]float64{"median": 66, "p90": 131, "max": 500, "unhealthy": 25}},
		{ID: "g", Features: map[string]float64{"median": 21, "p90": 45, "max": 80, "unhealthy": 0}},
	}
	points := normalized(t, in)

	for _, k := range []int{1, 2, 4, 7} {
		p, err := KMeans(context.Background(), points, k, 25)
		require.NoError(t, err)
		require.Len(t, p.Clusters, k)

		seen := make(map[string]int)
		for j, c := range p.Clusters {
			assert.Equal(t, j, c.Index)
			for _, m := range c.Members {
				seen[m.ID]++
			}
		}
		assert.Len(t, seen, len(in), "k=%d", k)
		for id, n := range seen {
			assert.Equal(t, 1, n, "entity %s appears %d times (k=%d)", id, n, k)
		}
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	in := []Entity{
		{ID: "a", Features: map[string]float64{"x": 0.3, "y": 7}},
		{ID: "b", Features: map[string]float64{"x": 2.1, "y": 1}},
		{ID: "c", Features: map[string]float64{"x": 9.4, "y": 3}},
		{ID: "d", Features: map[string]float64{"x": 4.4, "y": 8}},
		{ID: "e", Features: map[string]float64{"x": 6.0, "y": 2}},
		{ID: "f", Features: map[string]float64{"x": 1.7, "y": 5}},
	}
	points := normalized(t, in)

	first, err := KMeans(context.Background(), points, 3, 10)
	require.NoError(t, err)
	second, err := KMeans(context.Background(), points, 3, 10)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}

func TestKMeans_EarlyStop(t *testing.T) {
	points := normalized(t, entities("x", 0, 0, 10, 10))

	full, err := KMeans(context.Background(), points, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, full.Iterations)

	early, err := KMeans(context.Background(), points, 2, 50, WithEarlyStop())
	require.NoError(t, err)
	assert.Equal(t, 3, early.Iterations)
	assert.Equal(t, full.Assignments(), early.Assignments())
	assert.Equal(t, full.Centroids, early.Centroids)
}

func TestKMeans_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := KMeans(ctx, normalized(t, entities("x", 1, 2, 3)), 2, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKMeans_InvalidInput(t *testing.T) {
	points := normalized(t, entities("x", 1, 2, 3))
	duplicate := []NormalizedEntity{points[0], points[0]}
	repeated := []NormalizedEntity{points[0], points[0], points[1]}
	nonFinite := []NormalizedEntity{
		points[0],
		{Entity: points[1].Entity, Norm: map[string]float64{"x": math.NaN()}},
	}
	mixed := []NormalizedEntity{
		points[0],
		{Entity: Entity{ID: "z", Features: map[string]float64{"y": 1}}, Norm: map[string]float64{"y": 0}},
	}

	tests := []struct {
		name       string
		in         []NormalizedEntity
		k          int
		iterations int
		message    string
	}{
		{name: "empty", in: nil, k: 1, iterations: 1, message: "no entities"},
		{name: "zero k", in: points, k: 0, iterations: 1, message: "k must be at least 1, got 0"},
		{name: "zero iterations", in: points, k: 1, iterations: 0, message: "iterations must be at least 1, got 0"},
		{name: "k above entity count", in: points, k: 4, iterations: 1, message: "3 distinct entities for k=4"},
		{name: "duplicate identities", in: duplicate, k: 2, iterations: 1, message: `duplicate entity ID "a" (index 1)`},
		{name: "duplicate with enough distinct", in: repeated, k: 2, iterations: 1, message: `duplicate entity ID "a" (index 1)`},
		{name: "non-finite norm", in: nonFinite, k: 1, iterations: 1, message: `entity "b" (index 1) has non-finite feature "x"`},
		{name: "inconsistent schema", in: mixed, k: 1, iterations: 1, message: `missing feature "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := KMeans(context.Background(), tt.in, tt.k, tt.iterations)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
