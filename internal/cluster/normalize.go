package cluster

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Entity is a record to be clustered: a stable identity plus raw feature values.
type Entity struct {
	ID       string             `json:"id"`
	Features map[string]float64 `json:"features"`
}

// NormalizedEntity pairs an Entity with its features rescaled to [0,1].
type NormalizedEntity struct {
	Entity
	Norm map[string]float64 `json:"norm"`
}

// Normalize min-max scales every feature across all entities. The output has
// one NormalizedEntity per input, in input order. Inputs are not modified.
func Normalize(entities []Entity) ([]NormalizedEntity, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("normalize: %w: no entities", ErrInvalidInput)
	}
	names, err := schema(entities, func(e Entity) (string, map[string]float64) { return e.ID, e.Features })
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	lo := make([]float64, len(names))
	hi := make([]float64, len(names))
	column := make([]float64, len(entities))
	for j, name := range names {
		for i := range entities {
			v := entities[i].Features[name]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("normalize: %w: entity %q (index %d) has non-finite feature %q",
					ErrInvalidInput, entities[i].ID, i, name)
			}
			column[i] = v
		}
		lo[j] = floats.Min(column)
		hi[j] = floats.Max(column)
	}

	out := make([]NormalizedEntity, len(entities))
	for i, e := range entities {
		norm := make(map[string]float64, len(names))
		for j, name := range names {
			if hi[j] == lo[j] {
				norm[name] = 0
				continue
			}
			norm[name] = (e.Features[name] - lo[j]) / (hi[j] - lo[j])
		}
		out[i] = NormalizedEntity{
			Entity: Entity{ID: e.ID, Features: maps.Clone(e.Features)},
			Norm:   norm,
		}
	}
	return out, nil
}

// schema returns the sorted feature names of the first item and verifies that
// every other item carries exactly the same set.
func schema[T any](items []T, fields func(T) (string, map[string]float64)) ([]string, error) {
	_, first := fields(items[0])
	if len(first) == 0 {
		return nil, fmt.Errorf("%w: entity has no features", ErrInvalidInput)
	}
	names := slices.Sorted(maps.Keys(first))

	for i, item := range items {
		id, feats := fields(item)
		for _, name := range names {
			if _, ok := feats[name]; !ok {
				return nil, fmt.Errorf("%w: entity %q (index %d) is missing feature %q", ErrInvalidInput, id, i, name)
			}
		}
		if len(feats) != len(names) {
			return nil, fmt.Errorf("%w: entity %q (index %d) has %d features, want %d",
				ErrInvalidInput, id, i, len(feats), len(names))
		}
	}
	return names, nil
}
