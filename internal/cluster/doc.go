// Package cluster partitions entities with named numeric features into k
// groups and ranks the groups by a caller-supplied score.
//
// # Pipeline
//
//	Normalize → KMeans → Rank
//
// [Normalize] rescales every feature to [0,1] with min-max scaling over the
// whole run. A feature whose values are all equal normalizes to 0 for every
// entity.
//
// [KMeans] is a deterministic Lloyd iteration:
//
//   - Seeding: centroid i is a copy of the i-th entity's normalized features,
//     in input order. No randomness is involved.
//   - Assignment: each entity joins the centroid at the smallest Euclidean
//     distance. Equal distances resolve to the lowest cluster index.
//   - Update: a centroid becomes the per-feature mean of its members. A
//     cluster with no members keeps its previous centroid, so the cluster
//     slot survives the iteration.
//   - The loop runs the full iteration budget unless [WithEarlyStop] is set.
//
// Membership in the returned [Partition] comes from the last assignment step,
// not from re-assigning against the final centroids.
//
// [Rank] orders clusters by the mean of a [ScoreFunc] over each cluster's raw
// features, highest first, ties broken by ascending cluster index.
//
// All functions are pure. Validation failures wrap [ErrInvalidInput].
package cluster
