package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ScoreFunc maps an entity's raw (non-normalized) features to a risk score.
type ScoreFunc func(raw map[string]float64) float64

// ClusterScore summarizes one cluster for presentation.
type ClusterScore struct {
	Index     int     `json:"index"`
	MeanScore float64 `json:"mean_score"`
	Size      int     `json:"size"`
}

// Rank scores every cluster of p by the mean of score over its members and
// returns the clusters ordered by mean score descending, ties by ascending
// index. Empty clusters score 0. A NaN or infinite score is rejected.
func Rank(p *Partition, score ScoreFunc) ([]ClusterScore, error) {
	if p == nil {
		return nil, fmt.Errorf("rank: %w: nil partition", ErrInvalidInput)
	}
	if score == nil {
		return nil, fmt.Errorf("rank: %w: nil score function", ErrInvalidInput)
	}

	out := make([]ClusterScore, 0, len(p.Clusters))
	for _, c := range p.Clusters {
		cs := ClusterScore{Index: c.Index, Size: len(c.Members)}
		if len(c.Members) > 0 {
			scores := make([]float64, len(c.Members))
			for i, m := range c.Members {
				s := score(m.Features)
				if math.IsNaN(s) || math.IsInf(s, 0) {
					return nil, fmt.Errorf("rank: %w: score for entity %q in cluster %d is %v",
						ErrInvalidInput, m.ID, c.Index, s)
				}
				scores[i] = s
			}
			cs.MeanScore = stat.Mean(scores, nil)
		}
		out = append(out, cs)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}
