package domain

import (
	"time"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"github.com/google/uuid"
)

// Assignment places one county in a cluster.
type Assignment struct {
	County  CountyKey `json:"county"`
	Cluster int       `json:"cluster"`
}

// ClusterReport is the complete output of one clustering run.
type ClusterReport struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	K           int       `json:"k"`
	Iterations  int       `json:"iterations"`
	Records     int       `json:"records"`
	Counties    int       `json:"counties"`

	Rankings           []cluster.ClusterScore `json:"rankings"`
	Assignments        []Assignment           `json:"assignments"`
	HighestRiskCluster int                    `json:"highest_risk_cluster"`
	HighRiskSample     []CountySummary        `json:"high_risk_sample"`

	Classification   Classification    `json:"classification"`
	Extremes         ExtremeRanking    `json:"extremes"`
	SeverityWeights  SeverityWeights   `json:"severity_weights"`
	SeverityPatterns []SeverityPattern `json:"severity_patterns,omitempty"`
	Exposure         []ExposureRow     `json:"exposure"`
}

// NewClusterReport starts a report with a fresh run ID stamped with the
// package clock.
func NewClusterReport(k, iterations int) ClusterReport {
	return ClusterReport{
		RunID:       uuid.NewString(),
		GeneratedAt: clock.Now().UTC(),
		K:           k,
		Iterations:  iterations,
	}
}

// AssignmentsFromPartition lists every county of p in input-cluster order.
func AssignmentsFromPartition(p *cluster.Partition) []Assignment {
	var out []Assignment
	for _, c := range p.Clusters {
		for _, m := range c.Members {
			out = append(out, Assignment{County: ParseCountyID(m.ID), Cluster: c.Index})
		}
	}
	return out
}
