// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vancouver

import (
	"math"
	"sort"
	"time"

	"github.com/peereval/peereval/config"
)

// FinalGrade is the per-student outcome. Students are identified with their
// paper: the consensus is that of their own paper, the reputation that of
// their reviewing.
type FinalGrade struct {
	ConsensusScore  float64 `json:"consensus_score"`
	IncentiveWeight float64 `json:"incentive_weight"`
	FinalGrade      float64 `json:"final_grade"`
	WeightedGrade   float64 `json:"weighted_grade"`
	ProtectionUsed  bool    `json:"protection_used"`
	Reputation      float64 `json:"reputation"`
	Variance        float64 `json:"variance"`
}

// Parameters records the configuration a run was executed with.
type Parameters struct {
	RMax           float64   `json:"R_max"`
	VG             float64   `json:"v_G"`
	Lambda         float64   `json:"lambda"`
	Alpha          float64   `json:"alpha"`
	MinReviews     int       `json:"N"`
	Iterations     int       `json:"n_iterations"`
	BasicPrecision float64   `json:"basic_precision"`
	UseAllData     bool      `json:"use_all_data"`
	MedianAggr     bool      `json:"aggregate_by_median"`
	Debias         bool      `json:"debias"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Summary aggregates run-level statistics.
type Summary struct {
	Students        int     `json:"students"`
	Reviewers       int     `json:"reviewers"`
	Reviews         int     `json:"reviews"`
	MeanConsensus   float64 `json:"mean_consensus"`
	MeanReputation  float64 `json:"mean_reputation"`
	MeanIncentive   float64 `json:"mean_incentive"`
	ProtectionCount int     `json:"protection_used_count"`
}

// Artifact is the consensus results document.
type Artifact struct {
	Parameters  Parameters             `json:"algorithm_parameters"`
	FinalGrades map[string]*FinalGrade `json:"final_grades"`
	Summary     Summary                `json:"summary_statistics"`
}

// Reputation maps a reviewer variance to [0, RMax] with penalty slope
// lambda = RMax/vG.
func Reputation(variance float64, cfg config.Vancouver) float64 {
	lambda := cfg.RMax / cfg.VG
	rep := cfg.RMax - lambda*math.Sqrt(math.Max(0, variance))
	return math.Max(0, rep)
}

// IncentiveWeight discounts reputation by the reviewer's participation
// shortfall relative to the minimum-review target.
func IncentiveWeight(reviews int, reputation float64, cfg config.Vancouver) float64 {
	m := float64(reviews)
	n := float64(cfg.MinReviews)
	return math.Min(m, n) / n * reputation
}

// Grades combines the estimator output into the final per-student grades.
// The floor rule guarantees a noisy reviewer is never pushed below the
// consensus on their own paper.
func Grades(res *Result, cfg config.Vancouver) *Artifact {
	artifact := &Artifact{
		Parameters: Parameters{
			RMax:           cfg.RMax,
			VG:             cfg.VG,
			Lambda:         cfg.RMax / cfg.VG,
			Alpha:          cfg.Alpha,
			MinReviews:     cfg.MinReviews,
			Iterations:     cfg.Iterations,
			BasicPrecision: cfg.BasicPrecision,
			UseAllData:     cfg.UseAllData,
			MedianAggr:     cfg.MedianAggr,
			GeneratedAt:    time.Now().UTC(),
		},
		FinalGrades: make(map[string]*FinalGrade),
	}

	var (
		sumConsensus  float64
		sumReputation float64
		sumIncentive  float64
	)
	studentIDs := make([]string, 0, len(res.Items))
	for id := range res.Items {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	for _, studentID := range studentIDs {
		item := res.Items[studentID]
		var (
			reputation float64
			incentive  float64
			variance   float64
		)
		if user, ok := res.Users[studentID]; ok {
			variance = user.Variance
			reputation = Reputation(user.Variance, cfg)
			incentive = IncentiveWeight(user.Reviews, reputation, cfg)
		}

		weighted := (1-cfg.Alpha)*item.Consensus + cfg.Alpha*incentive*100
		final := math.Max(item.Consensus, weighted)
		protection := weighted < item.Consensus

		artifact.FinalGrades[studentID] = &FinalGrade{
			ConsensusScore:  item.Consensus,
			IncentiveWeight: incentive,
			FinalGrade:      final,
			WeightedGrade:   weighted,
			ProtectionUsed:  protection,
			Reputation:      reputation,
			Variance:        variance,
		}
		if protection {
			artifact.Summary.ProtectionCount++
		}
		sumConsensus += item.Consensus
		sumReputation += reputation
		sumIncentive += incentive
	}

	artifact.Summary.Students = len(artifact.FinalGrades)
	artifact.Summary.Reviewers = len(res.Users)
	for _, u := range res.Users {
		artifact.Summary.Reviews += u.Reviews
	}
	if n := float64(len(artifact.FinalGrades)); n > 0 {
		artifact.Summary.MeanConsensus = sumConsensus / n
		artifact.Summary.MeanReputation = sumReputation / n
		artifact.Summary.MeanIncentive = sumIncentive / n
	}
	return artifact
}
