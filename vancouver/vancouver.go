// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vancouver

import (
	"math"

	"github.com/peereval/peereval/config"
)

// msg is one directed message on an edge.
type msg struct {
	grade    float64
	variance float64
}

// ItemResult is the consensus estimate for one paper.
type ItemResult struct {
	Consensus float64 `json:"consensus_score"`
	Variance  float64 `json:"variance"`
}

// UserResult is the estimated scoring quality of one reviewer.
type UserResult struct {
	Variance float64 `json:"variance"`
	Reviews  int     `json:"reviews"`
}

// Result holds the raw estimator output keyed by boundary ids.
type Result struct {
	Items map[string]*ItemResult `json:"items"`
	Users map[string]*UserResult `json:"users"`
}

// estimator carries the per-run state: two flat message arrays keyed by edge
// index, one per direction. Rekeying them each half-step avoids the aliasing
// hazards of mutating shared message lists mid-iteration.
type estimator struct {
	g   *Graph
	cfg config.Vancouver

	// userToItem[e] is the message from the user of edge e about its item.
	userToItem []msg
	// itemToUser[e] is the feedback from the item of edge e to its user.
	itemToUser []msg
}

// Run executes the message-passing estimator over the graph.
func (g *Graph) Run(cfg config.Vancouver) *Result {
	g.build()
	est := &estimator{
		g:          g,
		cfg:        cfg,
		userToItem: make([]msg, len(g.edges)),
		itemToUser: make([]msg, len(g.edges)),
	}

	// seed with raw scores at unit variance
	for e, ed := range g.edges {
		est.userToItem[e] = msg{grade: ed.grade, variance: 1.0}
	}

	for it := 0; it < cfg.Iterations; it++ {
		est.propagateFromItems()
		est.propagateFromUsers()
	}

	return est.aggregate()
}

// aggregateWith computes the weighted aggregate of values with raw weights
// 1/(basicPrecision+variance), plus the variance of the aggregate. When
// every weight vanishes it falls back to the unweighted mean.
func (est *estimator) aggregateWith(values, variances []float64) (grade, variance float64) {
	weights := make([]float64, len(variances))
	sum := 0.0
	for k, v := range variances {
		w := 1.0 / (est.cfg.BasicPrecision + v)
		if !isFinite(w) || w < 0 {
			w = 0
		}
		weights[k] = w
		sum += w
	}
	if sum == 0 || !isFinite(sum) {
		for k := range weights {
			weights[k] = 1
		}
		sum = float64(len(weights))
	}
	for k := range weights {
		weights[k] /= sum
	}

	if est.cfg.MedianAggr {
		grade = weightedMedian(values, weights)
	} else {
		for k, v := range values {
			grade += v * weights[k]
		}
	}
	for k, v := range variances {
		variance += v * weights[k] * weights[k]
	}
	return grade, variance
}

// include applies the symmetric exclusion rule: a vertex's own message is
// used when the run is configured to, or when fewer than two messages exist.
func (est *estimator) include(self, other, total int) bool {
	return est.cfg.UseAllData || other != self || total < 2
}

// propagateFromItems computes, for every edge, the item's feedback to its
// reviewer from the other reviewers' current messages.
func (est *estimator) propagateFromItems() {
	next := make([]msg, len(est.g.edges))
	for _, i := range est.g.sortedItems() {
		edges := est.g.itemEdges[i]
		for _, e := range edges {
			var values, variances []float64
			for _, o := range edges {
				if !est.include(e, o, len(edges)) {
					continue
				}
				values = append(values, est.userToItem[o].grade)
				variances = append(variances, est.userToItem[o].variance)
			}
			grade, variance := est.aggregateWith(values, variances)
			next[e] = msg{grade: grade, variance: variance}
		}
	}
	est.itemToUser = next
}

// propagateFromUsers estimates, for every edge, the reviewer's variance from
// the feedback on their other items, and re-emits the (de-biased) score.
// Bias is fixed at zero.
func (est *estimator) propagateFromUsers() {
	next := make([]msg, len(est.g.edges))
	for _, u := range est.g.sortedUsers() {
		edges := est.g.userEdges[u]
		for _, e := range edges {
			var estimates, variances []float64
			for _, o := range edges {
				if !est.include(e, o, len(edges)) {
					continue
				}
				diff := est.g.edges[o].grade - est.itemToUser[o].grade
				estimates = append(estimates, diff*diff)
				variances = append(variances, est.itemToUser[o].variance)
			}
			variance, _ := est.aggregateWith(estimates, variances)
			next[e] = msg{grade: est.g.edges[e].grade, variance: variance}
		}
	}
	est.userToItem = next
}

// aggregate runs the two final aggregation steps.
func (est *estimator) aggregate() *Result {
	res := &Result{
		Items: make(map[string]*ItemResult, len(est.g.itemIDs)),
		Users: make(map[string]*UserResult, len(est.g.userIDs)),
	}

	for _, i := range est.g.sortedItems() {
		edges := est.g.itemEdges[i]
		if len(edges) == 0 {
			continue
		}
		var values, variances []float64
		for _, e := range edges {
			values = append(values, est.userToItem[e].grade)
			variances = append(variances, est.userToItem[e].variance)
		}
		grade, variance := est.aggregateWith(values, variances)
		res.Items[est.g.itemIDs[i]] = &ItemResult{Consensus: grade, Variance: variance}
	}

	for _, u := range est.g.sortedUsers() {
		edges := est.g.userEdges[u]
		if len(edges) == 0 {
			continue
		}
		var estimates, variances []float64
		for _, e := range edges {
			item := res.Items[est.g.itemIDs[est.g.edges[e].item]]
			diff := est.g.edges[e].grade - item.Consensus
			estimates = append(estimates, diff*diff)
			variances = append(variances, est.itemToUser[e].variance)
		}
		variance, _ := est.aggregateWith(estimates, variances)
		res.Users[est.g.userIDs[u]] = &UserResult{Variance: variance, Reviews: len(edges)}
	}
	return res
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
