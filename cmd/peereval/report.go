// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/peereval/peereval/vancouver"
)

// printReport writes the plain-text verification summary of a grading run.
func printReport(w io.Writer, artifact *vancouver.Artifact, reviews int) {
	s := artifact.Summary

	fmt.Fprintln(w, "=== grading verification report ===")
	fmt.Fprintf(w, "students graded:       %d\n", s.Students)
	fmt.Fprintf(w, "reviewers:             %d\n", s.Reviewers)
	fmt.Fprintf(w, "reviewer-paper scores: %d\n", reviews)
	fmt.Fprintf(w, "mean consensus:        %.2f\n", s.MeanConsensus)
	fmt.Fprintf(w, "mean reputation:       %.3f\n", s.MeanReputation)
	fmt.Fprintf(w, "mean incentive:        %.3f\n", s.MeanIncentive)
	fmt.Fprintf(w, "floor protections:     %d\n", s.ProtectionCount)

	rmax := artifact.Parameters.RMax
	const buckets = 5
	var dist [buckets]int
	for _, fg := range artifact.FinalGrades {
		idx := buckets - 1
		if rmax > 0 && fg.Reputation < rmax {
			idx = int(fg.Reputation / rmax * buckets)
		}
		dist[idx]++
	}
	fmt.Fprintln(w, "reputation distribution:")
	for i, count := range dist {
		lo := rmax * float64(i) / buckets
		hi := rmax * float64(i+1) / buckets
		fmt.Fprintf(w, "  [%.2f, %.2f): %d\n", lo, hi, count)
	}

	// flag the students whose floor kicked in, they are the ones to eyeball
	var protected []string
	for id, fg := range artifact.FinalGrades {
		if fg.ProtectionUsed {
			protected = append(protected, id)
		}
	}
	sort.Strings(protected)
	for _, id := range protected {
		fg := artifact.FinalGrades[id]
		fmt.Fprintf(w, "protected: %s consensus=%.2f weighted=%.2f\n",
			id, fg.ConsensusScore, fg.WeightedGrade)
	}
}
