// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vancouver implements the reputation-weighted consensus estimator.
// Reviewers and papers live in index-addressable arrays; the bipartite
// relation is an edge list with adjacency indices built once per run, and
// string ids exist only at the boundary.
package vancouver

import (
	"sort"
)

type edge struct {
	user  int
	item  int
	grade float64
}

// Graph is the bipartite reviewer-to-paper score graph.
type Graph struct {
	userIDs   []string
	itemIDs   []string
	userIndex map[string]int
	itemIndex map[string]int

	edges     []edge
	edgeIndex map[[2]int]int

	// adjacency, built lazily
	userEdges [][]int
	itemEdges [][]int
	built     bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
		edgeIndex: make(map[[2]int]int),
	}
}

// AddReview records that userID scored itemID with grade. Re-adding the same
// pair overwrites the grade.
func (g *Graph) AddReview(userID, itemID string, grade float64) {
	u, ok := g.userIndex[userID]
	if !ok {
		u = len(g.userIDs)
		g.userIndex[userID] = u
		g.userIDs = append(g.userIDs, userID)
	}
	i, ok := g.itemIndex[itemID]
	if !ok {
		i = len(g.itemIDs)
		g.itemIndex[itemID] = i
		g.itemIDs = append(g.itemIDs, itemID)
	}
	key := [2]int{u, i}
	if e, ok := g.edgeIndex[key]; ok {
		g.edges[e].grade = grade
		return
	}
	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, edge{user: u, item: i, grade: grade})
	g.built = false
}

// NumReviews returns the edge count.
func (g *Graph) NumReviews() int { return len(g.edges) }

// NumUsers returns the reviewer count.
func (g *Graph) NumUsers() int { return len(g.userIDs) }

// NumItems returns the paper count.
func (g *Graph) NumItems() int { return len(g.itemIDs) }

// ReviewCount returns how many items the named reviewer scored.
func (g *Graph) ReviewCount(userID string) int {
	u, ok := g.userIndex[userID]
	if !ok {
		return 0
	}
	g.build()
	return len(g.userEdges[u])
}

// build constructs the adjacency indices. Edge lists are ordered by the
// counterpart's string id so a run is deterministic for a given review set
// regardless of insertion order.
func (g *Graph) build() {
	if g.built {
		return
	}
	g.userEdges = make([][]int, len(g.userIDs))
	g.itemEdges = make([][]int, len(g.itemIDs))
	for e, ed := range g.edges {
		g.userEdges[ed.user] = append(g.userEdges[ed.user], e)
		g.itemEdges[ed.item] = append(g.itemEdges[ed.item], e)
	}
	for u := range g.userEdges {
		sort.Slice(g.userEdges[u], func(a, b int) bool {
			return g.itemIDs[g.edges[g.userEdges[u][a]].item] < g.itemIDs[g.edges[g.userEdges[u][b]].item]
		})
	}
	for i := range g.itemEdges {
		sort.Slice(g.itemEdges[i], func(a, b int) bool {
			return g.userIDs[g.edges[g.itemEdges[i][a]].user] < g.userIDs[g.edges[g.itemEdges[i][b]].user]
		})
	}
	g.built = true
}

// sortedUsers returns user indices ordered by id.
func (g *Graph) sortedUsers() []int {
	idx := make([]int, len(g.userIDs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return g.userIDs[idx[a]] < g.userIDs[idx[b]] })
	return idx
}

// sortedItems returns item indices ordered by id.
func (g *Graph) sortedItems() []int {
	idx := make([]int, len(g.itemIDs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return g.itemIDs[idx[a]] < g.itemIDs[idx[b]] })
	return idx
}
