// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package assign builds the reviewer-to-paper bipartite graph.
package assign

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/roster"
)

// Entry holds one student's side of the assignment relation.
type Entry struct {
	AssignedPapers []string `json:"assigned_papers"`
	Evaluators     []string `json:"evaluators"`
}

// Metadata describes how an assignment artifact was produced.
type Metadata struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Mode        config.BalanceMode `json:"mode"`
	PerStudent  int                `json:"assignments_per_student"`
	AllowSelf   bool               `json:"allow_self_evaluation"`
	Seed        *int64             `json:"random_seed"`
}

// Assignments is the artifact handed to the token minter.
type Assignments struct {
	Assignments map[string]*Entry          `json:"assignments"`
	Questions   map[string]roster.Question `json:"questions"`
	Metadata    Metadata                   `json:"metadata"`
}

// Assigner produces assignments under the configured constraints.
type Assigner struct {
	cfg config.Assignment
}

// New creates an assigner.
func New(cfg config.Assignment) *Assigner {
	return &Assigner{cfg: cfg}
}

// Run builds the assignment relation for the given roster order.
// With a fixed seed and mode the output is bit-identical across runs.
func (a *Assigner) Run(students []string) (map[string]*Entry, error) {
	n := len(students)
	k := a.cfg.PerStudent

	maxPossible := n
	if !a.cfg.AllowSelf {
		maxPossible = n - 1
	}
	if k < 1 {
		return nil, errors.New("assign: assignments per student must be >= 1")
	}
	if k > maxPossible {
		return nil, errors.Errorf("assign: %v reviews per student infeasible with %v students (allow self: %v)", k, n, a.cfg.AllowSelf)
	}

	switch a.cfg.Mode {
	case config.BalancePerfect, config.BalanceWeighted:
		// weighted is reserved and falls back to the perfectly balanced walk
		return a.ring(students), nil
	case config.BalanceRandom:
		return a.random(students), nil
	default:
		return nil, errors.Errorf("assign: unknown balance mode %q", a.cfg.Mode)
	}
}

// ring lays students on a ring and lets each one review the next k.
// Both degree invariants hold by construction.
func (a *Assigner) ring(students []string) map[string]*Entry {
	ordered := a.shuffled(students)
	n := len(ordered)

	out := make(map[string]*Entry, n)
	for _, s := range ordered {
		out[s] = &Entry{}
	}

	for i, evaluator := range ordered {
		offset := 1
		if a.cfg.AllowSelf {
			offset = 0
		}
		for len(out[evaluator].AssignedPapers) < a.cfg.PerStudent && offset <= n {
			target := ordered[(i+offset)%n]
			offset++
			if target == evaluator && !a.cfg.AllowSelf {
				continue
			}
			out[evaluator].AssignedPapers = append(out[evaluator].AssignedPapers, target)
			out[target].Evaluators = append(out[target].Evaluators, evaluator)
		}
	}
	return out
}

// random draws k distinct targets per reviewer. Out-degree is exact;
// in-degree is only balanced in expectation.
func (a *Assigner) random(students []string) map[string]*Entry {
	rng := a.rng()

	out := make(map[string]*Entry, len(students))
	for _, s := range students {
		out[s] = &Entry{}
	}

	for _, evaluator := range students {
		pool := make([]string, 0, len(students))
		for _, s := range students {
			if s == evaluator && !a.cfg.AllowSelf {
				continue
			}
			pool = append(pool, s)
		}
		rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		for _, target := range pool[:a.cfg.PerStudent] {
			out[evaluator].AssignedPapers = append(out[evaluator].AssignedPapers, target)
			out[target].Evaluators = append(out[target].Evaluators, evaluator)
		}
	}
	return out
}

// shuffled copies the roster and applies the seeded permutation.
// A nil seed keeps roster order.
func (a *Assigner) shuffled(students []string) []string {
	ordered := append([]string(nil), students...)
	if a.cfg.Seed == nil {
		return ordered
	}
	rng := a.rng()
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	return ordered
}

func (a *Assigner) rng() *rand.Rand {
	var seed int64
	if a.cfg.Seed != nil {
		seed = *a.cfg.Seed
	}
	return rand.New(rand.NewSource(seed))
}
