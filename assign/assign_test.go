// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peereval/peereval/config"
)

func TestRingAssignment(t *testing.T) {
	students := []string{"A", "B", "C", "D", "E"}

	a := New(config.Assignment{PerStudent: 2, Mode: config.BalancePerfect})
	out, err := a.Run(students)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, out["A"].AssignedPapers)
	assert.Equal(t, []string{"C", "D"}, out["B"].AssignedPapers)
	assert.Equal(t, []string{"D", "E"}, out["C"].AssignedPapers)
	assert.Equal(t, []string{"E", "A"}, out["D"].AssignedPapers)
	assert.Equal(t, []string{"A", "B"}, out["E"].AssignedPapers)

	for id, entry := range out {
		assert.Len(t, entry.Evaluators, 2, "in-degree of %s", id)
	}
}

func TestDegreeInvariants(t *testing.T) {
	students := make([]string, 31)
	for i := range students {
		students[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
	}

	for _, k := range []int{1, 3, 7, 30} {
		a := New(config.Assignment{PerStudent: k, Mode: config.BalancePerfect})
		out, err := a.Run(students)
		require.NoError(t, err)

		for id, entry := range out {
			assert.Len(t, entry.AssignedPapers, k, "out-degree of %s at k=%d", id, k)
			assert.Len(t, entry.Evaluators, k, "in-degree of %s at k=%d", id, k)
			assert.NotContains(t, entry.AssignedPapers, id, "self review at k=%d", k)
		}
	}
}

func TestSelfReviewAllowed(t *testing.T) {
	students := []string{"A", "B", "C"}

	a := New(config.Assignment{PerStudent: 3, AllowSelf: true, Mode: config.BalancePerfect})
	out, err := a.Run(students)
	require.NoError(t, err)

	for id, entry := range out {
		assert.Len(t, entry.AssignedPapers, 3)
		assert.Contains(t, entry.AssignedPapers, id)
	}
}

func TestInfeasible(t *testing.T) {
	students := []string{"A", "B", "C"}

	_, err := New(config.Assignment{PerStudent: 3, Mode: config.BalancePerfect}).Run(students)
	assert.Error(t, err)

	// allowing self review raises the ceiling by one
	_, err = New(config.Assignment{PerStudent: 3, AllowSelf: true, Mode: config.BalancePerfect}).Run(students)
	assert.NoError(t, err)

	_, err = New(config.Assignment{PerStudent: 2, Mode: "round-robin"}).Run(students)
	assert.Error(t, err)
}

func TestSeededShuffleDeterminism(t *testing.T) {
	students := []string{"A", "B", "C", "D", "E", "F", "G"}
	seed := int64(42)

	a := New(config.Assignment{PerStudent: 3, Mode: config.BalancePerfect, Seed: &seed})
	first, err := a.Run(students)
	require.NoError(t, err)

	second, err := New(config.Assignment{PerStudent: 3, Mode: config.BalancePerfect, Seed: &seed}).Run(students)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := int64(43)
	third, err := New(config.Assignment{PerStudent: 3, Mode: config.BalancePerfect, Seed: &other}).Run(students)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRandomMode(t *testing.T) {
	students := []string{"A", "B", "C", "D", "E", "F"}
	seed := int64(7)

	a := New(config.Assignment{PerStudent: 2, Mode: config.BalanceRandom, Seed: &seed})
	out, err := a.Run(students)
	require.NoError(t, err)

	total := 0
	for id, entry := range out {
		assert.Len(t, entry.AssignedPapers, 2, "out-degree of %s", id)
		assert.NotContains(t, entry.AssignedPapers, id)
		seen := map[string]bool{}
		for _, target := range entry.AssignedPapers {
			assert.False(t, seen[target], "duplicate target for %s", id)
			seen[target] = true
		}
		total += len(entry.Evaluators)
	}
	assert.Equal(t, 12, total)

	again, err := New(config.Assignment{PerStudent: 2, Mode: config.BalanceRandom, Seed: &seed}).Run(students)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
