// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peereval/peereval/assign"
	"github.com/peereval/peereval/config"
)

type recordingStore struct {
	batch []*Token
	err   error
}

func (s *recordingStore) SaveTokensBatch(tokens []*Token) error {
	if s.err != nil {
		return s.err
	}
	s.batch = tokens
	return nil
}

func testAssignments() map[string]*assign.Entry {
	return map[string]*assign.Entry{
		"A": {AssignedPapers: []string{"B", "C"}},
		"B": {AssignedPapers: []string{"C", "A"}},
		"C": {AssignedPapers: []string{"A", "B"}},
	}
}

func TestMintOnePerPair(t *testing.T) {
	store := &recordingStore{}
	m := NewMinter(config.Token{Length: 22, ExpiryDays: 7}, store)

	now := time.Now().UTC()
	out, err := m.Mint(testAssignments(), []string{"Q1", "Q2", "Q3"}, now)
	require.NoError(t, err)

	require.Len(t, store.batch, 6)
	seenPairs := map[[2]string]int{}
	seenIDs := map[string]int{}
	for evaluator, tokens := range out {
		require.Len(t, tokens, 2)
		for _, tok := range tokens {
			assert.Equal(t, evaluator, tok.EvaluatorID)
			assert.NotEqual(t, tok.EvaluatorID, tok.TargetID)
			assert.Equal(t, StatusPending, tok.Status)
			assert.False(t, tok.IsUsed)
			assert.Nil(t, tok.UsedAt)
			assert.Equal(t, now, tok.CreatedAt)
			assert.Equal(t, now.Add(7*24*time.Hour), tok.ExpiresAt)
			assert.Equal(t, []string{"Q1", "Q2", "Q3"}, tok.Questions)
			assert.Len(t, tok.ID, 22)
			seenPairs[[2]string{tok.EvaluatorID, tok.TargetID}]++
			seenIDs[tok.ID]++
		}
	}
	assert.Len(t, seenPairs, 6, "exactly one token per pair")
	assert.Len(t, seenIDs, 6, "token strings unique")
}

func TestMintPersistFailure(t *testing.T) {
	store := &recordingStore{err: assert.AnError}
	m := NewMinter(config.Token{Length: 22, ExpiryDays: 1}, store)

	_, err := m.Mint(testAssignments(), []string{"Q1"}, time.Now())
	assert.Error(t, err)
}

func TestRandomString(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		s, err := randomString(22)
		require.NoError(t, err)
		require.Len(t, s, 22)
		assert.NotContains(t, s, "+")
		assert.NotContains(t, s, "/")
		assert.NotContains(t, s, "=")
		assert.False(t, seen[s])
		seen[s] = true
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	tok := &Token{ExpiresAt: now.Add(time.Second)}
	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(2*time.Second)))
}
