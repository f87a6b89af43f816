// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaldb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peereval/peereval/token"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestToken(id string) *token.Token {
	now := time.Now()
	return &token.Token{
		ID:          id,
		EvaluatorID: "S001",
		TargetID:    "S002",
		Questions:   []string{"Q1", "Q2"},
		CreatedAt:   now,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		Status:      token.StatusPending,
	}
}

func TestSaveAndGetToken(t *testing.T) {
	store := newTestStore(t)

	tok := newTestToken("tok-1")
	require.NoError(t, store.SaveToken(tok))

	got, err := store.GetToken("tok-1")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, tok.EvaluatorID, got.EvaluatorID)
	assert.Equal(t, tok.TargetID, got.TargetID)
	assert.Equal(t, tok.Questions, got.Questions)
	assert.Equal(t, token.StatusPending, got.Status)
	assert.False(t, got.IsUsed)
	assert.Nil(t, got.UsedAt)
	assert.True(t, tok.ExpiresAt.UTC().Equal(got.ExpiresAt))

	assert.Equal(t, ErrConflict, store.SaveToken(tok))

	_, err = store.GetToken("absent")
	assert.Equal(t, ErrNotFound, err)
}

func TestSaveTokensBatchAtomic(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveToken(newTestToken("dup")))

	batch := []*token.Token{newTestToken("a"), newTestToken("dup"), newTestToken("b")}
	err := store.SaveTokensBatch(batch)
	require.Error(t, err)

	// nothing from the failed batch may remain
	_, err = store.GetToken("a")
	assert.Equal(t, ErrNotFound, err)
	_, err = store.GetToken("b")
	assert.Equal(t, ErrNotFound, err)
}

func TestValidateToken(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	valid, _, reason := store.ValidateToken("absent", now)
	assert.False(t, valid)
	assert.Equal(t, "token not found", reason)

	require.NoError(t, store.SaveToken(newTestToken("ok")))
	valid, info, reason := store.ValidateToken("ok", now)
	assert.True(t, valid)
	assert.Empty(t, reason)
	require.NotNil(t, info)

	expired := newTestToken("expired")
	expired.ExpiresAt = now.Add(-time.Second)
	require.NoError(t, store.SaveToken(expired))
	valid, _, reason = store.ValidateToken("expired", now)
	assert.False(t, valid)
	assert.Equal(t, "expired", reason)

	require.NoError(t, store.MarkTokenUsed("ok", "1.2.3.4", "ua", now))
	valid, info, reason = store.ValidateToken("ok", now)
	assert.False(t, valid)
	assert.Equal(t, "already used", reason)
	require.NotNil(t, info)
	assert.NotNil(t, info.UsedAt)
}

func TestMarkTokenUsed(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	assert.Equal(t, ErrNotFound, store.MarkTokenUsed("absent", "", "", now))

	require.NoError(t, store.SaveToken(newTestToken("tok")))
	require.NoError(t, store.MarkTokenUsed("tok", "1.2.3.4", "ua", now))

	got, err := store.GetToken("tok")
	require.NoError(t, err)
	assert.True(t, got.IsUsed)
	assert.Equal(t, token.StatusSubmitted, got.Status)
	require.NotNil(t, got.UsedAt)
	assert.Equal(t, "1.2.3.4", got.IPAddress)

	assert.Equal(t, ErrAlreadyUsed, store.MarkTokenUsed("tok", "", "", now))
}

func testSubmissions(tok *token.Token, now time.Time) []*Submission {
	subs := make([]*Submission, 0, len(tok.Questions))
	for i, q := range tok.Questions {
		subs = append(subs, &Submission{
			Token:       tok.ID,
			EvaluatorID: tok.EvaluatorID,
			TargetID:    tok.TargetID,
			QuestionID:  q,
			Score:       15 + i,
			Comment:     "solid work",
			SubmittedAt: now,
		})
	}
	return subs
}

func TestAcceptSubmission(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	tok := newTestToken("tok")
	require.NoError(t, store.SaveToken(tok))

	ids, err := store.AcceptSubmission("tok", testSubmissions(tok, now), "1.2.3.4", "ua", now)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	got, err := store.GetToken("tok")
	require.NoError(t, err)
	assert.True(t, got.IsUsed)

	rows, err := store.SubmissionsByToken("tok")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Q1", rows[0].QuestionID)
	assert.Equal(t, 15, rows[0].Score)

	// retry does not add rows
	_, err = store.AcceptSubmission("tok", testSubmissions(tok, now), "1.2.3.4", "ua", now)
	assert.Equal(t, ErrAlreadyUsed, err)
	rows, err = store.SubmissionsByToken("tok")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestConcurrentAccept(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	tok := newTestToken("tok")
	require.NoError(t, store.SaveToken(tok))

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejects   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AcceptSubmission("tok", testSubmissions(tok, now), "", "", now)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if err == ErrAlreadyUsed {
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, rejects)

	rows, err := store.SubmissionsByToken("tok")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmissionReferentialIntegrity(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveSubmission(&Submission{
		Token:       "ghost",
		EvaluatorID: "S001",
		TargetID:    "S002",
		QuestionID:  "Q1",
		Score:       10,
		SubmittedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestLogsBestEffort(t *testing.T) {
	store := newTestStore(t)

	store.LogAction("tok", ActionView, "", "1.2.3.4", "ua")
	store.LogAction("tok", ActionError, "score out of range", "1.2.3.4", "ua")
	store.LogAction("", ActionError, "no token supplied", "", "")

	entries, err := store.Logs("tok", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	assert.Equal(t, ActionError, entries[0].Action)
	assert.Equal(t, ActionView, entries[1].Action)

	all, err := store.Logs("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStudents(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveStudentsBatch([]*Student{
		{ID: "S002", Name: "Bob", Email: "bob@example.edu", CreatedAt: now},
		{ID: "S001", Name: "Alice", Email: "alice@example.edu", CreatedAt: now},
	}))

	st, err := store.GetStudent("S001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", st.Name)

	_, err = store.GetStudent("S999")
	assert.Equal(t, ErrNotFound, err)

	all, err := store.AllStudents()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "S001", all[0].ID)
}

func TestProgressAndStats(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	tokA := newTestToken("a")
	tokB := newTestToken("b")
	tokB.EvaluatorID = "S003"
	require.NoError(t, store.SaveTokensBatch([]*token.Token{tokA, tokB}))

	_, err := store.AcceptSubmission("a", testSubmissions(tokA, now), "", "", now)
	require.NoError(t, err)

	progress, err := store.EvaluatorProgress()
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, &Progress{EvaluatorID: "S001", Assigned: 1, Submitted: 1}, progress[0])
	assert.Equal(t, &Progress{EvaluatorID: "S003", Assigned: 1, Submitted: 0}, progress[1])

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TokensTotal)
	assert.Equal(t, 1, stats.TokensByStatus["pending"])
	assert.Equal(t, 1, stats.TokensByStatus["submitted"])
	assert.Equal(t, 2, stats.SubmissionsTotal)
	assert.InDelta(t, 15.5, stats.MeanScore, 1e-9)
}
