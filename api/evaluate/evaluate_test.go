// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaluate

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/eval"
	"github.com/peereval/peereval/evaldb"
	"github.com/peereval/peereval/roster"
	"github.com/peereval/peereval/token"
)

var questions = []string{"Q1", "Q2", "Q3"}

func testExam() *roster.ExamData {
	exam := &roster.ExamData{
		Students:  map[string]roster.Student{},
		Questions: map[string]roster.Question{},
	}
	for _, qid := range questions {
		exam.Questions[qid] = roster.Question{Content: "explain " + qid, MaxScore: 20}
	}
	answers := map[string]roster.Answer{}
	for _, qid := range questions {
		answers[qid] = roster.Answer{Text: "the answer", WordCount: 2}
	}
	exam.Students["S001"] = roster.Student{Name: "S001", Answers: map[string]roster.Answer{}}
	exam.Students["S002"] = roster.Student{Name: "S002", Answers: answers}
	return exam
}

func newTestServer(t *testing.T) (*httptest.Server, *evaldb.Store) {
	store, err := evaldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	svc := eval.New(store, testExam(), cfg)
	router := mux.NewRouter()
	New(svc, store, cfg, "test").Mount(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func saveToken(t *testing.T, store *evaldb.Store, id string, expiresIn time.Duration) {
	now := time.Now()
	require.NoError(t, store.SaveToken(&token.Token{
		ID:          id,
		EvaluatorID: "S001",
		TargetID:    "S002",
		Questions:   questions,
		CreatedAt:   now,
		ExpiresAt:   now.Add(expiresIn),
		Status:      token.StatusPending,
	}))
}

func httpGet(t *testing.T, url string) (int, []byte) {
	res, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return res.StatusCode, body
}

func httpPostJSON(t *testing.T, url string, payload any) (int, []byte) {
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	res, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return res.StatusCode, body
}

func submitBody(tokenID string, scores []int) *eval.SubmitRequest {
	req := &eval.SubmitRequest{Token: tokenID}
	for i, score := range scores {
		req.Submissions = append(req.Submissions, eval.ScoreInput{
			QuestionID: questions[i],
			Score:      score,
		})
	}
	return req
}

func TestFormEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "tok", time.Hour)

	status, body := httpGet(t, srv.URL+"/evaluate?token=tok")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "the answer")
	assert.Contains(t, string(body), "Q3")
	// the page never names the target
	assert.NotContains(t, string(body), "S002")

	status, _ = httpGet(t, srv.URL+"/evaluate")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = httpGet(t, srv.URL+"/evaluate?token=ghost")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFormExpired(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "stale", -time.Minute)

	status, body := httpGet(t, srv.URL+"/evaluate?token=stale")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(body), "expired")
}

func TestSubmitEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "tok", time.Hour)

	status, body := httpPostJSON(t, srv.URL+"/api/submit", submitBody("tok", []int{18, 17, 19}))
	require.Equal(t, http.StatusOK, status)

	var accepted SubmitResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.True(t, accepted.Success)
	assert.Len(t, accepted.SubmissionIDs, 3)

	// second submission is refused with the consumption timestamp
	status, body = httpPostJSON(t, srv.URL+"/api/submit", submitBody("tok", []int{18, 17, 19}))
	assert.Equal(t, http.StatusForbidden, status)
	var refused ErrorResponse
	require.NoError(t, json.Unmarshal(body, &refused))
	assert.NotEmpty(t, refused.Error)
	assert.NotNil(t, refused.UsedAt)

	// the already-submitted page replaces the form
	status, page := httpGet(t, srv.URL+"/evaluate?token=tok")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(page), "already submitted")
}

func TestSubmitRejections(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "tok", time.Hour)

	status, _ := httpPostJSON(t, srv.URL+"/api/submit", submitBody("ghost", []int{1, 2, 3}))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = httpPostJSON(t, srv.URL+"/api/submit", submitBody("tok", []int{1, 2, 99}))
	assert.Equal(t, http.StatusBadRequest, status)

	// unknown fields are rejected by the strict decoder
	res, err := http.Post(srv.URL+"/api/submit", "application/json",
		bytes.NewBufferString(`{"token":"tok","bogus":1}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// rejected bodies leave the token pending
	got, err := store.GetToken("tok")
	require.NoError(t, err)
	assert.False(t, got.IsUsed)
}

func TestStatusEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "tok", time.Hour)

	status, body := httpGet(t, srv.URL+"/api/status")
	require.Equal(t, http.StatusOK, status)

	var got StatusResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "test", got.Version)
	assert.True(t, got.Database)
	assert.Equal(t, 1, got.Tokens["pending"])
}

func TestProgressAndStats(t *testing.T) {
	srv, store := newTestServer(t)
	saveToken(t, store, "tok", time.Hour)

	status, body := httpPostJSON(t, srv.URL+"/api/submit", submitBody("tok", []int{10, 12, 14}))
	require.Equal(t, http.StatusOK, status)

	status, body = httpGet(t, srv.URL+"/api/progress")
	require.Equal(t, http.StatusOK, status)
	var progress ProgressResponse
	require.NoError(t, json.Unmarshal(body, &progress))
	require.Len(t, progress.Progress, 1)
	assert.Equal(t, "S001", progress.Progress[0].EvaluatorID)
	assert.Equal(t, 1, progress.Progress[0].Submitted)

	status, body = httpGet(t, srv.URL+"/api/stats")
	require.Equal(t, http.StatusOK, status)
	var stats evaldb.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 3, stats.SubmissionsTotal)
	assert.InDelta(t, 12, stats.MeanScore, 1e-9)
}
