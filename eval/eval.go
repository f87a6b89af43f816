// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eval implements the evaluation use-cases: viewing a paper through
// a token and accepting the per-question submission atomically. Handlers
// decode requests, this package decides, the store persists.
package eval

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/evaldb"
	"github.com/peereval/peereval/metrics"
	"github.com/peereval/peereval/roster"
	"github.com/peereval/peereval/token"
)

var (
	logger = log.New("pkg", "eval")

	metricSubmissionsDenied = metrics.LazyLoadCounterVec("eval_submissions_denied_count", []string{"kind"})
)

func countDenied(d *Denial) *Denial {
	metricSubmissionsDenied().AddWithLabel(1, map[string]string{"kind": d.Kind.String()})
	return d
}

// QuestionView is one question with the target's answer, as shown to the
// reviewer. It deliberately carries no information about whose answer it is.
type QuestionView struct {
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
	MaxScore   int    `json:"max_score"`
	AnswerText string `json:"answer_text"`
	WordCount  int    `json:"word_count"`
	IsEmpty    bool   `json:"is_empty"`
}

// PaperView is the anonymous evaluation form model. There is no target-id
// field on purpose: anonymity is enforced by this type, not by convention.
type PaperView struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Questions []QuestionView `json:"questions"`
}

// ViewResult is the outcome of a view request.
type ViewResult struct {
	// Form is set for a pending token.
	Form *PaperView
	// UsedAt is set instead when the token was already consumed.
	UsedAt *time.Time
}

// ScoreInput is one per-question entry of a submission request.
type ScoreInput struct {
	QuestionID string `json:"question_id"`
	Score      int    `json:"score"`
	Comment    string `json:"comment"`
}

// SubmitRequest is the decoded submission body.
type SubmitRequest struct {
	Token       string       `json:"token"`
	Submissions []ScoreInput `json:"submissions"`
}

// Service validates tokens and accepts submissions.
type Service struct {
	store *evaldb.Store
	exam  *roster.ExamData
	cfg   config.Config
	now   func() time.Time
}

// New creates the service. exam may be nil when the server runs without the
// processed exam document; forms then show question ids only.
func New(store *evaldb.Store, exam *roster.ExamData, cfg config.Config) *Service {
	return &Service{
		store: store,
		exam:  exam,
		cfg:   cfg,
		now:   time.Now,
	}
}

// checkToken walks the shared part of the state machine: existence,
// consumption, expiry, status.
func (s *Service) checkToken(tokenID string) (*token.Token, *Denial) {
	tok, err := s.store.GetToken(tokenID)
	if err == evaldb.ErrNotFound {
		return nil, denied(KindNotFound, "this evaluation link does not exist")
	}
	if err != nil {
		logger.Error("token lookup failed", "err", err)
		return nil, denied(KindInternal, "the evaluation service is temporarily unavailable")
	}
	if tok.IsUsed {
		d := denied(KindAlreadySubmitted, "this evaluation was already submitted")
		d.UsedAt = tok.UsedAt
		return tok, d
	}
	if tok.Expired(s.now()) {
		return tok, denied(KindExpired, "this evaluation link has expired")
	}
	if tok.Status != token.StatusPending {
		return tok, denied(KindInvalidState, "this evaluation link is no longer active")
	}
	return tok, nil
}

// View resolves a token into the anonymous form model. Consumed tokens yield
// a ViewResult with UsedAt set; every other denial is an error.
func (s *Service) View(tokenID, ip, ua string) (*ViewResult, *Denial) {
	tok, d := s.checkToken(tokenID)
	if d != nil {
		if d.Kind == KindAlreadySubmitted {
			return &ViewResult{UsedAt: d.UsedAt}, nil
		}
		s.store.LogAction(tokenID, evaldb.ActionError, "view: "+d.Message, ip, ua)
		return nil, d
	}

	form := &PaperView{
		Token:     tok.ID,
		ExpiresAt: tok.ExpiresAt,
		Questions: make([]QuestionView, 0, len(tok.Questions)),
	}
	for _, qid := range tok.Questions {
		qv := QuestionView{QuestionID: qid, MaxScore: s.cfg.MaxScore}
		if s.exam != nil {
			if q, ok := s.exam.Questions[qid]; ok {
				qv.Content = q.Content
				qv.MaxScore = q.MaxScore
			}
			if st, ok := s.exam.Students[tok.TargetID]; ok {
				if ans, ok := st.Answers[qid]; ok {
					qv.AnswerText = ans.Text
					qv.WordCount = ans.WordCount
					qv.IsEmpty = ans.IsEmpty
				}
			}
		}
		form.Questions = append(form.Questions, qv)
	}

	s.store.LogAction(tokenID, evaldb.ActionView, "", ip, ua)
	return &ViewResult{Form: form}, nil
}

// maxScoreFor returns the score ceiling for a question.
func (s *Service) maxScoreFor(qid string) int {
	if s.exam != nil {
		if q, ok := s.exam.Questions[qid]; ok && q.MaxScore > 0 {
			return q.MaxScore
		}
	}
	return s.cfg.MaxScore
}

// validate checks the request body against the token's question set.
func (s *Service) validate(tok *token.Token, req *SubmitRequest) *Denial {
	want := make(map[string]bool, len(tok.Questions))
	for _, qid := range tok.Questions {
		want[qid] = true
	}
	if len(req.Submissions) != len(tok.Questions) {
		return denied(KindBadRequest,
			fmt.Sprintf("expected scores for %d questions, got %d", len(tok.Questions), len(req.Submissions)))
	}
	seen := make(map[string]bool, len(req.Submissions))
	for _, in := range req.Submissions {
		if !want[in.QuestionID] {
			return denied(KindBadRequest, fmt.Sprintf("unexpected question %q", in.QuestionID))
		}
		if seen[in.QuestionID] {
			return denied(KindBadRequest, fmt.Sprintf("duplicate question %q", in.QuestionID))
		}
		seen[in.QuestionID] = true
		if max := s.maxScoreFor(in.QuestionID); in.Score < 0 || in.Score > max {
			return denied(KindBadRequest,
				fmt.Sprintf("score for %s must be between 0 and %d", in.QuestionID, max))
		}
		if len(in.Comment) > s.cfg.MaxCommentLen {
			return denied(KindBadRequest, fmt.Sprintf("comment for %s is too long", in.QuestionID))
		}
	}
	return nil
}

// Submit runs the acceptance protocol. On success every per-question row is
// persisted and the token consumed in one transaction; the returned ids
// identify the inserted rows. A repeat call yields KindAlreadySubmitted and
// changes nothing.
func (s *Service) Submit(req *SubmitRequest, ip, ua string) ([]int64, *Denial) {
	tok, d := s.checkToken(req.Token)
	if d != nil {
		s.store.LogAction(req.Token, evaldb.ActionError, "submit: "+d.Message, ip, ua)
		return nil, countDenied(d)
	}

	if d := s.validate(tok, req); d != nil {
		s.store.LogAction(req.Token, evaldb.ActionError, "submit: "+d.Message, ip, ua)
		return nil, countDenied(d)
	}

	now := s.now()
	subs := make([]*evaldb.Submission, 0, len(req.Submissions))
	for _, in := range req.Submissions {
		subs = append(subs, &evaldb.Submission{
			Token:       tok.ID,
			EvaluatorID: tok.EvaluatorID,
			TargetID:    tok.TargetID,
			QuestionID:  in.QuestionID,
			Score:       in.Score,
			Comment:     in.Comment,
			SubmittedAt: now,
			IPAddress:   ip,
			UserAgent:   ua,
		})
	}

	ids, err := s.store.AcceptSubmission(tok.ID, subs, ip, ua, now)
	if err == evaldb.ErrAlreadyUsed {
		// lost the race against a concurrent submitter
		d := denied(KindAlreadySubmitted, "this evaluation was already submitted")
		if t, terr := s.store.GetToken(tok.ID); terr == nil {
			d.UsedAt = t.UsedAt
		}
		return nil, countDenied(d)
	}
	if err != nil {
		logger.Error("submission acceptance failed", "token", tok.ID, "err", err)
		s.store.LogAction(tok.ID, evaldb.ActionError, "submit: storage failure", ip, ua)
		return nil, countDenied(denied(KindInternal, "your submission could not be saved, please try again"))
	}

	// audit write is causally after the commit; losing it is acceptable
	s.store.LogAction(tok.ID, evaldb.ActionSubmit,
		fmt.Sprintf("%d scores accepted", len(ids)), ip, ua)
	logger.Info("submission accepted", "evaluator", tok.EvaluatorID, "scores", len(ids))
	return ids, nil
}
