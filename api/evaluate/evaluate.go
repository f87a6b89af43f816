// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package evaluate exposes the reviewer-facing endpoints: the tokenized
// evaluation form and the submission API.
package evaluate

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/peereval/peereval/api/restutil"
	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/eval"
	"github.com/peereval/peereval/evaldb"
)

// Evaluate binds the evaluation service to HTTP.
type Evaluate struct {
	svc     *eval.Service
	store   *evaldb.Store
	cfg     config.Config
	version string
}

// New creates the handler group.
func New(svc *eval.Service, store *evaldb.Store, cfg config.Config, version string) *Evaluate {
	return &Evaluate{
		svc:     svc,
		store:   store,
		cfg:     cfg,
		version: version,
	}
}

// Mount registers the endpoints on the router.
func (e *Evaluate) Mount(router *mux.Router) {
	router.Path("/evaluate").
		Methods(http.MethodGet).
		Name("get-evaluate-form").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleForm))
	router.Path("/api/submit").
		Methods(http.MethodPost).
		Name("post-submit").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleSubmit))
	router.Path("/api/status").
		Methods(http.MethodGet).
		Name("get-status").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleStatus))
	router.Path("/api/progress").
		Methods(http.MethodGet).
		Name("get-progress").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleProgress))
	router.Path("/api/stats").
		Methods(http.MethodGet).
		Name("get-stats").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleStats))
}

// denialStatus maps a service denial to its http status.
func denialStatus(d *eval.Denial) int {
	switch d.Kind {
	case eval.KindNotFound:
		return http.StatusNotFound
	case eval.KindAlreadySubmitted, eval.KindExpired, eval.KindInvalidState:
		return http.StatusForbidden
	case eval.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (e *Evaluate) handleForm(w http.ResponseWriter, r *http.Request) error {
	tokenID := r.URL.Query().Get("token")
	if tokenID == "" {
		return e.renderError(w, http.StatusBadRequest, "no evaluation token supplied")
	}

	res, d := e.svc.View(tokenID, restutil.ClientIP(r), r.UserAgent())
	if d != nil {
		return e.renderError(w, denialStatus(d), d.Message)
	}
	if res.UsedAt != nil {
		// a distinct non-error page, for the refresh-after-submit case
		w.Header().Set("Content-Type", restutil.HTMLContentType)
		return alreadySubmittedTmpl.Execute(w, restutil.M{"UsedAt": res.UsedAt.Format(time.RFC1123)})
	}
	w.Header().Set("Content-Type", restutil.HTMLContentType)
	return formTmpl.Execute(w, res.Form)
}

func (e *Evaluate) handleSubmit(w http.ResponseWriter, r *http.Request) error {
	var req eval.SubmitRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.WriteJSONStatus(w, http.StatusBadRequest,
			&ErrorResponse{Error: errors.WithMessage(err, "malformed body").Error()})
	}

	ids, d := e.svc.Submit(&req, restutil.ClientIP(r), r.UserAgent())
	if d != nil {
		return restutil.WriteJSONStatus(w, denialStatus(d),
			&ErrorResponse{Error: d.Message, UsedAt: d.UsedAt})
	}
	return restutil.WriteJSON(w, &SubmitResponse{Success: true, SubmissionIDs: ids})
}

func (e *Evaluate) handleStatus(w http.ResponseWriter, _ *http.Request) error {
	status := &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   e.version,
		MaxScore:  e.cfg.MaxScore,
	}
	if stats, err := e.store.Stats(); err == nil {
		status.Database = true
		status.Tokens = stats.TokensByStatus
	} else {
		status.Status = "degraded"
	}
	return restutil.WriteJSON(w, status)
}

func (e *Evaluate) handleProgress(w http.ResponseWriter, _ *http.Request) error {
	progress, err := e.store.EvaluatorProgress()
	if err != nil {
		return err
	}
	if progress == nil {
		progress = []*evaldb.Progress{}
	}
	return restutil.WriteJSON(w, &ProgressResponse{Progress: progress})
}

func (e *Evaluate) handleStats(w http.ResponseWriter, _ *http.Request) error {
	stats, err := e.store.Stats()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, stats)
}

// renderError writes the natural-language error page.
func (e *Evaluate) renderError(w http.ResponseWriter, status int, msg string) error {
	w.Header().Set("Content-Type", restutil.HTMLContentType)
	w.WriteHeader(status)
	return errorTmpl.Execute(w, restutil.M{"Message": msg})
}

// The pages are intentionally plain; styling lives with the course site.
// None of them ever receives the target's identity.
var formTmpl = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Peer Evaluation</title></head>
<body>
<h1>Peer Evaluation</h1>
<p>Score each answer below. This link works exactly once; submit when you are done.</p>
<form id="evaluation" data-token="{{.Token}}">
{{range .Questions}}
<section>
  <h2>{{.QuestionID}}</h2>
  {{with .Content}}<p>{{.}}</p>{{end}}
  <blockquote>{{if .IsEmpty}}<em>(no answer given)</em>{{else}}{{.AnswerText}}{{end}}</blockquote>
  <label>Score (0&ndash;{{.MaxScore}}):
    <input type="number" name="{{.QuestionID}}_score" min="0" max="{{.MaxScore}}" required>
  </label>
  <label>Comment:
    <textarea name="{{.QuestionID}}_comment"></textarea>
  </label>
</section>
{{end}}
<button type="submit">Submit evaluation</button>
</form>
<p><small>This form expires at {{.ExpiresAt}}.</small></p>
</body>
</html>
`))

var alreadySubmittedTmpl = template.Must(template.New("already").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Already Submitted</title></head>
<body>
<h1>Evaluation already submitted</h1>
<p>This evaluation was submitted on {{.UsedAt}}. Nothing more to do here.</p>
</body>
</html>
`))

var errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Evaluation Unavailable</title></head>
<body>
<h1>Evaluation unavailable</h1>
<p>{{.Message}}</p>
</body>
</html>
`))
