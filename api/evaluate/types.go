// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaluate

import (
	"time"

	"github.com/peereval/peereval/evaldb"
)

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	Success       bool    `json:"success"`
	SubmissionIDs []int64 `json:"submission_ids"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error  string     `json:"error"`
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// StatusResponse summarizes readiness and configuration.
type StatusResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Database  bool           `json:"database"`
	MaxScore  int            `json:"max_score_per_question"`
	Tokens    map[string]int `json:"tokens_by_status"`
}

// ProgressResponse lists per-evaluator completion.
type ProgressResponse struct {
	Progress []*evaldb.Progress `json:"progress"`
}
