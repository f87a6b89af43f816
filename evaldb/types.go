// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaldb

import (
	"time"
)

// Submission is one accepted per-question score. Rows are append-only.
type Submission struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	EvaluatorID string    `json:"evaluator_id"`
	TargetID    string    `json:"target_id"`
	QuestionID  string    `json:"question_id"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment"`
	SubmittedAt time.Time `json:"submitted_at"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// LogEntry is one audit record.
type LogEntry struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit actions.
const (
	ActionView   = "view"
	ActionSubmit = "submit"
	ActionError  = "error"
)

// Student is a persisted roster row.
type Student struct {
	ID        string    `json:"student_id"`
	Name      string    `json:"student_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress summarizes one evaluator's completion state.
type Progress struct {
	EvaluatorID string `json:"evaluator_id"`
	Assigned    int    `json:"assigned"`
	Submitted   int    `json:"submitted"`
}

// Stats summarizes the whole database.
type Stats struct {
	TokensTotal      int            `json:"tokens_total"`
	TokensByStatus   map[string]int `json:"tokens_by_status"`
	SubmissionsTotal int            `json:"submissions_total"`
	MeanScore        float64        `json:"mean_score"`
}
