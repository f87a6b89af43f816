// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token defines single-use evaluation credentials and their minter.
package token

import (
	"time"
)

// Status is the lifecycle state of a token.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusExpired   Status = "expired"
)

// Token binds one reviewer to one target paper for a bounded time.
// Invariant: IsUsed == (Status == StatusSubmitted) == (UsedAt != nil).
type Token struct {
	ID          string     `json:"token"`
	EvaluatorID string     `json:"evaluator_id"`
	TargetID    string     `json:"target_id"`
	Questions   []string   `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Status      Status     `json:"status"`
	IsUsed      bool       `json:"is_used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
