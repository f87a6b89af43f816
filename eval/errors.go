// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eval

import (
	"time"
)

// Kind classifies why an evaluation request was denied.
type Kind int

const (
	// KindNotFound - no such token.
	KindNotFound Kind = iota
	// KindAlreadySubmitted - the token was consumed; retries are idempotent.
	KindAlreadySubmitted
	// KindExpired - past the token's expiry.
	KindExpired
	// KindInvalidState - token status is neither pending nor submitted.
	KindInvalidState
	// KindBadRequest - the submission body failed validation.
	KindBadRequest
	// KindInternal - storage failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadySubmitted:
		return "already_submitted"
	case KindExpired:
		return "expired"
	case KindInvalidState:
		return "invalid_state"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Denial is the typed rejection returned by the service. The presenter maps
// it to an HTTP status; the message is natural language and leaks no store
// internals.
type Denial struct {
	Kind    Kind
	Message string
	// UsedAt is set for KindAlreadySubmitted so the client can show when
	// the earlier submission happened.
	UsedAt *time.Time
}

func (d *Denial) Error() string { return d.Message }

func denied(kind Kind, msg string) *Denial {
	return &Denial{Kind: kind, Message: msg}
}
